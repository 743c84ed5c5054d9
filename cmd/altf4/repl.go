package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/GriffinCanCode/altf4-compiler/pkg/compiler"
	"github.com/GriffinCanCode/altf4-compiler/pkg/config"
	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
	"github.com/GriffinCanCode/altf4-compiler/pkg/frontend"
	"github.com/GriffinCanCode/altf4-compiler/pkg/interp"
)

const (
	banner      = "alt-f4 " + version + " REPL. End a chunk with a blank line; :help for commands."
	promptMain  = "altf4> "
	promptCont  = "  ...> "
	historyFile = ".altf4_history"
	replName    = "<repl>"
)

const replHelp = `:asm    compile the session so far and print Cortex-M0 assembly
:pseudo compile the session so far and print pseudo code
:reset  forget every definition
:quit   leave the REPL
`

// session is the REPL state: an interpreter plus the chunks it accepted,
// which :asm compiles as one program.
type session struct {
	cfg      config.Config
	ip       *interp.Interpreter
	accepted []string
	out      io.Writer
	errOut   io.Writer
	color    bool
}

func newSession(cfg config.Config, out, errOut io.Writer) *session {
	return &session{cfg: cfg, ip: interp.New(out), out: out, errOut: errOut}
}

// eval parses and runs one chunk. A chunk ending in a top-level return
// prints the returned value.
func (s *session) eval(chunk string) {
	if strings.TrimSpace(chunk) == "" {
		return
	}

	p := frontend.NewParser(chunk)
	p.SetMaxDepth(s.cfg.Frontend.MaxNesting)
	prog, err := p.Parse()
	if err != nil {
		s.show(chunk, err)
		return
	}

	v, err := s.ip.Run(prog)
	if err != nil {
		s.show(chunk, err)
		return
	}
	s.accepted = append(s.accepted, chunk)

	if n := len(prog.Body); n > 0 {
		if _, ok := prog.Body[n-1].(*frontend.ReturnStatement); ok {
			fmt.Fprintln(s.out, v)
		}
	}
}

// command runs a :command and reports whether the REPL should exit.
func (s *session) command(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case ":quit", ":exit", ":q":
		return true
	case ":reset":
		s.ip.Reset()
		s.accepted = nil
		fmt.Fprintln(s.out, "session reset.")
	case ":asm":
		s.compile(compiler.EmitAsm)
	case ":pseudo":
		s.compile(compiler.EmitPseudo)
	case ":help":
		fmt.Fprint(s.out, replHelp)
	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for help.")
	}
	return false
}

func (s *session) compile(emit string) {
	source := strings.Join(s.accepted, "\n")
	err := guard(func() error {
		opts := compiler.FromConfig(s.cfg, replName)
		res, err := compiler.Compile(source, opts)
		if err != nil {
			return err
		}
		fmt.Fprint(s.out, res.Output(emit))
		return nil
	})
	if err != nil {
		s.show(source, err)
	}
}

func (s *session) show(source string, err error) {
	f := diag.Formatter{Source: source, Filename: replName, Color: s.color}
	fmt.Fprint(s.errOut, f.Format(err))
	if _, ok := diag.AsError(err); !ok {
		fmt.Fprintln(s.errOut)
	}
}

func replCmd(args []string) error {
	fs := newFlagSet("repl")
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.setup()
	if err != nil {
		return err
	}

	fmt.Println(banner)
	s := newSession(cfg, os.Stdout, os.Stderr)
	s.color = useColor(cfg)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		chunk, ok := readChunk(ln)
		if !ok {
			fmt.Println()
			break
		}
		if strings.HasPrefix(strings.TrimSpace(chunk), ":") {
			ln.AppendHistory(strings.TrimSpace(chunk))
			if s.command(chunk) {
				break
			}
			continue
		}
		s.eval(chunk)
		for _, line := range strings.Split(chunk, "\n") {
			if strings.TrimSpace(line) != "" {
				ln.AppendHistory(line)
			}
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// readChunk reads lines until a blank one. A :command is a chunk on its own.
func readChunk(ln *liner.State) (string, bool) {
	var lines []string
	for {
		prompt := promptMain
		if len(lines) > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), true
			}
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the partial chunk.
			return "", true
		}

		if len(lines) == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		if strings.TrimSpace(line) == "" {
			return strings.Join(lines, "\n"), true
		}
		lines = append(lines, line)
	}
}
