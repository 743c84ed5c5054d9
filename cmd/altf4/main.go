// Package main implements the alt-f4 compiler binary.
//
// Philosophy: one pass per phase, fail on the first diagnostic, plain text
// out. Every subcommand shares the config and logging setup below.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/GriffinCanCode/altf4-compiler/pkg/config"
	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK         = 0
	exitDiagnostic = 1
	exitUsage      = 2
	exitInternal   = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return exitUsage
	}

	commands := map[string]func([]string) error{
		"compile":  compileCmd,
		"assemble": assembleCmd,
		"run":      runCmd,
		"ast":      astCmd,
		"watch":    watchCmd,
		"repl":     replCmd,
	}

	var err error
	switch cmd := args[0]; cmd {
	case "version":
		fmt.Printf("altf4 compiler version %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fn, ok := commands[cmd]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
			usage()
			return exitUsage
		}
		err = guard(func() error { return fn(args[1:]) })
	}
	return exitCode(err)
}

func usage() {
	fmt.Println(`alt-f4 Compiler - Compile alt-f4 glyph programs to Cortex-M0 assembly

Usage:
    altf4 compile <file> [-o out.s] [-emit asm|pseudo]  Compile to assembly
    altf4 assemble <file> -o out.o                      Compile and assemble
    altf4 run <file>                                    Interpret a program
    altf4 ast <file>                                    Dump the syntax tree
    altf4 watch <file> [-o out.s]                       Recompile on change
    altf4 repl                                          Interactive session
    altf4 version                                       Show compiler version
    altf4 help                                          Show this help message

Options:
    -config <file>  Settings file (default: ./altf4.yaml if present)
    -v              Verbose (debug) logging
    -dump-config    Print the effective settings and exit (compile only)`)
}

// usageError marks bad invocations.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// internalError wraps a compiler fault: a recovered panic or generated code
// that fails its own checks.
type internalError struct{ cause any }

func (e internalError) Error() string {
	return fmt.Sprintf("internal compiler error: %v", e.cause)
}

// reported marks an error whose diagnostic has already been printed.
type reported struct{ err error }

func (e reported) Error() string { return e.err.Error() }
func (e reported) Unwrap() error { return e.err }

// guard turns a panic in fn into an internalError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = internalError{cause: r}
		}
	}()
	return fn()
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var internal internalError
	var usageErr usageError
	var shown reported
	switch {
	case errors.As(err, &internal):
		fmt.Fprintln(os.Stderr, err)
		return exitInternal
	case errors.As(err, &shown):
		return exitDiagnostic
	case errors.As(err, &usageErr):
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitUsage
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return exitUsage
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// common holds the flags every file subcommand accepts.
type common struct {
	configPath string
	verbose    bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "settings file")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

// setup loads settings and initializes logging.
func (c *common) setup() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	lc := cfg.LoggerConfig()
	if c.verbose {
		lc.Level = logger.LevelDebug
	}
	if err := logger.Init(lc); err != nil {
		return config.Config{}, fmt.Errorf("init logging: %w", err)
	}
	logger.LogCompilerStart(os.Args[1:])
	return cfg, nil
}

// parseFile parses fs flags, accepting them before or after the single
// positional file argument. A missing file is an error only when required.
func parseFile(fs *flag.FlagSet, args []string, required bool) (string, error) {
	var file string
	for {
		if err := fs.Parse(args); err != nil {
			return "", err
		}
		if fs.NArg() == 0 {
			break
		}
		if file != "" {
			return "", usagef("%s: expected one input file", fs.Name())
		}
		file = fs.Arg(0)
		args = fs.Args()[1:]
	}
	if file == "" && required {
		return "", usagef("%s: no input file", fs.Name())
	}
	return file, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	logger.LogFileProcessing(path)
	return string(data), nil
}

// useColor decides whether diagnostics on stderr get colour.
func useColor(cfg config.Config) bool {
	switch cfg.Diagnostics.Color {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// report prints a source diagnostic and marks it as shown. Other errors
// pass through unchanged.
func report(cfg config.Config, source, filename string, err error) error {
	d, ok := diag.AsError(err)
	if !ok {
		return err
	}
	line := 0
	if d.Anchor != nil {
		line = d.Anchor.Primary().Line
	}
	logger.LogError("compile", filename, line, d.Message)

	f := diag.Formatter{Source: source, Filename: filename, Color: useColor(cfg)}
	fmt.Fprint(os.Stderr, f.Format(err))
	return reported{err: err}
}

func since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
