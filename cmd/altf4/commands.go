package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/GriffinCanCode/altf4-compiler/pkg/compiler"
	"github.com/GriffinCanCode/altf4-compiler/pkg/config"
	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
	"github.com/GriffinCanCode/altf4-compiler/pkg/frontend"
	"github.com/GriffinCanCode/altf4-compiler/pkg/interp"
	"github.com/GriffinCanCode/altf4-compiler/pkg/linker"
	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
	"github.com/GriffinCanCode/altf4-compiler/pkg/watch"
)

func compileCmd(args []string) error {
	fs := newFlagSet("compile")
	var c common
	c.register(fs)
	out := fs.String("o", "", "output file (default: stdout)")
	emit := fs.String("emit", compiler.EmitAsm, "output format: asm or pseudo")
	dump := fs.Bool("dump-config", false, "print the effective settings and exit")

	file, err := parseFile(fs, args, false)
	if err != nil {
		return err
	}
	if *emit != compiler.EmitAsm && *emit != compiler.EmitPseudo {
		return usagef("compile: unknown -emit format %q", *emit)
	}
	cfg, err := c.setup()
	if err != nil {
		return err
	}
	if *dump {
		return cfg.Write(os.Stdout)
	}
	if file == "" {
		return usagef("compile: no input file")
	}

	start := time.Now()
	res, err := compileFile(cfg, file)
	if err != nil {
		logger.LogCompilerComplete(false, since(start))
		return err
	}
	if err := writeOutput(*out, res.Output(*emit)); err != nil {
		return err
	}
	logger.LogCompilerComplete(true, since(start))
	return nil
}

func assembleCmd(args []string) error {
	fs := newFlagSet("assemble")
	var c common
	c.register(fs)
	out := fs.String("o", "", "object file")

	file, err := parseFile(fs, args, true)
	if err != nil {
		return err
	}
	if *out == "" {
		return usagef("assemble: -o is required")
	}
	cfg, err := c.setup()
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := compileFile(cfg, file)
	if err != nil {
		logger.LogCompilerComplete(false, since(start))
		return err
	}

	tmp, err := os.CreateTemp("", "altf4-*.s")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(res.Assembly); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	as := linker.New(cfg.Toolchain.Assembler, cfg.Target.CPU, cfg.Toolchain.Flags)
	if err := as.Assemble(ctx, tmp.Name(), *out); err != nil {
		return err
	}
	logger.LogCompilerComplete(true, since(start))
	return nil
}

func runCmd(args []string) error {
	fs := newFlagSet("run")
	var c common
	c.register(fs)

	file, err := parseFile(fs, args, true)
	if err != nil {
		return err
	}
	cfg, err := c.setup()
	if err != nil {
		return err
	}
	source, err := readSource(file)
	if err != nil {
		return err
	}

	prog, err := parseSource(cfg, source)
	if err != nil {
		return report(cfg, source, file, err)
	}
	result, err := interp.New(os.Stdout).Run(prog)
	if err != nil {
		return report(cfg, source, file, err)
	}
	logger.Info("Program finished", "file", file, "result", result)
	return nil
}

func astCmd(args []string) error {
	fs := newFlagSet("ast")
	var c common
	c.register(fs)

	file, err := parseFile(fs, args, true)
	if err != nil {
		return err
	}
	cfg, err := c.setup()
	if err != nil {
		return err
	}
	source, err := readSource(file)
	if err != nil {
		return err
	}
	prog, err := parseSource(cfg, source)
	if err != nil {
		return report(cfg, source, file, err)
	}

	dumper := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	dumper.Fdump(os.Stdout, prog)
	return nil
}

func watchCmd(args []string) error {
	fs := newFlagSet("watch")
	var c common
	c.register(fs)
	out := fs.String("o", "", "output file (default: stdout)")

	file, err := parseFile(fs, args, true)
	if err != nil {
		return err
	}
	cfg, err := c.setup()
	if err != nil {
		return err
	}

	rebuild := func() {
		start := time.Now()
		err := guard(func() error {
			res, err := compileFile(cfg, file)
			if err != nil {
				return err
			}
			return writeOutput(*out, res.Assembly)
		})
		switch err.(type) {
		case nil:
			fmt.Fprintf(os.Stderr, "compiled %s in %s\n", filepath.Base(file), since(start))
		case reported:
		default:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	w, err := watch.New(func(string) { rebuild() })
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(file); err != nil {
		return err
	}

	rebuild()
	fmt.Fprintf(os.Stderr, "watching %s (Ctrl+C to stop)\n", file)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return w.Watch(ctx)
}

// compileFile reads and compiles path, printing any diagnostic. Failures
// that are not source errors are compiler faults.
func compileFile(cfg config.Config, path string) (*compiler.Result, error) {
	source, err := readSource(path)
	if err != nil {
		return nil, err
	}
	res, err := compiler.Compile(source, compiler.FromConfig(cfg, path))
	if err != nil {
		if _, ok := diag.AsError(err); ok {
			return nil, report(cfg, source, path, err)
		}
		return nil, internalError{cause: err}
	}
	return res, nil
}

func parseSource(cfg config.Config, source string) (*frontend.Program, error) {
	p := frontend.NewParser(source)
	p.SetMaxDepth(cfg.Frontend.MaxNesting)
	return p.Parse()
}

func writeOutput(path, text string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprint(os.Stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0644)
}
