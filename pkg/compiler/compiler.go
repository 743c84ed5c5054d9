// Package compiler wires the phases together: parse, lower to pseudo code,
// allocate registers, emit and validate Cortex-M0 assembly.
package compiler

import (
	"fmt"

	"github.com/GriffinCanCode/altf4-compiler/pkg/codegen/cortexm0"
	"github.com/GriffinCanCode/altf4-compiler/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/altf4-compiler/pkg/config"
	"github.com/GriffinCanCode/altf4-compiler/pkg/frontend"
	"github.com/GriffinCanCode/altf4-compiler/pkg/ir"
	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

// Output formats
const (
	EmitAsm    = "asm"
	EmitPseudo = "pseudo"
)

type Options struct {
	Filename   string
	CPU        string
	Align      int
	MaxNesting int
	Emit       string
}

// FromConfig builds driver options from loaded settings.
func FromConfig(cfg config.Config, filename string) Options {
	return Options{
		Filename:   filename,
		CPU:        cfg.Target.CPU,
		Align:      cfg.Target.Align,
		MaxNesting: cfg.Frontend.MaxNesting,
		Emit:       EmitAsm,
	}
}

// Result carries every intermediate form of one compilation.
type Result struct {
	AST       *frontend.Program
	Pseudo    *ir.Program
	Allocated *ir.Program
	Stats     []regalloc.Stats
	Assembly  string
}

// Output returns the text selected by the Emit option.
func (r *Result) Output(emit string) string {
	if emit == EmitPseudo {
		return r.Pseudo.String()
	}
	return r.Assembly
}

// Compile runs every phase on source. Source errors come back as
// *diag.Error; a broken allocator invariant panics with
// *regalloc.InternalError.
func Compile(source string, opts Options) (*Result, error) {
	if opts.Emit != "" && opts.Emit != EmitAsm && opts.Emit != EmitPseudo {
		return nil, fmt.Errorf("unknown output format %q", opts.Emit)
	}

	parser := frontend.NewParser(source)
	parser.SetMaxDepth(opts.MaxNesting)
	ast, err := parser.Parse()
	if err != nil {
		return nil, err
	}
	logger.LogLexing(opts.Filename, parser.TokenCount())
	logger.LogParsing(opts.Filename, len(ast.Body))

	return Lower(ast, opts)
}

// Lower runs the back end on an already parsed program.
func Lower(ast *frontend.Program, opts Options) (*Result, error) {
	pseudo, err := ir.NewBuilder().Build(ast)
	if err != nil {
		return nil, err
	}

	res := &Result{AST: ast, Pseudo: pseudo}
	res.Allocated = &ir.Program{}
	cfg := regalloc.DefaultConfig()
	for _, fn := range pseudo.Functions {
		a := regalloc.NewAllocator(fn, cfg)
		res.Allocated.Functions = append(res.Allocated.Functions, a.Allocate())
		res.Stats = append(res.Stats, a.Stats())
	}

	asm, err := cortexm0.Emit(res.Allocated, cortexm0.Options{CPU: opts.CPU, Align: opts.Align})
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	if err := cortexm0.NewValidator().Validate(asm); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	res.Assembly = asm
	return res, nil
}
