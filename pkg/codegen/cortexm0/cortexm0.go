// Package cortexm0 implements ARMv6-M (Cortex-M0) assembly emission.
//
// Design: The register allocator has already mapped every value to r0-r7 and
// expanded call save/restore markers; this package only renders the stream
// and expands function entry and exit.
package cortexm0

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/GriffinCanCode/altf4-compiler/pkg/ir"
	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

const (
	prologue = "push {lr, r4-r7}"
	epilogue = "pop {pc, r4-r7}"
)

// Options control the assembly preamble.
type Options struct {
	CPU   string
	Align int
}

func DefaultOptions() Options {
	return Options{CPU: "cortex-m0", Align: 2}
}

// Generator writes Cortex-M0 assembly
type Generator struct {
	w    io.Writer
	opts Options
}

func NewGenerator(w io.Writer, opts Options) *Generator {
	def := DefaultOptions()
	if opts.CPU == "" {
		opts.CPU = def.CPU
	}
	if opts.Align <= 0 {
		opts.Align = def.Align
	}
	return &Generator{w: w, opts: opts}
}

// Generate emits assembly for an allocated program. Nothing is written when
// any unit still holds symbolic operands or call markers.
func (g *Generator) Generate(prog *ir.Program) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\t.cpu %s\n", g.opts.CPU)
	sb.WriteString("\t.text\n")
	fmt.Fprintf(&sb, "\t.align %d\n", g.opts.Align)

	for i, fn := range prog.Functions {
		// The top-level unit has no entry label or epilogue and runs on into
		// whatever follows; it is meant for pseudo listings and the REPL.
		if fn.IsTopLevel() && len(fn.Insts) > 0 && i+1 < len(prog.Functions) {
			logger.Warn("Top-level statements have no entry point and fall through into the next function",
				"next", prog.Functions[i+1].Name)
		}
		if err := g.generateFunction(&sb, fn); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(g.w, sb.String()); err != nil {
		return fmt.Errorf("writing assembly: %w", err)
	}
	return nil
}

// Emit renders prog with the given options.
func Emit(prog *ir.Program, opts Options) (string, error) {
	var sb strings.Builder
	if err := NewGenerator(&sb, opts).Generate(prog); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) generateFunction(sb *strings.Builder, fn *ir.Function) error {
	count := 0
	for _, inst := range fn.Insts {
		lines, err := g.generateInst(fn, inst)
		if err != nil {
			return err
		}
		for _, line := range lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		count += len(lines)
	}
	logger.LogCodeGen(g.opts.CPU, unitName(fn.Name), count)
	return nil
}

// generateInst renders one instruction as one or more output lines.
func (g *Generator) generateInst(fn *ir.Function, inst ir.Inst) ([]string, error) {
	if op, ok := lo.Find(inst.Args, func(o ir.Operand) bool { return o.IsSymbolic() }); ok {
		return nil, fmt.Errorf("cortexm0: %s: unallocated operand %s in %q", unitName(fn.Name), op.Name, inst)
	}

	switch inst.Op {
	case ir.OpGlobal:
		return []string{"\t.global " + inst.Args[0].Name}, nil

	case ir.OpLabel:
		return []string{inst.Args[0].Name + ":"}, nil

	case ir.OpPrologue:
		lines := []string{"\t" + prologue}
		if fn.FrameSize > 0 {
			lines = append(lines, fmt.Sprintf("\tsub sp, sp, #%d", fn.FrameSize))
		}
		return lines, nil

	case ir.OpEpilogue:
		lines := []string{inst.Args[0].Name + ":"}
		if fn.FrameSize > 0 {
			lines = append(lines, fmt.Sprintf("\tadd sp, sp, #%d", fn.FrameSize))
		}
		return append(lines, "\t"+epilogue), nil

	case ir.OpSave, ir.OpRestore:
		return nil, fmt.Errorf("cortexm0: %s: unexpanded %s marker", unitName(fn.Name), inst.Op)
	}

	return []string{"\t" + inst.String()}, nil
}

func unitName(name string) string {
	if name == "" {
		return "<top level>"
	}
	return name
}
