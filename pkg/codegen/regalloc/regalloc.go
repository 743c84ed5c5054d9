// Package regalloc implements use-count register allocation over the
// pseudo-assembly of one unit.
//
// Design: Two passes. The first counts how often each symbolic register is
// referenced; the second walks the stream in order, assigning the lowest free
// physical register at first sight and releasing it when the count reaches
// zero. Code has no loops, so textual order is a valid liveness order.
package regalloc

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/GriffinCanCode/altf4-compiler/pkg/ir"
	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

// Config holds register allocation configuration
type Config struct {
	Available   []string // Allocation order, lowest first
	CallerSaved []string // Registers a call may clobber
}

// DefaultConfig returns the Cortex-M0 low register file
func DefaultConfig() *Config {
	return &Config{
		Available:   append(append([]string(nil), ir.ArgRegs...), ir.CalleeSaved...),
		CallerSaved: append([]string(nil), ir.ArgRegs...),
	}
}

// InternalError reports a broken allocator invariant. It is raised with panic
// because it means the generated pseudo code itself is wrong.
type InternalError struct {
	Function string
	Msg      string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal compiler error: register allocation for %s: %s", unitName(e.Function), e.Msg)
}

// Stats summarise one allocation run.
type Stats struct {
	Function      string
	Allocations   int
	Frees         int
	Peak          int
	Uses          map[string]int // counted references per symbolic name
	Substitutions map[string]int // rewritten references per symbolic name
}

// Allocator performs register allocation for one unit
type Allocator struct {
	fn       *ir.Function
	cfg      *Config
	pool     *pool
	counts   map[string]int
	assigned map[string]string // symbolic name -> register
	saved    [][]string
	out      []ir.Inst
	stats    Stats
}

// NewAllocator creates a new register allocator
func NewAllocator(fn *ir.Function, cfg *Config) *Allocator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Allocator{
		fn:       fn,
		cfg:      cfg,
		pool:     newPool(cfg.Available),
		counts:   make(map[string]int),
		assigned: make(map[string]string),
		stats: Stats{
			Function:      fn.Name,
			Uses:          make(map[string]int),
			Substitutions: make(map[string]int),
		},
	}
}

// Allocate runs the allocator and returns the rewritten unit. The input unit
// is not modified.
func Allocate(fn *ir.Function, cfg *Config) *ir.Function {
	return NewAllocator(fn, cfg).Allocate()
}

// AllocateProgram allocates every unit of prog independently.
func AllocateProgram(prog *ir.Program, cfg *Config) *ir.Program {
	out := &ir.Program{Functions: make([]*ir.Function, 0, len(prog.Functions))}
	for _, fn := range prog.Functions {
		out.Functions = append(out.Functions, Allocate(fn, cfg))
	}
	return out
}

// Allocate performs register allocation
func (a *Allocator) Allocate() *ir.Function {
	logger.Debug("Starting register allocation", "function", unitName(a.fn.Name))

	a.countUses()
	a.seedParams()

	for i := 0; i < len(a.fn.Insts); i++ {
		inst := a.fn.Insts[i]
		switch inst.Op {
		case ir.OpSave:
			i += a.save(i)
		case ir.OpRestore:
			a.restore()
		case ir.OpLabel:
			a.out = append(a.out, inst)
		default:
			if inst.Op.IsBranch() {
				a.out = append(a.out, inst)
				continue
			}
			a.out = append(a.out, ir.New(inst.Op, a.rewriteAll(inst.Args)...))
		}
	}

	if len(a.saved) != 0 {
		a.fail("unbalanced save marker")
	}

	logger.LogAllocation(unitName(a.fn.Name), a.stats.Peak, len(a.stats.Substitutions))
	return &ir.Function{
		Name:      a.fn.Name,
		Params:    a.fn.Params,
		Insts:     a.out,
		FrameSize: a.fn.FrameSize,
	}
}

// Stats returns the figures gathered by Allocate.
func (a *Allocator) Stats() Stats {
	return a.stats
}

// countUses tallies symbolic references outside labels and branches.
func (a *Allocator) countUses() {
	for _, inst := range a.fn.Insts {
		if inst.Op == ir.OpLabel || inst.Op.IsBranch() {
			continue
		}
		for _, op := range inst.Args {
			if op.IsSymbolic() {
				a.counts[op.Name]++
				a.stats.Uses[op.Name]++
			}
		}
	}
}

// seedParams marks the registers of referenced parameters as taken.
func (a *Allocator) seedParams() {
	for _, reg := range ir.ArgRegs[:min(a.fn.Params, len(ir.ArgRegs))] {
		if a.counts[reg] == 0 {
			continue
		}
		a.pool.claim(reg, reg)
		a.assigned[reg] = reg
		a.stats.Allocations++
		a.notePressure()
	}
}

// rewriteAll substitutes operands right to left, so a register released by a
// source can be reused by the destination of the same instruction.
func (a *Allocator) rewriteAll(args []ir.Operand) []ir.Operand {
	out := make([]ir.Operand, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		out[i] = a.rewrite(args[i])
	}
	return out
}

func (a *Allocator) rewrite(op ir.Operand) ir.Operand {
	if !op.IsSymbolic() {
		return op
	}

	reg, ok := a.assigned[op.Name]
	if !ok {
		reg, ok = a.pool.take(op.Name)
		if !ok {
			a.fail(fmt.Sprintf("out of registers for %s", op.Name))
		}
		a.assigned[op.Name] = reg
		a.stats.Allocations++
		a.notePressure()
		logger.Debug("Allocated register", "name", op.Name, "reg", reg)
	}

	a.counts[op.Name]--
	a.stats.Substitutions[op.Name]++
	switch n := a.counts[op.Name]; {
	case n < 0:
		a.fail(fmt.Sprintf("use count of %s went negative", op.Name))
	case n == 0:
		a.pool.release(reg)
		delete(a.assigned, op.Name)
		a.stats.Frees++
		logger.Debug("Freed register", "name", op.Name, "reg", reg)
	}
	return ir.Reg(reg)
}

// save expands a save marker together with the argument moves following it
// and returns how many of those moves it consumed.
func (a *Allocator) save(at int) int {
	marker := a.fn.Insts[at]
	n := len(marker.Args)
	if at+n >= len(a.fn.Insts) {
		a.fail("save marker is not followed by its argument moves")
	}
	argMoves := a.fn.Insts[at+1 : at+1+n]

	argUses := make(map[string]int)
	for _, inst := range argMoves {
		if inst.Op != ir.OpMov || len(inst.Args) != 2 || inst.Args[0].Kind != ir.Physical {
			a.fail(fmt.Sprintf("malformed argument move %q", inst))
		}
		if src := inst.Args[1]; src.IsSymbolic() {
			argUses[src.Name]++
		}
	}

	// Registers whose owner is still needed once the call returns.
	live := lo.Filter(a.cfg.CallerSaved, func(reg string, _ int) bool {
		name, ok := a.pool.ownerOf(reg)
		return ok && a.counts[name]-argUses[name] > 0
	})
	a.saved = append(a.saved, live)
	if len(live) > 0 {
		logger.Debug("Saving caller-saved registers", "regs", live)
		a.out = append(a.out, ir.New(ir.OpPush, physical(live)...))
	}

	moves := make([]move, 0, n)
	for _, inst := range argMoves {
		moves = append(moves, move{dst: inst.Args[0], src: a.rewrite(inst.Args[1])})
	}
	a.out = append(a.out, sequentialize(moves)...)
	return n
}

func (a *Allocator) restore() {
	if len(a.saved) == 0 {
		a.fail("restore marker without save")
	}
	live := a.saved[len(a.saved)-1]
	a.saved = a.saved[:len(a.saved)-1]
	if len(live) > 0 {
		a.out = append(a.out, ir.New(ir.OpPop, physical(live)...))
	}
}

func (a *Allocator) notePressure() {
	a.stats.Peak = max(a.stats.Peak, a.pool.inUse())
}

func (a *Allocator) fail(msg string) {
	panic(&InternalError{Function: a.fn.Name, Msg: msg})
}

func physical(regs []string) []ir.Operand {
	return lo.Map(regs, func(r string, _ int) ir.Operand { return ir.Reg(r) })
}

func unitName(name string) string {
	if name == "" {
		return "<top level>"
	}
	return name
}
