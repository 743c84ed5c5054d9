package regalloc

import "github.com/GriffinCanCode/altf4-compiler/pkg/ir"

// move is one register-to-register (or immediate) copy of a parallel move.
type move struct {
	dst ir.Operand
	src ir.Operand
}

func (m move) readsRegister() bool {
	return m.src.Kind == ir.Physical
}

// sequentialize orders a parallel move so that no source is overwritten
// before it is read. A cycle is broken by parking one source on the stack
// and popping it into its destination after the other moves.
func sequentialize(moves []move) []ir.Inst {
	pending := append([]move(nil), moves...)
	var out []ir.Inst
	var parked []move

	blocked := func(i int) bool {
		for j, other := range pending {
			if j != i && other.readsRegister() && other.src.Name == pending[i].dst.Name {
				return true
			}
		}
		return false
	}

	for len(pending) > 0 {
		progress := false
		for i, m := range pending {
			if blocked(i) {
				continue
			}
			out = append(out, ir.New(ir.OpMov, m.dst, m.src))
			pending = append(pending[:i], pending[i+1:]...)
			progress = true
			break
		}
		if progress {
			continue
		}

		// Every destination is still read by another move: a cycle.
		for i, m := range pending {
			if !m.readsRegister() {
				continue
			}
			out = append(out, ir.New(ir.OpPush, m.src))
			parked = append(parked, m)
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
	}

	for i := len(parked) - 1; i >= 0; i-- {
		out = append(out, ir.New(ir.OpPop, parked[i].dst))
	}
	return out
}
