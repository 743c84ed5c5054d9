// Package ir implements the pseudo-assembly the code generator emits.
//
// Design: Cortex-M0 instructions over symbolic registers. The register
// allocator rewrites symbolic operands to r0-r7 and expands the save/restore
// markers; the emitter expands prologue/epilogue markers.
package ir

import (
	"fmt"
	"strings"
)

// Program is the top-level container. Top-level statements that are not
// function declarations compile into one unnamed unit that comes first.
type Program struct {
	Functions []*Function
}

// Function is one allocation unit.
type Function struct {
	Name      string
	Params    int
	Insts     []Inst
	FrameSize int
}

// IsTopLevel reports whether f holds top-level statements rather than a
// declared function.
func (f *Function) IsTopLevel() bool {
	return f.Name == ""
}

// Opcode is a pseudo-instruction opcode.
type Opcode int

const (
	OpGlobal Opcode = iota
	OpLabel
	OpPrologue
	OpEpilogue

	OpMov
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOrr
	OpCmp

	OpB
	OpBeq
	OpBne
	OpBgt
	OpBlt
	OpBl

	OpPush
	OpPop

	OpSave
	OpRestore
)

var mnemonics = [...]string{
	OpGlobal:   ".global",
	OpLabel:    "label",
	OpPrologue: "@prologue",
	OpEpilogue: "@epilogue",
	OpMov:      "mov",
	OpAdd:      "add",
	OpSub:      "sub",
	OpMul:      "mul",
	OpAnd:      "and",
	OpOrr:      "orr",
	OpCmp:      "cmp",
	OpB:        "b",
	OpBeq:      "beq",
	OpBne:      "bne",
	OpBgt:      "bgt",
	OpBlt:      "blt",
	OpBl:       "bl",
	OpPush:     "push",
	OpPop:      "pop",
	OpSave:     "@save",
	OpRestore:  "@restore",
}

func (op Opcode) String() string {
	if int(op) < len(mnemonics) {
		return mnemonics[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// IsBranch reports whether op transfers control. Branch operands are labels
// or symbols, never registers.
func (op Opcode) IsBranch() bool {
	return op >= OpB && op <= OpBl
}

// IsMarker reports whether op is a synthetic opcode that must be expanded
// before the stream is valid assembly.
func (op Opcode) IsMarker() bool {
	switch op {
	case OpPrologue, OpEpilogue, OpSave, OpRestore:
		return true
	}
	return false
}

// OperandKind classifies operands.
type OperandKind int

const (
	// Virtual is a symbolic register awaiting allocation.
	Virtual OperandKind = iota
	// ArgReg is a parameter's physical register. It is tracked by use count
	// like a symbolic register but is pre-assigned to itself.
	ArgReg
	// Physical is a fixed hardware register such as an ABI slot.
	Physical
	// Immediate is an integer constant.
	Immediate
	// LabelRef names a label or an external symbol.
	LabelRef
)

type Operand struct {
	Kind  OperandKind
	Name  string
	Value int64
}

func Sym(name string) Operand   { return Operand{Kind: Virtual, Name: name} }
func Arg(reg string) Operand    { return Operand{Kind: ArgReg, Name: reg} }
func Reg(name string) Operand   { return Operand{Kind: Physical, Name: name} }
func Imm(v int64) Operand       { return Operand{Kind: Immediate, Value: v} }
func Label(name string) Operand { return Operand{Kind: LabelRef, Name: name} }

// IsSymbolic reports whether the allocator counts and rewrites o.
func (o Operand) IsSymbolic() bool {
	return o.Kind == Virtual || o.Kind == ArgReg
}

func (o Operand) String() string {
	if o.Kind == Immediate {
		return fmt.Sprintf("#%d", o.Value)
	}
	return o.Name
}

// Inst is a single pseudo-instruction.
type Inst struct {
	Op   Opcode
	Args []Operand
}

func New(op Opcode, args ...Operand) Inst {
	return Inst{Op: op, Args: args}
}

func (i Inst) String() string {
	switch i.Op {
	case OpLabel:
		return i.Args[0].Name + ":"
	case OpPush, OpPop, OpSave, OpRestore:
		return i.Op.String() + " {" + joinOperands(i.Args) + "}"
	}
	if len(i.Args) == 0 {
		return i.Op.String()
	}
	return i.Op.String() + " " + joinOperands(i.Args)
}

func joinOperands(args []Operand) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// String renders the unit as a pseudo-assembly listing.
func (f *Function) String() string {
	var sb strings.Builder
	for _, inst := range f.Insts {
		if inst.Op != OpLabel && inst.Op != OpGlobal {
			sb.WriteString("\t")
		}
		sb.WriteString(inst.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (p *Program) String() string {
	var sb strings.Builder
	for i, fn := range p.Functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fn.String())
	}
	return sb.String()
}

// Cortex-M0 calling convention
var (
	// Argument registers, also the caller-saved set
	ArgRegs = []string{"r0", "r1", "r2", "r3"}
	// Registers the prologue saves
	CalleeSaved = []string{"r4", "r5", "r6", "r7"}
	// Return register
	RetReg = "r0"
	// Maximum parameter count
	MaxParams = len(ArgRegs)
)
