// Package scope implements the nested symbol environment shared by the pseudo
// code generator's passes.
//
// A Table is owned by exactly one compilation at a time. Function bodies get
// one child of the global table; if/else arms reuse their function's table.
package scope

import (
	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
)

// Kind distinguishes what a name denotes.
type Kind int

const (
	Function Kind = iota
	Variable
	Argument
	Literal
)

func (k Kind) String() string {
	switch k {
	case Function:
		return "function"
	case Variable:
		return "variable"
	case Argument:
		return "argument"
	case Literal:
		return "literal"
	default:
		return "unknown"
	}
}

// Symbol is a named binding. Register is the backing location: a physical
// register for arguments, a symbolic register for variables and literals,
// and the assembly symbol for functions.
type Symbol struct {
	Kind     Kind
	Name     string
	Register string
	Arity    int
	Span     diag.Span
}

// DivideBuiltin is the operator name the global table binds to the runtime
// integer divide helper.
const DivideBuiltin = "/"

// DivideHelper is the EABI runtime routine implementing signed division.
const DivideHelper = "__aeabi_idiv"

// Table maps names to symbols and stages evaluated subexpression values.
type Table struct {
	symbols map[string]Symbol
	parent  *Table
	returns []Symbol
	stopped bool
}

// NewGlobal returns a root table with the builtins registered.
func NewGlobal() *Table {
	t := New(nil)
	t.symbols[DivideBuiltin] = Symbol{
		Kind:     Function,
		Name:     DivideBuiltin,
		Register: DivideHelper,
		Arity:    2,
	}
	return t
}

// New returns an empty table whose lookups fall back to parent.
func New(parent *Table) *Table {
	return &Table{
		symbols: make(map[string]Symbol),
		parent:  parent,
	}
}

func (t *Table) Parent() *Table {
	return t.parent
}

func (t *Table) IsGlobal() bool {
	return t.parent == nil
}

// Declare binds name in this table. Rebinding a name of the same kind is
// allowed, except for functions; binding it under another kind is a
// redeclaration.
func (t *Table) Declare(name string, sym Symbol) error {
	if prev, ok := t.symbols[name]; ok {
		if prev.Kind == Function || prev.Kind != sym.Kind {
			return diag.New(diag.ErrRedeclaration, diag.Dual{Current: sym.Span, Previous: prev.Span},
				"Redeclaration of %s '%s' as %s", prev.Kind, name, sym.Kind)
		}
	}
	t.symbols[name] = sym
	return nil
}

// Lookup checks this table only.
func (t *Table) Lookup(name string) (Symbol, bool) {
	sym, ok := t.symbols[name]
	return sym, ok
}

// Resolve walks outward through parents and returns the first binding.
func (t *Table) Resolve(name string, at diag.Span) (Symbol, error) {
	sym, _, ok := t.find(name)
	if !ok {
		return Symbol{}, diag.New(diag.ErrUndefinedName, diag.Single{Span: at}, "Name '%s' is not defined", name)
	}
	return sym, nil
}

// Owner returns the table holding name's binding, or nil.
func (t *Table) Owner(name string) *Table {
	_, owner, _ := t.find(name)
	return owner
}

func (t *Table) find(name string) (Symbol, *Table, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if sym, ok := cur.symbols[name]; ok {
			return sym, cur, true
		}
	}
	return Symbol{}, nil, false
}

// PushReturn stages the value of the subexpression just compiled.
func (t *Table) PushReturn(sym Symbol) {
	t.returns = append(t.returns, sym)
}

// DrainReturns empties the staging list and returns its contents in push
// order.
func (t *Table) DrainReturns() []Symbol {
	out := t.returns
	t.returns = nil
	return out
}

// StopReturns records that a return has been compiled in the current block.
func (t *Table) StopReturns() {
	t.stopped = true
}

// ResumeReturns clears the return-stop flag and reports its previous value.
func (t *Table) ResumeReturns() bool {
	was := t.stopped
	t.stopped = false
	return was
}

func (t *Table) IsStopped() bool {
	return t.stopped
}
