// Package frontend implements alt-f4 lexing, parsing and AST construction.
//
// Design: The AST is a closed set of node types. Every node records the byte
// range it was parsed from so later stages can anchor diagnostics and derive
// stable, unique names from it.
package frontend

import (
	"fmt"

	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
)

// Span is the source range every node carries.
type Span = diag.Span

// Node is implemented by every AST node. The unexported marker keeps the set
// closed to this package.
type Node interface {
	Span() Span
	node()
}

type Stmt interface {
	Node
	stmt()
}

type Expr interface {
	Node
	expr()
}

// Program is the root of a parsed source file.
type Program struct {
	Body  []Stmt
	Range Span
}

func (p *Program) Span() Span { return p.Range }
func (*Program) node()        {}

// Statements

type FunctionDeclaration struct {
	Name     string
	NameSpan Span
	Params   []*Identifier
	Body     *BlockStatement
	Range    Span
}

func (f *FunctionDeclaration) Span() Span { return f.Range }
func (*FunctionDeclaration) node()        {}
func (*FunctionDeclaration) stmt()        {}

type BlockStatement struct {
	Body  []Stmt
	Range Span
}

func (b *BlockStatement) Span() Span { return b.Range }
func (*BlockStatement) node()        {}
func (*BlockStatement) stmt()        {}

type VariableDeclaration struct {
	Name     string
	NameSpan Span
	Init     Expr
	Range    Span
}

func (v *VariableDeclaration) Span() Span { return v.Range }
func (*VariableDeclaration) node()        {}
func (*VariableDeclaration) stmt()        {}

type ReturnStatement struct {
	Argument Expr
	Range    Span
}

func (r *ReturnStatement) Span() Span { return r.Range }
func (*ReturnStatement) node()        {}
func (*ReturnStatement) stmt()        {}

// IfStatement's Alternate is nil, a *BlockStatement (else) or an
// *IfStatement (else-if).
type IfStatement struct {
	Test       Expr
	Consequent *BlockStatement
	Alternate  Stmt
	Range      Span
}

func (i *IfStatement) Span() Span { return i.Range }
func (*IfStatement) node()        {}
func (*IfStatement) stmt()        {}

// Expressions

type BinaryExpression struct {
	Op    Operator
	Left  Expr
	Right Expr
	Range Span
}

func (b *BinaryExpression) Span() Span { return b.Range }
func (*BinaryExpression) node()        {}
func (*BinaryExpression) expr()        {}

type UnaryExpression struct {
	Op       Operator
	Argument Expr
	Range    Span
}

func (u *UnaryExpression) Span() Span { return u.Range }
func (*UnaryExpression) node()        {}
func (*UnaryExpression) expr()        {}

// CallExpression is both an expression and, when its value is discarded, a
// statement.
type CallExpression struct {
	Callee    *Identifier
	Arguments []Expr
	Range     Span
}

func (c *CallExpression) Span() Span { return c.Range }
func (*CallExpression) node()        {}
func (*CallExpression) expr()        {}
func (*CallExpression) stmt()        {}

// PrintName is the callee name of the print builtin.
const PrintName = "🖨"

type Identifier struct {
	Name  string
	Range Span
}

func (i *Identifier) Span() Span { return i.Range }
func (*Identifier) node()        {}
func (*Identifier) expr()        {}

type Literal struct {
	Value int64
	Raw   string
	Range Span
}

func (l *Literal) Span() Span { return l.Range }
func (*Literal) node()        {}
func (*Literal) expr()        {}

// Operator is a binary or unary operator.
type Operator int

const (
	Add Operator = iota
	Sub
	Mul
	Div
	Eq
	Gt
	Lt
	And
	Or
)

var operatorGlyphs = [...]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Eq:  "==",
	Gt:  "▲",
	Lt:  "▼",
	And: "∧",
	Or:  "∨",
}

func (op Operator) String() string {
	if int(op) < len(operatorGlyphs) {
		return operatorGlyphs[op]
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// IsComparison reports whether op yields a 0/1 truth value from a compare.
func (op Operator) IsComparison() bool {
	return op == Eq || op == Gt || op == Lt
}
