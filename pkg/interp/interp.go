// Package interp evaluates alt-f4 programs directly from the syntax tree.
//
// Values are int64. Comparisons and logic yield 0 or 1, division truncates.
// Functions run in a fresh environment whose parent is the global one, so
// they see top-level names but not their caller's locals.
package interp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
	"github.com/GriffinCanCode/altf4-compiler/pkg/frontend"
	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

// MaxCallDepth bounds recursion in interpreted programs.
const MaxCallDepth = 10000

type binding struct {
	value int64
	fn    *frontend.FunctionDeclaration
	param bool
	span  diag.Span
}

func (b binding) kind() string {
	switch {
	case b.fn != nil:
		return "function"
	case b.param:
		return "argument"
	}
	return "variable"
}

type frame struct {
	names    map[string]binding
	parent   *frame
	returned bool
	result   int64
}

func newFrame(parent *frame) *frame {
	return &frame{names: make(map[string]binding), parent: parent}
}

func (f *frame) lookup(name string) (binding, bool) {
	for cur := f; cur != nil; cur = cur.parent {
		if b, ok := cur.names[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// Interpreter is a session. Globals survive between Run calls until Reset.
type Interpreter struct {
	out     io.Writer
	globals *frame
	depth   int
}

// New returns a session printing to out; nil means stdout.
func New(out io.Writer) *Interpreter {
	if out == nil {
		out = os.Stdout
	}
	return &Interpreter{out: out, globals: newFrame(nil)}
}

// Reset drops every global binding.
func (in *Interpreter) Reset() {
	in.globals = newFrame(nil)
}

// Run executes prog's statements against the session globals and returns
// the value of a top-level return, or 0.
func (in *Interpreter) Run(prog *frontend.Program) (int64, error) {
	in.globals.returned = false
	in.globals.result = 0
	in.depth = 0

	if err := in.execList(prog.Body, in.globals); err != nil {
		return 0, err
	}
	return in.globals.result, nil
}

// Run executes prog in a fresh session.
func Run(prog *frontend.Program, out io.Writer) (int64, error) {
	return New(out).Run(prog)
}

func (in *Interpreter) execList(stmts []frontend.Stmt, f *frame) error {
	for _, stmt := range stmts {
		if f.returned {
			return nil
		}
		if err := in.exec(stmt, f); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) exec(stmt frontend.Stmt, f *frame) error {
	switch n := stmt.(type) {
	case *frontend.FunctionDeclaration:
		return in.declare(n, f)

	case *frontend.BlockStatement:
		return in.execList(n.Body, f)

	case *frontend.VariableDeclaration:
		// Variables may be rebound; functions and arguments may not.
		if prev, ok := f.lookup(n.Name); ok && prev.kind() != "variable" {
			return diag.New(diag.ErrRedefinition, diag.Dual{Current: n.NameSpan, Previous: prev.span},
				"Cannot redefine %s '%s' as a variable", prev.kind(), n.Name)
		}
		v, err := in.eval(n.Init, f)
		if err != nil {
			return err
		}
		f.names[n.Name] = binding{value: v, span: n.NameSpan}
		return nil

	case *frontend.ReturnStatement:
		v, err := in.eval(n.Argument, f)
		if err != nil {
			return err
		}
		f.result = v
		f.returned = true
		return nil

	case *frontend.IfStatement:
		test, err := in.eval(n.Test, f)
		if err != nil {
			return err
		}
		if test != 0 {
			return in.execList(n.Consequent.Body, f)
		}
		if n.Alternate != nil {
			return in.exec(n.Alternate, f)
		}
		return nil

	case *frontend.CallExpression:
		_, err := in.call(n, f)
		return err

	default:
		return fmt.Errorf("interp: unexpected statement %T", stmt)
	}
}

func (in *Interpreter) declare(n *frontend.FunctionDeclaration, f *frame) error {
	if f != in.globals {
		return diag.New(diag.ErrNestedFunction, diag.Single{Span: n.NameSpan},
			"function %s declared inside another function", n.Name)
	}
	if prev, ok := f.names[n.Name]; ok {
		return diag.New(diag.ErrDuplicateFunction, diag.Dual{Current: n.NameSpan, Previous: prev.span},
			"duplicate function %s", n.Name)
	}
	f.names[n.Name] = binding{fn: n, span: n.NameSpan}
	return nil
}

func (in *Interpreter) eval(expr frontend.Expr, f *frame) (int64, error) {
	switch n := expr.(type) {
	case *frontend.Literal:
		return n.Value, nil

	case *frontend.Identifier:
		b, ok := f.lookup(n.Name)
		if !ok {
			return 0, diag.New(diag.ErrUndefinedName, diag.Single{Span: n.Range}, "%s is not defined", n.Name)
		}
		if b.fn != nil {
			return 0, diag.New(diag.ErrUnsupported, diag.Single{Span: n.Range},
				"function %s used as a value", n.Name)
		}
		return b.value, nil

	case *frontend.UnaryExpression:
		v, err := in.eval(n.Argument, f)
		if err != nil {
			return 0, err
		}
		if n.Op == frontend.Sub {
			return -v, nil
		}
		return v, nil

	case *frontend.BinaryExpression:
		return in.binary(n, f)

	case *frontend.CallExpression:
		return in.call(n, f)

	default:
		return 0, fmt.Errorf("interp: unexpected expression %T", expr)
	}
}

func (in *Interpreter) binary(n *frontend.BinaryExpression, f *frame) (int64, error) {
	left, err := in.eval(n.Left, f)
	if err != nil {
		return 0, err
	}
	right, err := in.eval(n.Right, f)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case frontend.Add:
		return left + right, nil
	case frontend.Sub:
		return left - right, nil
	case frontend.Mul:
		return left * right, nil
	case frontend.Div:
		if right == 0 {
			return 0, diag.New(diag.ErrDivisionByZero, diag.Single{Span: n.Range}, "division by zero")
		}
		return left / right, nil
	case frontend.Eq:
		return truth(left == right), nil
	case frontend.Gt:
		return truth(left > right), nil
	case frontend.Lt:
		return truth(left < right), nil
	case frontend.And:
		return truth(left != 0 && right != 0), nil
	case frontend.Or:
		return truth(left != 0 || right != 0), nil
	default:
		return 0, diag.New(diag.ErrUnsupported, diag.Single{Span: n.Range}, "operator %s", n.Op)
	}
}

func (in *Interpreter) call(n *frontend.CallExpression, f *frame) (int64, error) {
	args := make([]int64, 0, len(n.Arguments))
	for _, arg := range n.Arguments {
		v, err := in.eval(arg, f)
		if err != nil {
			return 0, err
		}
		args = append(args, v)
	}

	if n.Callee.Name == frontend.PrintName {
		return 0, in.print(args)
	}

	b, ok := f.lookup(n.Callee.Name)
	if !ok {
		return 0, diag.New(diag.ErrUndefinedName, diag.Single{Span: n.Callee.Range},
			"%s is not defined", n.Callee.Name)
	}
	if b.fn == nil {
		return 0, diag.New(diag.ErrNotCallable, diag.Dual{Current: n.Callee.Range, Previous: b.span},
			"%s is not a function", n.Callee.Name)
	}
	if len(args) != len(b.fn.Params) {
		return 0, diag.New(diag.ErrArgumentCount, diag.Single{Span: n.Range},
			"%s takes %d arguments, got %d", n.Callee.Name, len(b.fn.Params), len(args))
	}

	if in.depth >= MaxCallDepth {
		return 0, diag.New(diag.ErrNesting, diag.Single{Span: n.Range},
			"call depth exceeded %d", MaxCallDepth)
	}
	in.depth++
	defer func() { in.depth-- }()

	local := newFrame(in.globals)
	for i, param := range b.fn.Params {
		local.names[param.Name] = binding{value: args[i], param: true, span: param.Range}
	}
	logger.Debug("Calling function", "name", n.Callee.Name, "args", args)

	if err := in.execList(b.fn.Body.Body, local); err != nil {
		return 0, err
	}
	return local.result, nil
}

func (in *Interpreter) print(args []int64) error {
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = strconv.FormatInt(v, 10)
	}
	_, err := io.WriteString(in.out, strings.Join(parts, " ")+"\n")
	return err
}

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
