// Package ir - AST to pseudo-assembly lowering
// Design: Single pass over the tree, values threaded through the scope
// table's return staging, names derived from the tree instead of counters
package ir

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
	"github.com/GriffinCanCode/altf4-compiler/pkg/frontend"
	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
	"github.com/GriffinCanCode/altf4-compiler/pkg/scope"
)

type Builder struct {
	prog   *Program
	global *scope.Table
	scope  *scope.Table
	fn     *Function
	top    *Function
	path   []frontend.Node
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build lowers a parsed program. Each call starts from a fresh global scope,
// so building the same tree twice yields identical output.
func (b *Builder) Build(prog *frontend.Program) (*Program, error) {
	b.prog = &Program{}
	b.global = scope.NewGlobal()
	b.scope = b.global
	b.top = nil
	b.path = []frontend.Node{prog}

	logger.Debug("Building pseudo code from AST", "statements", len(prog.Body))
	for _, stmt := range prog.Body {
		if fnDecl, ok := stmt.(*frontend.FunctionDeclaration); ok {
			if err := b.compile(fnDecl); err != nil {
				return nil, err
			}
			continue
		}
		if b.global.IsStopped() {
			continue
		}
		if b.top == nil {
			b.top = &Function{}
		}
		b.fn = b.top
		if err := b.compile(stmt); err != nil {
			return nil, err
		}
		b.scope.DrainReturns()
	}

	if b.top != nil {
		b.prog.Functions = append([]*Function{b.top}, b.prog.Functions...)
	}
	logger.Info("Pseudo code generation complete", "functions", len(b.prog.Functions))
	return b.prog, nil
}

// compile dispatches on the node type. The path records the nodes being
// compiled so lowering rules can see their context.
func (b *Builder) compile(node frontend.Node) error {
	b.path = append(b.path, node)
	defer func() { b.path = b.path[:len(b.path)-1] }()

	switch n := node.(type) {
	case *frontend.FunctionDeclaration:
		return b.function(n)
	case *frontend.BlockStatement:
		return b.block(n)
	case *frontend.VariableDeclaration:
		return b.variable(n)
	case *frontend.ReturnStatement:
		return b.returnStatement(n)
	case *frontend.IfStatement:
		return b.ifStatement(n)
	case *frontend.BinaryExpression:
		return b.binary(n)
	case *frontend.UnaryExpression:
		return b.unary(n)
	case *frontend.CallExpression:
		return b.call(n)
	case *frontend.Identifier:
		return b.identifier(n)
	case *frontend.Literal:
		return b.literal(n.Value, n.Raw, n.Range)
	default:
		panic(fmt.Sprintf("ir: no lowering for %T", node))
	}
}

func (b *Builder) function(fn *frontend.FunctionDeclaration) error {
	if !b.scope.IsGlobal() {
		return diag.New(diag.ErrNestedFunction, diag.Single{Span: fn.NameSpan},
			"Function '%s' must be declared at the top level", fn.Name)
	}
	if prev, ok := b.scope.Lookup(fn.Name); ok {
		return diag.New(diag.ErrDuplicateFunction, diag.Dual{Current: fn.NameSpan, Previous: prev.Span},
			"Redeclaration of '%s'", fn.Name)
	}
	if len(fn.Params) > MaxParams {
		return diag.New(diag.ErrTooManyParameters, diag.Single{Span: fn.NameSpan},
			"Function '%s' takes %d parameters, at most %d are supported", fn.Name, len(fn.Params), MaxParams)
	}

	local := scope.New(b.scope)
	for i, param := range fn.Params {
		if prev, ok := local.Lookup(param.Name); ok {
			return diag.New(diag.ErrDuplicateArgument, diag.Dual{Current: param.Range, Previous: prev.Span},
				"Duplicate argument '%s' in function '%s'", param.Name, fn.Name)
		}
		if err := local.Declare(param.Name, scope.Symbol{
			Kind:     scope.Argument,
			Name:     param.Name,
			Register: ArgRegs[i],
			Span:     param.Range,
		}); err != nil {
			return err
		}
	}

	// Bound before the body so the function can call itself.
	if err := b.scope.Declare(fn.Name, scope.Symbol{
		Kind:     scope.Function,
		Name:     fn.Name,
		Register: fn.Name,
		Arity:    len(fn.Params),
		Span:     fn.NameSpan,
	}); err != nil {
		return err
	}

	unit := &Function{Name: fn.Name, Params: len(fn.Params)}
	outerFn, outerScope := b.fn, b.scope
	b.fn, b.scope = unit, local
	defer func() { b.fn, b.scope = outerFn, outerScope }()

	logger.Debug("Building function", "name", fn.Name, "params", len(fn.Params))
	b.emit(OpGlobal, Label(fn.Name))
	b.emit(OpLabel, Label(fn.Name))
	b.emit(OpPrologue)
	if err := b.compile(fn.Body); err != nil {
		logger.Error("Failed to build function", "name", fn.Name, "error", err)
		return err
	}
	b.emit(OpEpilogue, Label(EndLabel(fn.Name)))

	b.prog.Functions = append(b.prog.Functions, unit)
	logger.LogPseudoGeneration(fn.Name, len(unit.Insts))
	return nil
}

// block compiles statements until one of them returns.
func (b *Builder) block(blk *frontend.BlockStatement) error {
	for _, stmt := range blk.Body {
		if b.scope.IsStopped() {
			break
		}
		if err := b.compile(stmt); err != nil {
			return err
		}
		b.scope.DrainReturns()
	}
	return nil
}

func (b *Builder) variable(v *frontend.VariableDeclaration) error {
	if sym, err := b.scope.Resolve(v.Name, v.NameSpan); err == nil && sym.Kind != scope.Variable {
		return diag.New(diag.ErrRedefinition, diag.Dual{Current: v.NameSpan, Previous: sym.Span},
			"Cannot redefine %s '%s' as a variable", sym.Kind, v.Name)
	}

	val, err := b.value(v.Init)
	if err != nil {
		return err
	}

	reg := RegisterFor(v.Name)
	if val.Register != reg {
		b.emit(OpMov, Sym(reg), operand(val))
	}
	return b.scope.Declare(v.Name, scope.Symbol{
		Kind:     scope.Variable,
		Name:     v.Name,
		Register: reg,
		Span:     v.NameSpan,
	})
}

func (b *Builder) returnStatement(r *frontend.ReturnStatement) error {
	val, err := b.value(r.Argument)
	if err != nil {
		return err
	}
	b.emit(OpMov, Reg(RetReg), operand(val))
	if !b.fn.IsTopLevel() && b.enclosingIfs() > 0 {
		b.emit(OpB, Label(EndLabel(b.fn.Name)))
	}
	b.scope.StopReturns()
	return nil
}

func (b *Builder) ifStatement(s *frontend.IfStatement) error {
	if b.fn.IsTopLevel() {
		at := diag.Span{Start: s.Range.Start, End: s.Range.Start + 1, Line: s.Range.Line}
		return diag.New(diag.ErrIfOutsideFunction, diag.Single{Span: at}, "If statement outside of a function")
	}

	falseLabel, endLabel := IfLabels(b.fn.Name, b.enclosingIfs(), s.Range)

	test, err := b.value(s.Test)
	if err != nil {
		return err
	}
	b.emit(OpCmp, operand(test), Imm(0))
	if s.Alternate == nil {
		b.emit(OpBeq, Label(endLabel))
	} else {
		b.emit(OpBeq, Label(falseLabel))
	}

	if err := b.compile(s.Consequent); err != nil {
		return err
	}
	consReturned := b.scope.ResumeReturns()

	if s.Alternate == nil {
		b.emit(OpLabel, Label(endLabel))
		return nil
	}

	b.emit(OpB, Label(endLabel))
	b.emit(OpLabel, Label(falseLabel))
	if err := b.compile(s.Alternate); err != nil {
		return err
	}
	altReturned := b.scope.ResumeReturns()
	b.emit(OpLabel, Label(endLabel))

	// Code after the if is dead only when every arm returned.
	if consReturned && altReturned {
		b.scope.StopReturns()
	}
	return nil
}

func (b *Builder) binary(e *frontend.BinaryExpression) error {
	first, second := e.Right, e.Left
	if depth(e.Left) > depth(e.Right) {
		first, second = e.Left, e.Right
	}
	firstVal, err := b.value(first)
	if err != nil {
		return err
	}
	secondVal, err := b.value(second)
	if err != nil {
		return err
	}
	left, right := secondVal, firstVal
	if first == e.Left {
		left, right = firstVal, secondVal
	}

	if e.Op == frontend.Div {
		return b.divide(e, left, right)
	}

	name := b.contextName(ResultName(right.Name, left.Name, e.Range))
	res := temp(name)

	switch e.Op {
	case frontend.Add:
		b.emit(OpAdd, operand(res), operand(right), operand(left))
	case frontend.Sub:
		b.emit(OpSub, operand(res), operand(left), operand(right))
	case frontend.Mul:
		b.emit(OpMul, operand(res), operand(right), operand(left))
	case frontend.And:
		b.emit(OpAnd, operand(res), operand(right), operand(left))
	case frontend.Or:
		b.emit(OpOrr, operand(res), operand(right), operand(left))
	case frontend.Eq, frontend.Gt, frontend.Lt:
		res = b.compare(e, res, left, right)
	default:
		panic(fmt.Sprintf("ir: unknown binary operator %v", e.Op))
	}

	b.scope.PushReturn(res)
	return nil
}

// compare emits the branch-over idiom leaving 0 or 1 in res.
func (b *Builder) compare(e *frontend.BinaryExpression, res, left, right scope.Symbol) scope.Symbol {
	target := res
	if res.Register == left.Register || res.Register == right.Register {
		// Pre-setting the result would clobber an operand.
		target = temp(ResultName(right.Name, left.Name, e.Range))
	}

	var branch Opcode
	var name string
	switch e.Op {
	case frontend.Eq:
		branch, name = OpBeq, "eq"
	case frontend.Gt:
		branch, name = OpBgt, "gt"
	case frontend.Lt:
		branch, name = OpBlt, "lt"
	}
	label := CompareLabel(b.fn.Name, name, e.Range)

	b.emit(OpMov, operand(target), Imm(1))
	if e.Op == frontend.Eq {
		b.emit(OpCmp, operand(right), operand(left))
	} else {
		b.emit(OpCmp, operand(left), operand(right))
	}
	b.emit(branch, Label(label))
	b.emit(OpMov, operand(target), Imm(0))
	b.emit(OpLabel, Label(label))

	if target.Register != res.Register {
		b.emit(OpMov, operand(res), operand(target))
	}
	return res
}

// divide lowers left / right to a call of the runtime divide helper.
func (b *Builder) divide(e *frontend.BinaryExpression, left, right scope.Symbol) error {
	helper, err := b.scope.Resolve(scope.DivideBuiltin, e.Range)
	if err != nil {
		return err
	}
	res := temp(ResultName(right.Name, left.Name, e.Range))
	b.invoke(helper.Register, []scope.Symbol{left, right}, res.Name)
	b.scope.PushReturn(res)
	return nil
}

func (b *Builder) unary(e *frontend.UnaryExpression) error {
	if e.Op == frontend.Add {
		// The operand takes over the unary's place in the path.
		b.path = b.path[:len(b.path)-1]
		defer func() { b.path = append(b.path, e) }()
		return b.compile(e.Argument)
	}

	if lit, ok := e.Argument.(*frontend.Literal); ok {
		return b.literal(-lit.Value, "-"+lit.Raw, e.Range)
	}

	val, err := b.value(e.Argument)
	if err != nil {
		return err
	}
	zero := temp(LiteralName("0", e.Range))
	res := temp(b.contextName(ResultName(val.Name, "0", e.Range)))
	b.emit(OpMov, operand(zero), Imm(0))
	b.emit(OpSub, operand(res), operand(zero), operand(val))
	b.scope.PushReturn(res)
	return nil
}

func (b *Builder) call(c *frontend.CallExpression) error {
	if c.Callee.Name == frontend.PrintName {
		return diag.New(diag.ErrUnsupported, diag.Single{Span: c.Callee.Range},
			"'%s' is only available in the interpreter", frontend.PrintName)
	}
	callee, err := b.scope.Resolve(c.Callee.Name, c.Callee.Range)
	if err != nil {
		return err
	}
	if callee.Kind != scope.Function {
		return diag.New(diag.ErrNotCallable, diag.Dual{Current: c.Callee.Range, Previous: callee.Span},
			"'%s' is %s %s, not a function", c.Callee.Name, article(callee.Kind), callee.Kind)
	}
	if len(c.Arguments) != callee.Arity {
		return diag.New(diag.ErrArgumentCount, diag.Single{Span: c.Range},
			"Function '%s' takes %d arguments, got %d", c.Callee.Name, callee.Arity, len(c.Arguments))
	}

	args := make([]scope.Symbol, 0, len(c.Arguments))
	for _, arg := range c.Arguments {
		val, err := b.value(arg)
		if err != nil {
			return err
		}
		args = append(args, val)
	}

	if b.isStatement() {
		b.invoke(callee.Register, args, "")
		return nil
	}

	res := temp(CallResultName(c.Callee.Name, c.Range))
	b.invoke(callee.Register, args, res.Name)
	b.scope.PushReturn(res)
	return nil
}

// invoke emits the call sequence. The result move is skipped when result is
// empty.
func (b *Builder) invoke(target string, args []scope.Symbol, result string) {
	clobbered := lo.Times(len(args), func(i int) Operand { return Reg(ArgRegs[i]) })

	b.emit(OpSave, clobbered...)
	for i, arg := range args {
		b.emit(OpMov, Reg(ArgRegs[i]), operand(arg))
	}
	b.emit(OpBl, Label(target))
	if result != "" {
		b.emit(OpMov, Sym(RegisterFor(result)), Reg(RetReg))
	}
	b.emit(OpRestore, clobbered...)
}

func (b *Builder) identifier(id *frontend.Identifier) error {
	sym, err := b.scope.Resolve(id.Name, id.Range)
	if err != nil {
		return err
	}
	switch sym.Kind {
	case scope.Function:
		return diag.New(diag.ErrUnsupported, diag.Single{Span: id.Range},
			"Function '%s' cannot be used as a value", id.Name)
	case scope.Variable, scope.Literal:
		if !b.fn.IsTopLevel() && b.scope.Owner(id.Name) == b.global {
			return diag.New(diag.ErrCapture, diag.Dual{Current: id.Range, Previous: sym.Span},
				"Top-level variable '%s' is not accessible inside function '%s'", id.Name, b.fn.Name)
		}
	}
	b.scope.PushReturn(sym)
	return nil
}

// literal materialises an immediate. A literal that is a variable's whole
// initializer is written straight into the variable's register.
func (b *Builder) literal(value int64, raw string, span diag.Span) error {
	sym := scope.Symbol{Kind: scope.Literal, Span: span}
	if v, ok := b.parent().(*frontend.VariableDeclaration); ok {
		sym.Name = v.Name
		sym.Register = RegisterFor(v.Name)
	} else {
		sym.Name = LiteralName(raw, span)
		sym.Register = RegisterFor(sym.Name)
		if err := b.scope.Declare(sym.Name, sym); err != nil {
			return err
		}
	}

	b.emit(OpMov, operand(sym), Imm(value))
	b.scope.PushReturn(sym)
	return nil
}

// Helpers

func (b *Builder) emit(op Opcode, args ...Operand) {
	b.fn.Insts = append(b.fn.Insts, New(op, args...))
}

// value compiles an expression and drains the single value it produced.
func (b *Builder) value(e frontend.Expr) (scope.Symbol, error) {
	if err := b.compile(e); err != nil {
		return scope.Symbol{}, err
	}
	vals := b.scope.DrainReturns()
	if len(vals) != 1 {
		panic(fmt.Sprintf("ir: %T produced %d values", e, len(vals)))
	}
	return vals[0], nil
}

// parent returns the node enclosing the one being compiled.
func (b *Builder) parent() frontend.Node {
	if len(b.path) < 2 {
		return nil
	}
	return b.path[len(b.path)-2]
}

// contextName picks the result name for the expression being compiled: the
// variable it initializes, the return slot, or fallback.
func (b *Builder) contextName(fallback string) string {
	switch p := b.parent().(type) {
	case *frontend.VariableDeclaration:
		return p.Name
	case *frontend.ReturnStatement:
		return ReturnName()
	}
	return fallback
}

// isStatement reports whether the node being compiled is a statement whose
// value is discarded.
func (b *Builder) isStatement() bool {
	switch b.parent().(type) {
	case *frontend.Program, *frontend.BlockStatement:
		return true
	}
	return false
}

// enclosingIfs counts the if statements enclosing the node being compiled.
func (b *Builder) enclosingIfs() int {
	return lo.CountBy(b.path[:len(b.path)-1], func(n frontend.Node) bool {
		_, ok := n.(*frontend.IfStatement)
		return ok
	})
}

// depth returns the binary-expression nesting of e, walking the tree with an
// explicit stack.
func depth(e frontend.Expr) int {
	type item struct {
		expr  frontend.Expr
		level int
	}
	deepest := 0
	stack := []item{{e, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch n := it.expr.(type) {
		case *frontend.BinaryExpression:
			level := it.level + 1
			deepest = max(deepest, level)
			stack = append(stack, item{n.Left, level}, item{n.Right, level})
		case *frontend.UnaryExpression:
			stack = append(stack, item{n.Argument, it.level})
		}
	}
	return deepest
}

func temp(name string) scope.Symbol {
	return scope.Symbol{Kind: scope.Variable, Name: name, Register: RegisterFor(name)}
}

func operand(sym scope.Symbol) Operand {
	if sym.Kind == scope.Argument {
		return Arg(sym.Register)
	}
	return Sym(sym.Register)
}

func article(k scope.Kind) string {
	if k == scope.Argument {
		return "an"
	}
	return "a"
}
