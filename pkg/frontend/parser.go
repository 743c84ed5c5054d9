// Package frontend - Recursive descent parser for alt-f4
// Design: Predictive parsing, newline-insensitive, fail on first error
package frontend

import (
	"strconv"

	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
)

// DefaultMaxDepth bounds statement and expression nesting.
const DefaultMaxDepth = 256

type Parser struct {
	source   string
	tokens   []Token
	pos      int
	current  Token
	depth    int
	maxDepth int
}

func NewParser(source string) *Parser {
	return &Parser{
		source:   source,
		maxDepth: DefaultMaxDepth,
	}
}

// SetMaxDepth overrides the nesting limit. Values below 1 are ignored.
func (p *Parser) SetMaxDepth(n int) {
	if n > 0 {
		p.maxDepth = n
	}
}

// TokenCount reports how many tokens the last Parse consumed.
func (p *Parser) TokenCount() int {
	return len(p.tokens)
}

// Parse is shorthand for NewParser(source).Parse().
func Parse(source string) (*Program, error) {
	return NewParser(source).Parse()
}

func (p *Parser) Parse() (*Program, error) {
	tokens, err := Tokenize(p.source)
	if err != nil {
		return nil, err
	}

	p.tokens = tokens
	p.pos = 0
	p.current = tokens[0]

	prog := &Program{Range: Span{Start: 0, End: len(p.source), Line: 1}}
	for {
		p.skipNewlines()
		if p.check(EOF) {
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmt)
	}

	return prog, nil
}

func (p *Parser) statement() (Stmt, error) {
	switch p.current.Type {
	case FUNC:
		return p.function()
	case VAR:
		return p.variable()
	case RETURN:
		return p.returnStatement()
	case IF:
		return p.ifStatement()
	case CALL:
		return p.call()
	default:
		return nil, p.errorAt(p.current, "invalid syntax: unexpected %s", describe(p.current))
	}
}

func (p *Parser) function() (Stmt, error) {
	start := p.advance()

	name, err := p.consume(IDENT, "expected function name after 'ƒ'")
	if err != nil {
		return nil, err
	}

	var params []*Identifier
	for p.check(SEP) {
		p.advance()
		if _, err := p.consume(PARAM, "expected 'α' before parameter name"); err != nil {
			return nil, err
		}
		param, err := p.consume(IDENT, "expected parameter name after 'α'")
		if err != nil {
			return nil, err
		}
		params = append(params, &Identifier{Name: param.Lexeme, Range: param.Span})
	}

	open, err := p.consume(BLOCK, "expected '––>' after function header")
	if err != nil {
		return nil, err
	}
	body, end, err := p.block(open, FUNC_END)
	if err != nil {
		return nil, err
	}

	return &FunctionDeclaration{
		Name:     name.Lexeme,
		NameSpan: name.Span,
		Params:   params,
		Body:     body,
		Range:    start.Span.Join(end.Span),
	}, nil
}

// block parses statements up to and including the terminator.
func (p *Parser) block(open Token, terminator TokenType) (*BlockStatement, Token, error) {
	if err := p.enter(open); err != nil {
		return nil, Token{}, err
	}
	defer p.leave()

	blk := &BlockStatement{}
	for {
		p.skipNewlines()
		if p.check(terminator) {
			end := p.advance()
			blk.Range = open.Span.Join(end.Span)
			return blk, end, nil
		}
		if p.check(EOF) {
			return nil, Token{}, p.errorAt(p.current, "invalid syntax: expected '%s' before end of file", terminator)
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, Token{}, err
		}
		blk.Body = append(blk.Body, stmt)
	}
}

func (p *Parser) variable() (Stmt, error) {
	start := p.advance()

	name, err := p.consume(IDENT, "expected variable name after '📁'")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(ASSIGN, "expected '=' after variable name"); err != nil {
		return nil, err
	}
	init, err := p.expression()
	if err != nil {
		return nil, err
	}

	return &VariableDeclaration{
		Name:     name.Lexeme,
		NameSpan: name.Span,
		Init:     init,
		Range:    start.Span.Join(init.Span()),
	}, nil
}

func (p *Parser) returnStatement() (Stmt, error) {
	start := p.advance()
	arg, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ReturnStatement{Argument: arg, Range: start.Span.Join(arg.Span())}, nil
}

// ifStatement parses '?' test '––>' body '¿' and any else-if/else tail.
func (p *Parser) ifStatement() (Stmt, error) {
	start := p.advance()
	return p.conditional(start)
}

func (p *Parser) conditional(start Token) (*IfStatement, error) {
	test, err := p.expression()
	if err != nil {
		return nil, err
	}
	open, err := p.consume(BLOCK, "expected '––>' after if condition")
	if err != nil {
		return nil, err
	}
	cons, end, err := p.block(open, IF_END)
	if err != nil {
		return nil, err
	}

	stmt := &IfStatement{Test: test, Consequent: cons, Range: start.Span.Join(end.Span)}

	p.skipNewlines()
	switch p.current.Type {
	case ELIF:
		elif := p.advance()
		if err := p.enter(elif); err != nil {
			return nil, err
		}
		alt, err := p.conditional(elif)
		p.leave()
		if err != nil {
			return nil, err
		}
		stmt.Alternate = alt
		stmt.Range = stmt.Range.Join(alt.Range)
	case ELSE:
		p.advance()
		open, err := p.consume(BLOCK, "expected '––>' after '⇐'")
		if err != nil {
			return nil, err
		}
		alt, _, err := p.block(open, IF_END)
		if err != nil {
			return nil, err
		}
		stmt.Alternate = alt
		stmt.Range = stmt.Range.Join(alt.Range)
	}
	return stmt, nil
}

// call parses '✆' callee [['|'] expr ('|' expr)*] '✆'.
func (p *Parser) call() (*CallExpression, error) {
	start := p.advance()

	var callee *Identifier
	switch p.current.Type {
	case IDENT, PRINT:
		tok := p.advance()
		callee = &Identifier{Name: tok.Lexeme, Range: tok.Span}
	default:
		return nil, p.errorAt(p.current, "invalid syntax: expected function name after '✆'")
	}

	// '✆ f ✆' is the only zero-argument form; after '|' an argument must
	// follow, so a '✆' there opens a nested call.
	hasSep := p.check(SEP)
	if hasSep {
		p.advance()
	}

	var args []Expr
	if hasSep || !p.check(CALL) {
		for {
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.check(SEP) {
				break
			}
			p.advance()
		}
	}

	end, err := p.consume(CALL, "expected '✆' to close call")
	if err != nil {
		return nil, err
	}
	return &CallExpression{Callee: callee, Arguments: args, Range: start.Span.Join(end.Span)}, nil
}

// Expressions, lowest precedence first:
//
//	expr  := cmp (('∧'|'∨') cmp)*
//	cmp   := sum (('▲'|'▼'|'==') sum)?
//	sum   := term (('+'|'-') term)*
//	term  := unary (('*'|'/') unary)*
//	unary := ('+'|'-') unary | primary

var (
	logicOps = map[TokenType]Operator{AND: And, OR: Or}
	sumOps   = map[TokenType]Operator{PLUS: Add, MINUS: Sub}
	termOps  = map[TokenType]Operator{STAR: Mul, SLASH: Div}
)

func (p *Parser) expression() (Expr, error) {
	return p.binaryChain(p.comparison, logicOps)
}

func (p *Parser) comparison() (Expr, error) {
	left, err := p.sum()
	if err != nil {
		return nil, err
	}
	var op Operator
	switch p.current.Type {
	case EQ:
		op = Eq
	case GT:
		op = Gt
	case LT:
		op = Lt
	default:
		return left, nil
	}
	p.advance()
	right, err := p.sum()
	if err != nil {
		return nil, err
	}
	return &BinaryExpression{Op: op, Left: left, Right: right, Range: left.Span().Join(right.Span())}, nil
}

func (p *Parser) sum() (Expr, error) {
	return p.binaryChain(p.term, sumOps)
}

func (p *Parser) term() (Expr, error) {
	return p.binaryChain(p.unary, termOps)
}

// binaryChain parses a left-associative run of operands. Each link deepens
// the tree by one, so it counts against the nesting limit.
func (p *Parser) binaryChain(operand func() (Expr, error), ops map[TokenType]Operator) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	links := 0
	defer func() { p.depth -= links }()

	for {
		op, ok := ops[p.current.Type]
		if !ok {
			return left, nil
		}
		tok := p.advance()
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		links++
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Op: op, Left: left, Right: right, Range: left.Span().Join(right.Span())}
	}
}

func (p *Parser) unary() (Expr, error) {
	var op Operator
	switch p.current.Type {
	case PLUS:
		op = Add
	case MINUS:
		op = Sub
	default:
		return p.primary()
	}

	tok := p.advance()
	if err := p.enter(tok); err != nil {
		return nil, err
	}
	defer p.leave()

	arg, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &UnaryExpression{Op: op, Argument: arg, Range: tok.Span.Join(arg.Span())}, nil
}

func (p *Parser) primary() (Expr, error) {
	switch p.current.Type {
	case INT:
		tok := p.advance()
		val, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, p.errorAt(tok, "invalid syntax: integer literal %s out of range", tok.Lexeme)
		}
		return &Literal{Value: val, Raw: tok.Lexeme, Range: tok.Span}, nil

	case IDENT:
		tok := p.advance()
		return &Identifier{Name: tok.Lexeme, Range: tok.Span}, nil

	case CALL:
		return p.call()

	case LPAREN:
		open := p.advance()
		if err := p.enter(open); err != nil {
			return nil, err
		}
		defer p.leave()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(RPAREN, "expected '>' to close '<'"); err != nil {
			return nil, err
		}
		return inner, nil

	case POWER:
		return nil, diag.New(diag.ErrUnsupported, diag.TokenAt{Span: p.current.Span, Lexeme: p.current.Lexeme},
			"unsupported operator '⚡'")

	default:
		return nil, p.errorAt(p.current, "invalid syntax: expected expression, found %s", describe(p.current))
	}
}

// Helpers

func (p *Parser) check(typ TokenType) bool {
	return p.current.Type == typ
}

func (p *Parser) advance() Token {
	tok := p.current
	if p.pos < len(p.tokens)-1 {
		p.pos++
		p.current = p.tokens[p.pos]
	}
	return tok
}

func (p *Parser) consume(typ TokenType, msg string) (Token, error) {
	if p.check(typ) {
		return p.advance(), nil
	}
	return Token{}, p.errorAt(p.current, "invalid syntax: %s, found %s", msg, describe(p.current))
}

func (p *Parser) skipNewlines() {
	for p.check(NEWLINE) {
		p.advance()
	}
}

func (p *Parser) enter(at Token) error {
	p.depth++
	if p.depth > p.maxDepth {
		return diag.New(diag.ErrNesting, diag.TokenAt{Span: at.Span, Lexeme: at.Lexeme},
			"nesting deeper than %d levels", p.maxDepth)
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

func (p *Parser) errorAt(tok Token, format string, args ...any) error {
	return diag.New(diag.ErrSyntax, diag.TokenAt{Span: tok.Span, Lexeme: tok.Lexeme}, format, args...)
}

func describe(tok Token) string {
	switch tok.Type {
	case EOF, NEWLINE:
		return tok.Type.String()
	case INT, IDENT:
		return tok.Type.String() + " '" + tok.Lexeme + "'"
	default:
		return "'" + tok.Lexeme + "'"
	}
}
