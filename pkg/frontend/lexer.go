// Package frontend - Lexer for the alt-f4 glyph language
// Design: Hand-written scanner over bytes, glyphs matched by prefix
package frontend

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
)

type TokenType int

const (
	EOF TokenType = iota
	NEWLINE
	ILLEGAL

	// Literals
	INT
	IDENT

	// Keywords
	FUNC     // ƒ
	PARAM    // α
	BLOCK    // ––>
	FUNC_END // ––
	VAR      // 📁
	RETURN   // ⮐
	CALL     // ✆
	PRINT    // 🖨
	IF       // ?
	ELIF     // ∐
	ELSE     // ⇐
	IF_END   // ¿

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	POWER  // ⚡
	EQ     // ==
	GT     // ▲
	LT     // ▼
	AND    // ∧
	OR     // ∨
	ASSIGN // =

	// Delimiters
	SEP    // |
	LPAREN // <
	RPAREN // >
)

var tokenNames = map[TokenType]string{
	EOF: "end of file", NEWLINE: "newline", ILLEGAL: "illegal character",
	INT: "integer", IDENT: "identifier",
	FUNC: "ƒ", PARAM: "α", BLOCK: "––>", FUNC_END: "––", VAR: "📁",
	RETURN: "⮐", CALL: "✆", PRINT: "🖨", IF: "?", ELIF: "∐", ELSE: "⇐", IF_END: "¿",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", POWER: "⚡",
	EQ: "==", GT: "▲", LT: "▼", AND: "∧", OR: "∨", ASSIGN: "=",
	SEP: "|", LPAREN: "<", RPAREN: ">",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// glyphs is scanned in order; longer lexemes sharing a prefix come first.
var glyphs = []struct {
	lexeme string
	typ    TokenType
}{
	{"––>", BLOCK},
	{"––", FUNC_END},
	{"==", EQ},
	{"=", ASSIGN},
	{"ƒ", FUNC},
	{"α", PARAM},
	{"📁", VAR},
	{"⮐", RETURN},
	{"✆", CALL},
	{"🖨", PRINT},
	{"?", IF},
	{"∐", ELIF},
	{"⇐", ELSE},
	{"¿", IF_END},
	{"+", PLUS},
	{"-", MINUS},
	{"*", STAR},
	{"/", SLASH},
	{"⚡", POWER},
	{"▲", GT},
	{"▼", LT},
	{"∧", AND},
	{"∨", OR},
	{"|", SEP},
	{"<", LPAREN},
	{">", RPAREN},
}

type Token struct {
	Type   TokenType
	Lexeme string
	Span   Span
}

type Lexer struct {
	source string
	start  int
	pos    int
	line   int
}

func NewLexer(source string) *Lexer {
	return &Lexer{
		source: source,
		line:   1,
	}
}

// Next returns the next token. At the end of input it keeps returning EOF.
func (l *Lexer) Next() Token {
	l.skipWhitespace()
	l.start = l.pos

	if l.isAtEnd() {
		return l.makeToken(EOF)
	}

	c := l.source[l.pos]
	switch {
	case c == '\n':
		l.pos++
		tok := l.makeToken(NEWLINE)
		l.line++
		return tok
	case isDigit(c):
		for !l.isAtEnd() && isDigit(l.peek()) {
			l.pos++
		}
		return l.makeToken(INT)
	case isAlpha(c):
		for !l.isAtEnd() && (isAlpha(l.peek()) || isDigit(l.peek()) || l.peek() == '_') {
			l.pos++
		}
		return l.makeToken(IDENT)
	}

	rest := l.source[l.pos:]
	for _, g := range glyphs {
		if strings.HasPrefix(rest, g.lexeme) {
			l.pos += len(g.lexeme)
			return l.makeToken(g.typ)
		}
	}

	_, size := utf8.DecodeRuneInString(rest)
	l.pos += size
	return l.makeToken(ILLEGAL)
}

// Tokenize scans the whole source. An unrecognised character is reported as
// a syntax diagnostic anchored at it.
func Tokenize(source string) ([]Token, error) {
	l := NewLexer(source)
	var tokens []Token
	for {
		tok := l.Next()
		if tok.Type == ILLEGAL {
			return nil, diag.New(diag.ErrSyntax, diag.TokenAt{Span: tok.Span, Lexeme: tok.Lexeme},
				"invalid syntax: unexpected character %q", tok.Lexeme)
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.pos++
		case '#':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) peek() byte {
	return l.source[l.pos]
}

func (l *Lexer) makeToken(typ TokenType) Token {
	return Token{
		Type:   typ,
		Lexeme: l.source[l.start:l.pos],
		Span:   Span{Start: l.start, End: l.pos, Line: l.line},
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
