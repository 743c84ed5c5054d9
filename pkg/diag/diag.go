// Package diag defines source diagnostics: error kinds, the anchor a
// diagnostic points at, and the rendering used by the CLI.
package diag

import (
	"errors"
	"fmt"
)

// Span is a half-open byte range [Start, End) in the source, plus the
// 1-based line the range starts on.
type Span struct {
	Start int
	End   int
	Line  int
}

// Tag renders the span as "<start>_<end>", the form used inside generated
// register and label names.
func (s Span) Tag() string {
	return fmt.Sprintf("%d_%d", s.Start, s.End)
}

// Join returns the smallest span covering both s and o.
func (s Span) Join(o Span) Span {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
		out.Line = o.Line
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// Error kinds. Match them with errors.Is.
var (
	ErrSyntax            = errors.New("invalid syntax")
	ErrNesting           = errors.New("nesting too deep")
	ErrUnsupported       = errors.New("unsupported construct")
	ErrRedeclaration     = errors.New("redeclaration")
	ErrDuplicateFunction = fmt.Errorf("%w: duplicate function", ErrRedeclaration)
	ErrDuplicateArgument = fmt.Errorf("%w: duplicate argument", ErrRedeclaration)
	ErrRedefinition      = errors.New("redefinition")
	ErrTooManyParameters = errors.New("too many parameters")
	ErrUndefinedName     = errors.New("undefined name")
	ErrIfOutsideFunction = errors.New("if statement outside function")
	ErrNotCallable       = errors.New("not callable")
	ErrArgumentCount     = errors.New("wrong argument count")
	ErrCapture           = errors.New("top-level variable captured")
	ErrNestedFunction    = errors.New("nested function declaration")
	ErrDivisionByZero    = errors.New("division by zero")
)

// Anchor says where in the source a diagnostic points.
type Anchor interface {
	Primary() Span
	anchor()
}

// Single anchors a diagnostic to one span.
type Single struct {
	Span Span
}

func (a Single) Primary() Span { return a.Span }
func (Single) anchor()         {}

// Dual anchors a diagnostic to the offending span and to an earlier one it
// conflicts with, such as a previous declaration.
type Dual struct {
	Current  Span
	Previous Span
}

func (a Dual) Primary() Span { return a.Current }
func (Dual) anchor()         {}

// TokenAt anchors a diagnostic to a single lexeme.
type TokenAt struct {
	Span   Span
	Lexeme string
}

func (a TokenAt) Primary() Span { return a.Span }
func (TokenAt) anchor()         {}

// Error is a user-facing source diagnostic.
type Error struct {
	Kind    error
	Message string
	Anchor  Anchor
}

// New builds a diagnostic of the given kind.
func New(kind error, anchor Anchor, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Anchor:  anchor,
	}
}

func (e *Error) Error() string {
	if e.Anchor == nil {
		return e.Message
	}
	return fmt.Sprintf("line %d: %s", e.Anchor.Primary().Line, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var d *Error
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
