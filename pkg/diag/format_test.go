package diag

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatSingle(t *testing.T) {
	source := "📁 x = 1\n📁 y = z + 1\n"
	start := strings.Index(source, "z")
	err := New(ErrUndefinedName, Single{Span: Span{Start: start, End: start + 1, Line: 2}}, "z is not defined")

	got := Formatter{Source: source, Filename: "a.af4"}.Format(err)
	want := "z is not defined\n" +
		"File a.af4, line 2\n" +
		"\t📁 y = z + 1\n" +
		"\t       ^\n"
	if got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatDual(t *testing.T) {
	source := "ƒ f ––> ⮐ 1 ––\nƒ f ––> ⮐ 2 ––"
	first := strings.Index(source, "f ")
	second := strings.LastIndex(source, "f ")
	err := New(ErrDuplicateFunction, Dual{
		Current:  Span{Start: second, End: second + 1, Line: 2},
		Previous: Span{Start: first, End: first + 1, Line: 1},
	}, "duplicate function f")

	got := Formatter{Source: source, Filename: "dup.af4"}.Format(err)
	for _, want := range []string{
		"duplicate function f\nFile dup.af4, line 2\n",
		"previously declared here\nFile dup.af4, line 1\n",
		"\t  ^\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Index(got, "line 2") > strings.Index(got, "line 1") {
		t.Errorf("current span should come first:\n%s", got)
	}
}

func TestFormatCaretWidth(t *testing.T) {
	source := "\t📁📁 x"
	start := strings.Index(source, "📁")
	err := New(ErrSyntax, TokenAt{Span: Span{Start: start, End: start + len("📁📁"), Line: 1}, Lexeme: "📁📁"}, "bad")

	got := Formatter{Source: source, Filename: "w.af4"}.Format(err)
	if !strings.Contains(got, "\t    ^^^^\n") {
		t.Errorf("tab should expand and each emoji span two columns:\n%q", got)
	}
}

func TestFormatColor(t *testing.T) {
	source := "⮐ q"
	err := New(ErrUndefinedName, Single{Span: Span{Start: 4, End: 5, Line: 1}}, "q is not defined")

	plain := Formatter{Source: source, Filename: "c.af4"}.Format(err)
	if strings.Contains(plain, "\033[") {
		t.Errorf("colour disabled but escapes present: %q", plain)
	}
	colored := Formatter{Source: source, Filename: "c.af4", Color: true}.Format(err)
	if !strings.Contains(colored, colorError+"q is not defined"+colorReset) {
		t.Errorf("message should be painted: %q", colored)
	}
}

func TestFormatPlainError(t *testing.T) {
	got := Formatter{Source: "x"}.Format(errors.New("disk full"))
	if got != "disk full" {
		t.Errorf("got %q", got)
	}
}

func TestErrorKinds(t *testing.T) {
	err := New(ErrDuplicateArgument, Single{}, "duplicate argument a")
	if !errors.Is(err, ErrRedeclaration) {
		t.Error("duplicate argument should be a redeclaration")
	}
	if errors.Is(err, ErrDuplicateFunction) {
		t.Error("kinds should stay distinct")
	}
	d, ok := AsError(err)
	if !ok || d.Message != "duplicate argument a" {
		t.Errorf("AsError = %v, %v", d, ok)
	}
	if err.Error() != "line 0: duplicate argument a" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSpan(t *testing.T) {
	a := Span{Start: 4, End: 6, Line: 2}
	b := Span{Start: 1, End: 3, Line: 1}
	if got := a.Join(b); got != (Span{Start: 1, End: 6, Line: 1}) {
		t.Errorf("Join = %+v", got)
	}
	if a.Tag() != "4_6" {
		t.Errorf("Tag = %q", a.Tag())
	}
}
