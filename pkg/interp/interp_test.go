package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
	"github.com/GriffinCanCode/altf4-compiler/pkg/frontend"
)

func run(t *testing.T, source string) (int64, string, error) {
	t.Helper()
	prog, err := frontend.Parse(source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var out strings.Builder
	v, err := Run(prog, &out)
	return v, out.String(), err
}

func TestRunValues(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   int64
	}{
		{"no return", "📁 x = 1", 0},
		{"addition", "📁 x = 3 + 4\n⮐ x", 7},
		{"precedence", "⮐ 2 + 3 * 4", 14},
		{"parentheses", "⮐ <2 + 3> * 4", 20},
		{"left associative subtraction", "⮐ 10 - 3 - 2", 5},
		{"truncating division", "⮐ 7 / 2", 3},
		{"negative division", "⮐ 0 - 7 / 2", -3},
		{"unary minus", "📁 x = 5\n⮐ -x", -5},
		{"equal", "⮐ 3 == 3", 1},
		{"greater", "⮐ 2 ▲ 3", 0},
		{"less", "⮐ 2 ▼ 3", 1},
		{"and", "⮐ 1 ∧ 0", 0},
		{"or", "⮐ 0 ∨ 5", 1},
		{"call", "ƒ add | α a | α b ––> ⮐ a + b ––\n⮐ ✆ add | 2 | 3 ✆", 5},
		{"argument order", "ƒ sub2 | α a | α b ––> ⮐ a - b ––\n⮐ ✆ sub2 | 10 | 4 ✆", 6},
		{"reads globals", "📁 k = 4\nƒ f | α a ––> ⮐ a * k ––\n⮐ ✆ f | 3 ✆", 12},
		{"missing return", "ƒ f ––> 📁 y = 1 ––\n⮐ ✆ f ✆", 0},
		{"rebinding", "📁 x = 1\n📁 x = x + 1\n⮐ x", 2},
		{"rebinding in function", "ƒ m | α a ––> 📁 x = a\n📁 x = x + 1\n📁 x = x * x\n⮐ x ––\n⮐ ✆ m | 4 ✆", 25},
		{"rebinding in if arms", "ƒ pick | α a ––>\n📁 r = 0\n? a ▲ 0 ––>\n📁 r = 1\n¿\n⇐ ––>\n📁 r = 2\n¿\n⮐ r\n––\n⮐ ✆ pick | 5 ✆ + ✆ pick | 0 ✆", 3},
		{"nested call argument", "ƒ inc | α a ––> ⮐ a + 1 ––\nƒ dbl | α a ––> ⮐ a * 2 ––\n⮐ ✆ dbl | ✆ inc | 4 ✆ ✆", 10},
		{"stops after return", "⮐ 1\n⮐ 2", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := run(t, tt.source)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunRecursion(t *testing.T) {
	source := `ƒ fact | α n ––>
    ? n ▼ 2 ––>
        ⮐ 1
    ¿
    ⮐ n * ✆ fact | n - 1 ✆
––
⮐ ✆ fact | 10 ✆`
	got, _, err := run(t, source)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got != 3628800 {
		t.Errorf("fact(10) = %d", got)
	}
}

func TestRunElseChain(t *testing.T) {
	source := `ƒ sign | α n ––>
    ? n ▲ 0 ––>
        ⮐ 1
    ¿
    ∐ n ▼ 0 ––>
        ⮐ 0 - 1
    ¿
    ⇐ ––>
        ⮐ 0
    ¿
––
`
	for arg, want := range map[string]string{"5": "1\n", "0 - 5": "-1\n", "0": "0\n"} {
		t.Run(arg, func(t *testing.T) {
			_, out, err := run(t, source+"✆ 🖨 | ✆ sign | "+arg+" ✆ ✆")
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if out != want {
				t.Errorf("printed %q, want %q", out, want)
			}
		})
	}
}

func TestRunPrint(t *testing.T) {
	_, out, err := run(t, "📁 x = 2\n✆ 🖨 | x | x * 3 | 0 - 1 ✆\n✆ 🖨 ✆")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "2 6 -1\n\n" {
		t.Errorf("printed %q", out)
	}
}

func TestRunReturnInsideIfStopsFunction(t *testing.T) {
	source := `ƒ f | α n ––>
    ? n ▲ 0 ––>
        ✆ 🖨 | 1 ✆
        ⮐ 1
    ¿
    ✆ 🖨 | 2 ✆
    ⮐ 2
––
⮐ ✆ f | 1 ✆`
	got, out, err := run(t, source)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got != 1 || out != "1\n" {
		t.Errorf("got %d and printed %q", got, out)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   error
	}{
		{"division by zero", "📁 z = 0\n⮐ 1 / z", diag.ErrDivisionByZero},
		{"undefined", "⮐ y", diag.ErrUndefinedName},
		{"undefined function", "⮐ ✆ g ✆", diag.ErrUndefinedName},
		{"not callable", "📁 x = 1\n⮐ ✆ x ✆", diag.ErrNotCallable},
		{"argument count", "ƒ f | α a ––> ⮐ a ––\n⮐ ✆ f | 1 | 2 ✆", diag.ErrArgumentCount},
		{"duplicate function", "ƒ f ––> ⮐ 1 ––\nƒ f ––> ⮐ 2 ––", diag.ErrDuplicateFunction},
		{"function as variable", "ƒ f ––> ⮐ 1 ––\n📁 f = 2", diag.ErrRedefinition},
		{"argument as variable", "ƒ f | α a ––> 📁 a = 2\n⮐ a ––\n⮐ ✆ f | 1 ✆", diag.ErrRedefinition},
		{"function as value", "ƒ f ––> ⮐ 1 ––\n⮐ f + 1", diag.ErrUnsupported},
		{"caller locals hidden", "ƒ g ––> ⮐ secret ––\nƒ f ––> 📁 secret = 1\n⮐ ✆ g ✆ ––\n⮐ ✆ f ✆", diag.ErrUndefinedName},
		{"runaway recursion", "ƒ f ––> ⮐ ✆ f ✆ ––\n⮐ ✆ f ✆", diag.ErrNesting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.source)
			if !errors.Is(err, tt.kind) {
				t.Errorf("got %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestSessionKeepsGlobals(t *testing.T) {
	var out strings.Builder
	in := New(&out)

	chunks := []string{
		"ƒ double | α n ––> ⮐ n * 2 ––",
		"📁 x = ✆ double | 21 ✆",
		"✆ 🖨 | x ✆",
	}
	for _, chunk := range chunks {
		prog, err := frontend.Parse(chunk)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", chunk, err)
		}
		if _, err := in.Run(prog); err != nil {
			t.Fatalf("Run(%q) failed: %v", chunk, err)
		}
	}
	if out.String() != "42\n" {
		t.Errorf("printed %q", out.String())
	}

	in.Reset()
	prog, _ := frontend.Parse("⮐ x")
	if _, err := in.Run(prog); !errors.Is(err, diag.ErrUndefinedName) {
		t.Errorf("Reset should drop globals, got %v", err)
	}
}

func TestSessionReturnDoesNotLeak(t *testing.T) {
	in := New(&strings.Builder{})
	first, _ := frontend.Parse("⮐ 5")
	if v, err := in.Run(first); err != nil || v != 5 {
		t.Fatalf("got %d, %v", v, err)
	}
	second, _ := frontend.Parse("📁 y = 1")
	if v, err := in.Run(second); err != nil || v != 0 {
		t.Errorf("a later chunk should run and return 0, got %d, %v", v, err)
	}
}
