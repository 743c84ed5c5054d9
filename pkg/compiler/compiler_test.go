package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/GriffinCanCode/altf4-compiler/pkg/config"
	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
)

func TestCompile(t *testing.T) {
	res, err := Compile("📁 x = 3 + 4", Options{Filename: "add.af4"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.AST.Body) != 1 {
		t.Errorf("expected one statement, got %d", len(res.AST.Body))
	}
	if !strings.Contains(res.Pseudo.String(), "x_reg") {
		t.Errorf("pseudo code should name x_reg:\n%s", res.Pseudo)
	}
	if !strings.Contains(res.Assembly, "\tadd r") {
		t.Errorf("missing add:\n%s", res.Assembly)
	}
	if len(res.Stats) != len(res.Allocated.Functions) {
		t.Errorf("one stats entry per unit, got %d for %d", len(res.Stats), len(res.Allocated.Functions))
	}
}

func TestCompileOutput(t *testing.T) {
	res, err := Compile("ƒ id | α n ––> ⮐ n ––", Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := res.Output(EmitPseudo); !strings.Contains(got, "mov r0, r0") || strings.Contains(got, ".cpu") {
		t.Errorf("pseudo output should be the unallocated listing:\n%s", got)
	}
	if got := res.Output(EmitAsm); !strings.Contains(got, "\tmov r0, r0\n") {
		t.Errorf("asm output should be allocated:\n%s", got)
	}
}

func TestCompileOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Target.CPU = "cortex-m0plus"
	cfg.Target.Align = 4
	opts := FromConfig(cfg, "a.af4")
	if opts.Filename != "a.af4" || opts.MaxNesting != config.DefaultMaxNesting {
		t.Errorf("unexpected options: %+v", opts)
	}

	res, err := Compile("📁 x = 1", opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.HasPrefix(res.Assembly, "\t.cpu cortex-m0plus\n\t.text\n\t.align 4\n") {
		t.Errorf("preamble should follow the target settings:\n%s", res.Assembly)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		opts   Options
		kind   error
	}{
		{"syntax", "📁 = 3", Options{}, diag.ErrSyntax},
		{"undefined", "📁 x = y", Options{}, diag.ErrUndefinedName},
		{"duplicate function", "ƒ f ––> ⮐ 1 ––\nƒ f ––> ⮐ 2 ––", Options{}, diag.ErrRedeclaration},
		{"nesting", "📁 x = <<<1>>>", Options{MaxNesting: 2}, diag.ErrNesting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.source, tt.opts)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("got %v, want %v", err, tt.kind)
			}
			if _, ok := diag.AsError(err); !ok {
				t.Errorf("source errors should be diagnostics: %T", err)
			}
		})
	}
}

func TestCompileUnknownFormat(t *testing.T) {
	if _, err := Compile("📁 x = 1", Options{Emit: "hex"}); err == nil {
		t.Error("unknown output format should fail")
	}
}

func TestDiagnosticRendering(t *testing.T) {
	source := "ƒ f ––> ⮐ 1 ––\nƒ f ––> ⮐ 2 ––"
	_, err := Compile(source, Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	out := diag.Formatter{Source: source, Filename: "dup.af4"}.Format(err)
	for _, want := range []string{"File dup.af4, line 2", "previously declared here", "File dup.af4, line 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered diagnostic missing %q:\n%s", want, out)
		}
	}
}
