package regalloc

import (
	"errors"
	"strings"
	"testing"

	"github.com/GriffinCanCode/altf4-compiler/pkg/frontend"
	"github.com/GriffinCanCode/altf4-compiler/pkg/ir"
)

func listing(insts []ir.Inst) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.String()
	}
	return out
}

func expectInsts(t *testing.T, got []ir.Inst, want []string) {
	t.Helper()
	lines := listing(got)
	if len(lines) != len(want) {
		t.Fatalf("got %d instructions, want %d:\n%s", len(lines), len(want), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("inst %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestAllocateReusesFreedSources(t *testing.T) {
	fn := &ir.Function{Insts: []ir.Inst{
		ir.New(ir.OpMov, ir.Sym("a_reg"), ir.Imm(4)),
		ir.New(ir.OpMov, ir.Sym("b_reg"), ir.Imm(3)),
		ir.New(ir.OpAdd, ir.Sym("x_reg"), ir.Sym("a_reg"), ir.Sym("b_reg")),
	}}

	a := NewAllocator(fn, nil)
	out := a.Allocate()

	expectInsts(t, out.Insts, []string{
		"mov r0, #4",
		"mov r1, #3",
		"add r0, r0, r1",
	})

	stats := a.Stats()
	if stats.Allocations != 3 || stats.Frees != 3 {
		t.Errorf("allocations/frees = %d/%d, want 3/3", stats.Allocations, stats.Frees)
	}
	if stats.Peak != 2 {
		t.Errorf("peak = %d, want 2", stats.Peak)
	}
}

func TestAllocateParameter(t *testing.T) {
	fn := &ir.Function{Name: "id", Params: 1, Insts: []ir.Inst{
		ir.New(ir.OpGlobal, ir.Label("id")),
		ir.New(ir.OpLabel, ir.Label("id")),
		ir.New(ir.OpPrologue),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Arg("r0")),
		ir.New(ir.OpEpilogue, ir.Label("id_end")),
	}}

	a := NewAllocator(fn, nil)
	out := a.Allocate()

	expectInsts(t, out.Insts, []string{".global id", "id:", "@prologue", "mov r0, r0", "@epilogue id_end"})
	if s := a.Stats(); s.Allocations != 1 || s.Frees != 1 {
		t.Errorf("parameter should be seeded and released, got %+v", s)
	}
}

func TestAllocateUnusedParameterIsFree(t *testing.T) {
	fn := &ir.Function{Name: "second", Params: 2, Insts: []ir.Inst{
		ir.New(ir.OpMov, ir.Sym("t_reg"), ir.Imm(1)),
		ir.New(ir.OpAdd, ir.Sym("u_reg"), ir.Sym("t_reg"), ir.Arg("r1")),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Sym("u_reg")),
	}}

	out := Allocate(fn, nil)
	expectInsts(t, out.Insts, []string{
		"mov r0, #1",
		"add r0, r0, r1",
		"mov r0, r0",
	})
}

func TestAllocateLeavesInputUntouched(t *testing.T) {
	fn := &ir.Function{Insts: []ir.Inst{
		ir.New(ir.OpMov, ir.Sym("a_reg"), ir.Imm(1)),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Sym("a_reg")),
	}}
	before := listing(fn.Insts)
	Allocate(fn, nil)
	after := listing(fn.Insts)
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("input inst %d changed from %q to %q", i, before[i], after[i])
		}
	}
}

func TestAllocateBranchesUntouched(t *testing.T) {
	fn := &ir.Function{Name: "f", Insts: []ir.Inst{
		ir.New(ir.OpMov, ir.Sym("c_reg"), ir.Imm(0)),
		ir.New(ir.OpCmp, ir.Sym("c_reg"), ir.Imm(0)),
		ir.New(ir.OpBeq, ir.Label("f_if_end_0_1_2")),
		ir.New(ir.OpB, ir.Label("f_end")),
		ir.New(ir.OpLabel, ir.Label("f_if_end_0_1_2")),
	}}

	out := Allocate(fn, nil)
	expectInsts(t, out.Insts, []string{
		"mov r0, #0",
		"cmp r0, #0",
		"beq f_if_end_0_1_2",
		"b f_end",
		"f_if_end_0_1_2:",
	})
}

func TestAllocateExhaustion(t *testing.T) {
	var insts []ir.Inst
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	for i, n := range names {
		insts = append(insts, ir.New(ir.OpMov, ir.Sym(n+"_reg"), ir.Imm(int64(i))))
	}
	for _, n := range names {
		insts = append(insts, ir.New(ir.OpMov, ir.Reg("r0"), ir.Sym(n+"_reg")))
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic when the pool runs dry")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", r)
		}
		var internal *InternalError
		if !errors.As(err, &internal) {
			t.Fatalf("expected *InternalError, got %T", r)
		}
		if !strings.Contains(internal.Error(), "i_reg") {
			t.Errorf("error should name the value that did not fit: %v", internal)
		}
	}()
	Allocate(&ir.Function{Name: "wide", Insts: insts}, nil)
}

func TestAllocateNegativeCount(t *testing.T) {
	a := NewAllocator(&ir.Function{Name: "f"}, nil)
	defer func() {
		if _, ok := recover().(*InternalError); !ok {
			t.Fatal("expected *InternalError for an uncounted reference")
		}
	}()
	a.rewrite(ir.Sym("ghost_reg"))
}

func TestAllocateSavesLiveArgumentRegister(t *testing.T) {
	// n lives in r0 and is needed after the call.
	fn := &ir.Function{Name: "f", Params: 1, Insts: []ir.Inst{
		ir.New(ir.OpMov, ir.Sym("lit_reg"), ir.Imm(1)),
		ir.New(ir.OpSave, ir.Reg("r0")),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Sym("lit_reg")),
		ir.New(ir.OpBl, ir.Label("g")),
		ir.New(ir.OpMov, ir.Sym("res_reg"), ir.Reg("r0")),
		ir.New(ir.OpRestore, ir.Reg("r0")),
		ir.New(ir.OpAdd, ir.Sym("ret_reg"), ir.Sym("res_reg"), ir.Arg("r0")),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Sym("ret_reg")),
	}}

	out := Allocate(fn, nil)
	expectInsts(t, out.Insts, []string{
		"mov r1, #1",
		"push {r0}",
		"mov r0, r1",
		"bl g",
		"mov r1, r0",
		"pop {r0}",
		"add r0, r1, r0",
		"mov r0, r0",
	})
}

func TestAllocateSkipsDeadArgumentRegisters(t *testing.T) {
	fn := &ir.Function{Name: "f", Params: 1, Insts: []ir.Inst{
		ir.New(ir.OpSave, ir.Reg("r0")),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Arg("r0")),
		ir.New(ir.OpBl, ir.Label("g")),
		ir.New(ir.OpRestore, ir.Reg("r0")),
	}}

	out := Allocate(fn, nil)
	expectInsts(t, out.Insts, []string{"mov r0, r0", "bl g"})
}

func TestAllocateSwappedArguments(t *testing.T) {
	fn := &ir.Function{Name: "swap", Params: 2, Insts: []ir.Inst{
		ir.New(ir.OpSave, ir.Reg("r0"), ir.Reg("r1")),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Arg("r1")),
		ir.New(ir.OpMov, ir.Reg("r1"), ir.Arg("r0")),
		ir.New(ir.OpBl, ir.Label("g")),
		ir.New(ir.OpMov, ir.Sym("res_reg"), ir.Reg("r0")),
		ir.New(ir.OpRestore, ir.Reg("r0"), ir.Reg("r1")),
		ir.New(ir.OpMov, ir.Reg("r0"), ir.Sym("res_reg")),
	}}

	out := Allocate(fn, nil)
	expectInsts(t, out.Insts, []string{
		"push {r1}",
		"mov r1, r0",
		"pop {r0}",
		"bl g",
		"mov r0, r0",
		"mov r0, r0",
	})
}

func TestSequentialize(t *testing.T) {
	r := ir.Reg
	tests := []struct {
		name  string
		moves []move
		want  []string
	}{
		{
			name:  "independent",
			moves: []move{{r("r0"), r("r4")}, {r("r1"), r("r5")}},
			want:  []string{"mov r0, r4", "mov r1, r5"},
		},
		{
			name:  "chain",
			moves: []move{{r("r0"), r("r1")}, {r("r1"), r("r2")}},
			want:  []string{"mov r0, r1", "mov r1, r2"},
		},
		{
			name:  "reverse chain",
			moves: []move{{r("r1"), r("r2")}, {r("r0"), r("r1")}},
			want:  []string{"mov r0, r1", "mov r1, r2"},
		},
		{
			name:  "three cycle",
			moves: []move{{r("r0"), r("r1")}, {r("r1"), r("r2")}, {r("r2"), r("r0")}},
			want:  []string{"push {r1}", "mov r1, r2", "mov r2, r0", "pop {r0}"},
		},
		{
			name:  "identity",
			moves: []move{{r("r0"), r("r0")}},
			want:  []string{"mov r0, r0"},
		},
		{
			name:  "immediate",
			moves: []move{{r("r0"), ir.Imm(7)}, {r("r1"), r("r0")}},
			want:  []string{"mov r1, r0", "mov r0, #7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectInsts(t, sequentialize(tt.moves), tt.want)
		})
	}
}

func TestAllocateBuiltPrograms(t *testing.T) {
	sources := map[string]string{
		"arithmetic": "📁 a = 1\n📁 b = a * <a + 2> - <a - 3>\n📁 c = b / 2",
		"identity":   "ƒ id | α n ––> ⮐ n ––",
		"factorial": `ƒ fact | α n ––>
    ? n ▼ 2 ––>
        ⮐ 1
    ¿
    ⮐ n * ✆ fact | n - 1 ✆
––`,
		"arguments": `ƒ pick | α a | α b | α c ––>
    ? a == 0 ––>
        ⮐ b
    ¿
    ⇐ ––>
        ⮐ c
    ¿
––
ƒ swap | α a | α b | α c ––>
    ⮐ ✆ pick | c | b | a ✆ + a
––`,
		"nested call": "ƒ g | α a ––> ⮐ a + 1 ––\nƒ f | α a | α b ––> ⮐ a * b ––\nƒ h | α a ––> ⮐ ✆ f | ✆ g | a ✆ | a ✆ ––",
	}

	for name, source := range sources {
		t.Run(name, func(t *testing.T) {
			module, err := frontend.Parse(source)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			prog, err := ir.NewBuilder().Build(module)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}

			for _, fn := range prog.Functions {
				a := NewAllocator(fn, DefaultConfig())
				out := a.Allocate()
				stats := a.Stats()

				if stats.Allocations != stats.Frees {
					t.Errorf("%s: %d allocations but %d frees", fn.Name, stats.Allocations, stats.Frees)
				}
				for reg, uses := range stats.Uses {
					if stats.Substitutions[reg] != uses {
						t.Errorf("%s: %s counted %d uses but rewrote %d", fn.Name, reg, uses, stats.Substitutions[reg])
					}
				}
				for _, inst := range out.Insts {
					if inst.Op == ir.OpSave || inst.Op == ir.OpRestore {
						t.Errorf("%s: marker %q survived allocation", fn.Name, inst)
					}
					for _, op := range inst.Args {
						if op.IsSymbolic() {
							t.Errorf("%s: symbolic operand left in %q", fn.Name, inst)
						}
					}
				}
			}
		})
	}
}
