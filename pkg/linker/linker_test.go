package linker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	got := strings.Join(New("as", "cortex-m0", []string{"-g"}).Args("a.s", "a.o"), " ")
	want := "-mthumb -mcpu=cortex-m0 -g -o a.o a.s"
	if got != want {
		t.Errorf("Args = %q, want %q", got, want)
	}

	got = strings.Join(New("as", "", nil).Args("a.s", "a.o"), " ")
	if got != "-mthumb -o a.o a.s" {
		t.Errorf("Args without cpu = %q", got)
	}
}

func TestAssembleMissingProgram(t *testing.T) {
	a := New("definitely-not-an-assembler-altf4", "cortex-m0", nil)
	err := a.Assemble(context.Background(), "a.s", "a.o")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected a not found error, got %v", err)
	}
}

func fakeAssembler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script assembler")
	}
	path := filepath.Join(t.TempDir(), "fake-as")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAssembleRunsProgram(t *testing.T) {
	// Writes "ok" to the path following -o.
	as := fakeAssembler(t, `while [ "$1" != "-o" ]; do shift; done; echo ok > "$2"`+"\n")
	obj := filepath.Join(t.TempDir(), "out.o")

	if err := New(as, "cortex-m0", nil).Assemble(context.Background(), "in.s", obj); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	data, err := os.ReadFile(obj)
	if err != nil || strings.TrimSpace(string(data)) != "ok" {
		t.Errorf("object not written: %q, %v", data, err)
	}
}

func TestAssembleReportsStderr(t *testing.T) {
	as := fakeAssembler(t, "echo 'in.s:3: Error: bad instruction' >&2\nexit 1\n")
	err := New(as, "cortex-m0", nil).Assemble(context.Background(), "in.s", "out.o")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "bad instruction") {
		t.Errorf("error should carry assembler output: %v", err)
	}
}
