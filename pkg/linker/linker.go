// Package linker turns emitted assembly into object files.
//
// Design: delegate to the GNU ARM assembler; the compiler never writes
// object code itself.
package linker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

// Assembler runs an external assembler for one target CPU.
type Assembler struct {
	program string
	cpu     string
	flags   []string
}

func New(program, cpu string, flags []string) *Assembler {
	return &Assembler{program: program, cpu: cpu, flags: flags}
}

// Args returns the assembler command line for asmPath.
func (a *Assembler) Args(asmPath, objPath string) []string {
	args := []string{"-mthumb"}
	if a.cpu != "" {
		args = append(args, "-mcpu="+a.cpu)
	}
	args = append(args, a.flags...)
	return append(args, "-o", objPath, asmPath)
}

// Assemble produces objPath from asmPath. The assembler's own diagnostics
// are included in the returned error.
func (a *Assembler) Assemble(ctx context.Context, asmPath, objPath string) error {
	path, err := exec.LookPath(a.program)
	if err != nil {
		return fmt.Errorf("assembler %s not found: %w", a.program, err)
	}

	logger.LogAssemblyStart(asmPath)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, a.Args(asmPath, objPath)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w\n%s", a.program, err, msg)
		}
		return fmt.Errorf("%s: %w", a.program, err)
	}
	logger.LogAssemblyComplete(objPath)
	return nil
}
