// Package cortexm0 - Assembly validation and correctness verification
package cortexm0

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

// ValidationError represents an assembly validation error
type ValidationError struct {
	Line    int
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Message, e.Code)
}

// Validator checks generated assembly against the Cortex-M0 subset the
// compiler emits.
type Validator struct {
	errors []ValidationError
	warns  []ValidationError
}

// NewValidator creates a new assembly validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
		warns:  make([]ValidationError, 0),
	}
}

var (
	mnemonics = []string{
		"push", "pop", "mov", "add", "sub", "mul", "orr", "and", "cmp",
		"b", "beq", "bne", "bgt", "blt", "bl",
	}
	directives = []string{".cpu", ".text", ".align", ".global"}
	branches   = []string{"b", "beq", "bne", "bgt", "blt"}
	regPattern = regexp.MustCompile(`\b(r[0-9]+|sp|lr|pc)\b`)
	validRegs  = map[string]bool{
		"r0": true, "r1": true, "r2": true, "r3": true,
		"r4": true, "r5": true, "r6": true, "r7": true,
		"sp": true, "lr": true, "pc": true,
	}
)

// Validate performs all checks on assembly code
func (v *Validator) Validate(assembly string) error {
	v.errors = v.errors[:0]
	v.warns = v.warns[:0]
	lines := strings.Split(assembly, "\n")

	v.validateSyntax(lines)
	v.validateRegisters(lines)
	v.validateOperands(lines)
	v.validateStackBalance(lines)
	v.validateBranchTargets(lines)
	v.validateComparisons(lines)

	logger.LogValidation(len(lines), len(v.errors)+len(v.warns))

	if len(v.errors) > 0 {
		return v.formatErrors()
	}

	if len(v.warns) > 0 {
		v.logWarnings()
	}

	return nil
}

// Warnings returns the non-fatal findings of the last Validate call.
func (v *Validator) Warnings() []ValidationError {
	return v.warns
}

// validateSyntax checks every line is a directive, a label or an
// instruction from the supported subset.
func (v *Validator) validateSyntax(lines []string) {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}

		if strings.HasSuffix(line, ":") {
			if strings.ContainsAny(line, " \t") {
				v.addError(i+1, "invalid label format (contains spaces)", line)
			}
			continue
		}

		word := mnemonic(line)
		switch {
		case strings.HasPrefix(word, "."):
			if !lo.Contains(directives, word) {
				v.addError(i+1, fmt.Sprintf("unsupported directive %s", word), line)
			}
		case !lo.Contains(mnemonics, word):
			v.addError(i+1, fmt.Sprintf("unsupported instruction %s", word), line)
		}
	}
}

// validateRegisters rejects anything outside the low register file and the
// special registers.
func (v *Validator) validateRegisters(lines []string) {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isDirective(trimmed) || isLabel(trimmed) || isBranch(trimmed) || mnemonic(trimmed) == "bl" {
			continue
		}
		for _, reg := range regPattern.FindAllString(trimmed, -1) {
			if !validRegs[reg] {
				v.addError(i+1, fmt.Sprintf("invalid register: %s", reg), trimmed)
			}
		}
	}
}

// validateOperands checks destinations and immediates.
func (v *Validator) validateOperands(lines []string) {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		word := mnemonic(line)
		if !lo.Contains([]string{"mov", "add", "sub", "mul", "and", "orr", "cmp"}, word) {
			continue
		}

		ops := operands(line)
		if len(ops) == 0 {
			v.addError(i+1, "missing operands", line)
			continue
		}
		if word != "cmp" && strings.HasPrefix(ops[0], "#") {
			v.addError(i+1, "immediate value cannot be destination", line)
		}
		if word == "mov" && len(ops) == 2 && strings.HasPrefix(ops[1], "#") {
			imm, err := strconv.ParseInt(ops[1][1:], 10, 64)
			if err != nil {
				v.addError(i+1, fmt.Sprintf("malformed immediate %s", ops[1]), line)
				continue
			}
			if imm < 0 || imm > 255 {
				v.addWarn(i+1, fmt.Sprintf("immediate %d does not fit an 8-bit movs encoding", imm), line)
			}
		}
	}
}

// validateStackBalance checks that every push inside a function is undone
// before its frame is torn down.
func (v *Validator) validateStackBalance(lines []string) {
	depth := 0
	inFunction := false

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, ".global"):
			inFunction = true
			depth = 0
		case !inFunction:
			continue
		case strings.HasPrefix(line, "push"):
			depth++
		case strings.HasPrefix(line, "pop") && strings.Contains(line, "pc"):
			if depth != 1 {
				v.addError(i+1, fmt.Sprintf("stack imbalance at return: %d pending pushes", depth-1), line)
			}
			depth = 0
			inFunction = false
		case strings.HasPrefix(line, "pop"):
			depth--
			if depth < 1 {
				v.addError(i+1, "pop without matching push", line)
			}
		}
	}
}

// validateBranchTargets checks local branches land on defined labels. bl may
// target external routines.
func (v *Validator) validateBranchTargets(lines []string) {
	defined := make(map[string]int)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if !isLabel(line) {
			continue
		}
		name := strings.TrimSuffix(line, ":")
		if prev, ok := defined[name]; ok {
			v.addError(i+1, fmt.Sprintf("label %s already defined on line %d", name, prev), line)
		}
		defined[name] = i + 1
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if !isBranch(line) {
			continue
		}
		ops := operands(line)
		if len(ops) != 1 {
			v.addError(i+1, "branch needs exactly one target", line)
			continue
		}
		if _, ok := defined[ops[0]]; !ok {
			v.addError(i+1, fmt.Sprintf("branch to undefined label %s", ops[0]), line)
		}
	}
}

// validateComparisons warns about flags that are set but never consumed.
func (v *Validator) validateComparisons(lines []string) {
	for i, raw := range lines {
		if mnemonic(strings.TrimSpace(raw)) != "cmp" {
			continue
		}
		if i+1 >= len(lines) || !isBranch(strings.TrimSpace(lines[i+1])) {
			v.addWarn(i+1, "cmp instruction not followed by a branch", strings.TrimSpace(raw))
		}
	}
}

// Helper functions

func (v *Validator) addError(line int, msg, code string) {
	v.errors = append(v.errors, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) addWarn(line int, msg, code string) {
	v.warns = append(v.warns, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) formatErrors() error {
	var sb strings.Builder
	sb.WriteString("Assembly validation failed:\n")
	for _, err := range v.errors {
		sb.WriteString("  " + err.Error() + "\n")
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) logWarnings() {
	for _, warn := range v.warns {
		logger.Warn("Assembly validation warning", "line", warn.Line, "msg", warn.Message)
	}
}

func mnemonic(line string) string {
	word, _, _ := strings.Cut(line, " ")
	return strings.TrimSpace(word)
}

func operands(line string) []string {
	_, rest, ok := strings.Cut(line, " ")
	if !ok {
		return nil
	}
	parts := strings.Split(rest, ",")
	return lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) })
}

func isLabel(line string) bool {
	return strings.HasSuffix(line, ":")
}

func isDirective(line string) bool {
	return strings.HasPrefix(line, ".")
}

// isBranch reports local branches; bl is excluded.
func isBranch(line string) bool {
	return lo.Contains(branches, mnemonic(line))
}

// ValidateProgram validates an entire generated program
func ValidateProgram(assembly string) error {
	return NewValidator().Validate(assembly)
}
