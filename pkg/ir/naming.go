package ir

import (
	"strconv"
	"strings"

	"github.com/GriffinCanCode/altf4-compiler/pkg/diag"
)

// Symbolic registers are named "<name>_reg"; labels are prefixed with the
// enclosing function so they stay unique across the output file.

const (
	regSuffix   = "_reg"
	returnName  = "function_return"
	topLevelTag = "__top"
)

// RegisterFor returns the symbolic register backing a named value.
func RegisterFor(name string) string {
	return name + regSuffix
}

// LiteralName names the value of a literal that is not a variable's whole
// initializer.
func LiteralName(raw string, span diag.Span) string {
	raw = strings.Replace(raw, "-", "neg", 1)
	return "literal_value_" + raw + "_" + span.Tag()
}

// ReturnName names the result of an expression that is a return argument.
func ReturnName() string {
	return returnName
}

// ResultName names the result of an operation on right and left. The span
// tag separates sibling subexpressions over the same operands.
func ResultName(right, left string, span diag.Span) string {
	return right + "_" + left + "_res_" + span.Tag()
}

// CallResultName names the value a call leaves in r0.
func CallResultName(callee string, span diag.Span) string {
	return callee + "_call_res_" + span.Tag()
}

func prefix(fn string) string {
	if fn == "" {
		return topLevelTag
	}
	return fn
}

// EndLabel is the label the epilogue of fn starts at.
func EndLabel(fn string) string {
	return fn + "_end"
}

// IfLabels returns the false and end labels of an if statement nested under
// depth enclosing if statements.
func IfLabels(fn string, depth int, span diag.Span) (falseLabel, endLabel string) {
	base := "_" + strconv.Itoa(depth) + "_" + span.Tag()
	return prefix(fn) + "_if_false" + base, prefix(fn) + "_if_end" + base
}

// CompareLabel is the landing label of a comparison's branch-over idiom.
func CompareLabel(fn, op string, span diag.Span) string {
	return prefix(fn) + "_" + op + "_" + span.Tag()
}
