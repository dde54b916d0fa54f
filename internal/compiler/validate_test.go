package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relay/internal/ir"
)

// =============================================================================
// Script Validation Tests
// =============================================================================

func TestValidateScriptValid(t *testing.T) {
	script := &ir.Script{
		Name:  "countup",
		Start: 0,
		Steps: []ir.Step{
			{Op: ir.StepIncrement},
			{Op: ir.StepAdd, Amount: 2},
			{Op: ir.StepFail, Message: "boom"},
		},
	}

	errs := Validate(script)
	assert.Empty(t, errs, "valid script should have no errors")
}

func TestValidateScriptValidEmptySteps(t *testing.T) {
	script := &ir.Script{
		Name:  "markers-only",
		Steps: []ir.Step{}, // No steps: emits markers only
	}

	errs := Validate(script)
	assert.Empty(t, errs, "script with no steps should be valid")
}

func TestValidateScriptMissingName(t *testing.T) {
	script := &ir.Script{
		Name:  "", // Missing
		Steps: []ir.Step{{Op: ir.StepIncrement}},
	}

	errs := Validate(script)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrScriptNameEmpty, errs[0].Code)
	assert.Contains(t, errs[0].Message, "name")
}

func TestValidateScriptWhitespaceName(t *testing.T) {
	script := &ir.Script{
		Name:  "   ", // Whitespace only
		Steps: []ir.Step{{Op: ir.StepIncrement}},
	}

	errs := Validate(script)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrScriptNameEmpty, errs[0].Code)
}

func TestValidateScriptUnknownOp(t *testing.T) {
	script := &ir.Script{
		Name:  "bad",
		Steps: []ir.Step{{Op: "halve"}}, // Not a known op
	}

	errs := Validate(script)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownStepOp, errs[0].Code)
	assert.Contains(t, errs[0].Message, "halve")
	assert.Equal(t, "steps[0].op", errs[0].Field)
}

func TestValidateScriptAmountOnIncrement(t *testing.T) {
	script := &ir.Script{
		Name: "bad",
		Steps: []ir.Step{
			{Op: ir.StepIncrement, Amount: 5}, // Amount belongs to add
		},
	}

	errs := Validate(script)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrAmountNotAllowed, errs[0].Code)
	assert.Equal(t, "steps[0].amount", errs[0].Field)
}

func TestValidateScriptAmountOnFail(t *testing.T) {
	script := &ir.Script{
		Name: "bad",
		Steps: []ir.Step{
			{Op: ir.StepFail, Message: "boom", Amount: 3}, // Amount belongs to add
		},
	}

	errs := Validate(script)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrAmountNotAllowed, errs[0].Code)
}

func TestValidateScriptMessageOnAdd(t *testing.T) {
	script := &ir.Script{
		Name: "bad",
		Steps: []ir.Step{
			{Op: ir.StepAdd, Amount: 1, Message: "oops"}, // Message belongs to fail
		},
	}

	errs := Validate(script)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMessageNotAllowed, errs[0].Code)
	assert.Equal(t, "steps[0].message", errs[0].Field)
}

func TestValidateScriptNegativeAmount(t *testing.T) {
	script := &ir.Script{
		Name: "down",
		Steps: []ir.Step{
			{Op: ir.StepAdd, Amount: -10}, // Negative amounts are fine
		},
	}

	errs := Validate(script)
	assert.Empty(t, errs)
}

func TestValidateScriptSecondStepIndexed(t *testing.T) {
	script := &ir.Script{
		Name: "bad",
		Steps: []ir.Step{
			{Op: ir.StepIncrement},
			{Op: "reset"}, // steps[1]
		},
	}

	errs := Validate(script)
	require.Len(t, errs, 1)
	assert.Equal(t, "steps[1].op", errs[0].Field)
}

// =============================================================================
// General Validation Tests
// =============================================================================

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not an IR type")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateScriptByValue(t *testing.T) {
	script := ir.Script{
		Name:  "countup",
		Steps: []ir.Step{{Op: ir.StepIncrement}},
	}

	errs := Validate(script) // Pass by value, not pointer
	assert.Empty(t, errs)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	script := &ir.Script{
		Name: "", // E101
		Steps: []ir.Step{
			{Op: "halve"},                                // E102
			{Op: ir.StepIncrement, Amount: 5},            // E103
			{Op: ir.StepAdd, Amount: 1, Message: "oops"}, // E104
		},
	}

	errs := Validate(script)
	assert.GreaterOrEqual(t, len(errs), 4, "should collect multiple errors")

	// Verify we got different error codes
	codes := make(map[string]bool)
	for _, e := range errs {
		codes[e.Code] = true
	}
	assert.True(t, codes[ErrScriptNameEmpty], "should have name error")
	assert.True(t, codes[ErrUnknownStepOp], "should have unknown op error")
	assert.True(t, codes[ErrAmountNotAllowed], "should have amount error")
	assert.True(t, codes[ErrMessageNotAllowed], "should have message error")
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{
		Field:   "name",
		Message: "script name is required and must be non-empty",
		Code:    ErrScriptNameEmpty,
	}

	assert.Equal(t, "[E101] name: script name is required and must be non-empty", err.Error())
}

func TestValidationErrorFormatWithLine(t *testing.T) {
	err := ValidationError{
		Field:   "steps[0].op",
		Message: "unknown op",
		Code:    ErrUnknownStepOp,
		Line:    42,
	}

	assert.Equal(t, "[E102] line 42: steps[0].op: unknown op", err.Error())
}
