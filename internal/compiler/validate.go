package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/relay/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Script errors (E101-E109)
	ErrScriptNameEmpty   = "E101" // script name is required
	ErrUnknownStepOp     = "E102" // step op not one of increment/add/fail
	ErrAmountNotAllowed  = "E103" // amount set on a non-add step
	ErrMessageNotAllowed = "E104" // message set on a non-fail step
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch s := v.(type) {
	case *ir.Script:
		return validateScript(s)
	case ir.Script:
		return validateScript(&s)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateScript checks a script's semantic rules.
func validateScript(s *ir.Script) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "script name is required and must be non-empty",
			Code:    ErrScriptNameEmpty,
		})
	}

	for i, step := range s.Steps {
		// E102: op must be known
		if !ir.ValidOps[step.Op] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("steps[%d].op", i),
				Message: fmt.Sprintf("unknown op %q (want increment, add, or fail)", step.Op),
				Code:    ErrUnknownStepOp,
			})
		}

		// E103: amount belongs to add steps only
		if step.Amount != 0 && step.Op != ir.StepAdd {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("steps[%d].amount", i),
				Message: fmt.Sprintf("amount is only valid for op %q", ir.StepAdd),
				Code:    ErrAmountNotAllowed,
			})
		}

		// E104: message belongs to fail steps only
		if step.Message != "" && step.Op != ir.StepFail {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("steps[%d].message", i),
				Message: fmt.Sprintf("message is only valid for op %q", ir.StepFail),
				Code:    ErrMessageNotAllowed,
			})
		}
	}

	return errs
}
