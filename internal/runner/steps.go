package runner

import (
	"errors"
	"fmt"

	"github.com/roach88/relay/internal/ir"
)

// ApplyStep computes the counter value a step produces from its
// predecessor's value.
//
//	increment: value + 1
//	add:       value + Amount
//	fail:      error carrying the step's message
//
// Shared by the chain builder and the invoke command so a step means the
// same thing everywhere.
func ApplyStep(step ir.Step, value int64) (int64, error) {
	switch step.Op {
	case ir.StepIncrement:
		return value + 1, nil
	case ir.StepAdd:
		return value + step.Amount, nil
	case ir.StepFail:
		msg := step.Message
		if msg == "" {
			msg = "step failed"
		}
		return 0, errors.New(msg)
	default:
		return 0, fmt.Errorf("unknown step op %q", step.Op)
	}
}

// StepError reports the step that aborted a run.
//
// StepIndex is the 0-based position in Script.Steps, matching the
// steps[N] field notation used by validation errors.
type StepError struct {
	RunToken  string
	StepIndex int
	Op        ir.StepOp
	Message   string
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("steps[%d] (%s): %s", e.StepIndex, e.Op, e.Message)
}

// IsStepError returns true if the error is a StepError.
// Uses errors.As to handle wrapped errors.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
