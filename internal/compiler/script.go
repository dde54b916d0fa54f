package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relay/internal/ir"
)

// CompileScript parses a CUE value into a Script.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the script struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`script: countup: { steps: [{op: "increment"}] }`)
//	script, err := CompileScript(v.LookupPath(cue.ParsePath("script.countup")))
//
// The script name is taken from the struct label. CompileScript checks
// structure and types; semantic rules (known ops, per-op fields) are
// checked by Validate.
func CompileScript(v cue.Value) (ir.Script, error) {
	if err := v.Err(); err != nil {
		return ir.Script{}, formatCUEError(err)
	}

	var script ir.Script

	// Parse script name from struct label (the path selector).
	// Quoted labels like "my-chain" unquote to the bare name.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		sel := labels[len(labels)-1]
		if sel.IsString() {
			script.Name = sel.Unquoted()
		} else {
			script.Name = sel.String()
		}
	}

	// Parse start (optional, defaults to 0)
	startVal := v.LookupPath(cue.ParsePath("start"))
	if startVal.Exists() {
		start, err := extractInt(startVal, "start")
		if err != nil {
			return ir.Script{}, err
		}
		script.Start = start
	}

	// Parse steps (optional; a script with no steps emits markers only)
	steps, err := parseSteps(v)
	if err != nil {
		return ir.Script{}, err
	}
	script.Steps = steps

	// Parse markers (optional, defaults filled by Normalize)
	markers, err := parseMarkers(v)
	if err != nil {
		return ir.Script{}, err
	}
	script.Markers = markers

	return script, nil
}

// parseSteps extracts the step list from the script.
func parseSteps(v cue.Value) ([]ir.Step, error) {
	var steps []ir.Step

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return steps, nil // steps are optional
	}

	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		stepVal := iter.Value()

		opVal := stepVal.LookupPath(cue.ParsePath("op"))
		if !opVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("steps[%d].op", i),
				Message: "op is required",
				Pos:     stepVal.Pos(),
			}
		}
		op, err := opVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		step := ir.Step{Op: ir.StepOp(op)}

		amountVal := stepVal.LookupPath(cue.ParsePath("amount"))
		if amountVal.Exists() {
			amount, err := extractInt(amountVal, fmt.Sprintf("steps[%d].amount", i))
			if err != nil {
				return nil, err
			}
			step.Amount = amount
		}

		messageVal := stepVal.LookupPath(cue.ParsePath("message"))
		if messageVal.Exists() {
			message, err := messageVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			step.Message = message
		}

		steps = append(steps, step)
	}

	return steps, nil
}

// parseMarkers extracts the marker overrides from the script.
func parseMarkers(v cue.Value) (ir.Markers, error) {
	var markers ir.Markers

	markersVal := v.LookupPath(cue.ParsePath("markers"))
	if !markersVal.Exists() {
		return markers, nil // markers are optional
	}

	beginVal := markersVal.LookupPath(cue.ParsePath("begin"))
	if beginVal.Exists() {
		begin, err := beginVal.String()
		if err != nil {
			return markers, formatCUEError(err)
		}
		markers.Begin = begin
	}

	endVal := markersVal.LookupPath(cue.ParsePath("end"))
	if endVal.Exists() {
		end, err := endVal.String()
		if err != nil {
			return markers, formatCUEError(err)
		}
		markers.End = end
	}

	return markers, nil
}

// extractInt reads an int64 from a CUE value.
// Floats are forbidden: counter arithmetic is integer only.
func extractInt(v cue.Value, field string) (int64, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be an int, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
