package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StepOp identifies a step operation.
type StepOp string

const (
	// StepIncrement adds 1 to the counter.
	StepIncrement StepOp = "increment"
	// StepAdd adds Amount to the counter.
	StepAdd StepOp = "add"
	// StepFail rejects the chain with Message.
	StepFail StepOp = "fail"
)

// ValidOps defines the allowed step operations.
var ValidOps = map[StepOp]bool{
	StepIncrement: true,
	StepAdd:       true,
	StepFail:      true,
}

// Default marker lines, used when a script declares none.
const (
	DefaultBeginMarker = "begin"
	DefaultEndMarker   = "end"
)

// Step is a single deferred unit of work in a chain.
// Each step receives the counter value produced by its predecessor.
type Step struct {
	Op      StepOp `json:"op"`
	Amount  int64  `json:"amount,omitempty"`  // add only
	Message string `json:"message,omitempty"` // fail only
}

// Markers are the lines emitted before the first step and after the last.
type Markers struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
}

// Script is a compiled chain definition: a begin marker, a sequence of
// steps threading an int64 counter, and an end marker.
//
// Scripts are pure data. Execution order, deferral, and emission stamping
// belong to the runner; a Script only says WHAT runs.
type Script struct {
	Name    string  `json:"name"`
	Start   int64   `json:"start"`
	Markers Markers `json:"markers"`
	Steps   []Step  `json:"steps"`
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize fills in defaulted fields: empty markers become the standard
// begin/end lines. Step contents are never rewritten, so normalization
// before hashing is stable.
func (s *Script) Normalize() {
	if s.Markers.Begin == "" {
		s.Markers.Begin = DefaultBeginMarker
	}
	if s.Markers.End == "" {
		s.Markers.End = DefaultEndMarker
	}
}

// Validate checks the script against schema rules.
// Returns all errors (not fail-fast) for better developer experience.
//
// A script with zero steps is valid: it emits only the two markers.
func (s *Script) Validate() []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "script name is required",
		})
	}

	for i, step := range s.Steps {
		if !ValidOps[step.Op] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("steps[%d].op", i),
				Message: fmt.Sprintf("unknown op %q, must be one of: increment, add, fail", step.Op),
			})
			continue
		}
		if step.Op != StepAdd && step.Amount != 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("steps[%d].amount", i),
				Message: fmt.Sprintf("amount is only valid for op %q", StepAdd),
			})
		}
		if step.Op != StepFail && step.Message != "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("steps[%d].message", i),
				Message: fmt.Sprintf("message is only valid for op %q", StepFail),
			})
		}
	}

	return errs
}

// canonicalMap converts the script to the plain map form consumed by
// MarshalCanonical. Optional step fields are omitted when zero so that
// semantically identical scripts hash identically.
func (s Script) canonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		m := map[string]any{"op": string(step.Op)}
		if step.Amount != 0 {
			m["amount"] = step.Amount
		}
		if step.Message != "" {
			m["message"] = step.Message
		}
		steps[i] = m
	}

	return map[string]any{
		"ir_version": IRVersion,
		"markers": map[string]any{
			"begin": s.Markers.Begin,
			"end":   s.Markers.End,
		},
		"name":  s.Name,
		"start": s.Start,
		"steps": steps,
	}
}

// CanonicalJSON serializes the script to RFC 8785 canonical JSON.
// This is the form stored alongside runs and the input to ScriptHash.
func (s Script) CanonicalJSON() ([]byte, error) {
	data, err := MarshalCanonical(s.canonicalMap())
	if err != nil {
		return nil, fmt.Errorf("canonical script %q: %w", s.Name, err)
	}
	return data, nil
}

// scriptJSON mirrors the canonical script layout for decoding.
type scriptJSON struct {
	IRVersion string            `json:"ir_version"`
	Markers   map[string]string `json:"markers"`
	Name      string            `json:"name"`
	Start     int64             `json:"start"`
	Steps     []Step            `json:"steps"`
}

// ParseScript decodes a script from its canonical JSON form.
// Used by replay to re-execute exactly what was stored.
func ParseScript(data []byte) (Script, error) {
	var raw scriptJSON
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}

	s := Script{
		Name:  raw.Name,
		Start: raw.Start,
		Steps: raw.Steps,
	}
	if raw.Markers != nil {
		s.Markers.Begin = raw.Markers["begin"]
		s.Markers.End = raw.Markers["end"]
	}
	s.Normalize()

	if errs := s.Validate(); len(errs) > 0 {
		return Script{}, fmt.Errorf("parse script: %w", errs[0])
	}
	return s, nil
}
