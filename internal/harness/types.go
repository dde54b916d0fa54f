package harness

import (
	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/runner"
)

// TraceEvent is one emission of a scenario run, flattened for assertions
// and golden comparison.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Turn  int64  `json:"turn"`
	Kind  string `json:"kind"` // "marker" or "value"
	Text  string `json:"text"`
	Value int64  `json:"value,omitempty"` // value emissions only
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if the expect clause and all assertions match.
	Pass bool `json:"pass"`

	// Trace contains all emissions in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is the runner's report for the executed script.
	// Nil when the script never ran (e.g. it failed validation).
	Report *runner.Report `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEmissionTrace appends an emission to the trace.
func (r *Result) AddEmissionTrace(em ir.Emission) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:   em.Seq,
		Turn:  em.Turn,
		Kind:  string(em.Kind),
		Text:  em.Text,
		Value: em.Value,
	})
}

// Lines returns the emitted text lines of the trace in order.
func (r *Result) Lines() []string {
	lines := make([]string, len(r.Trace))
	for i, event := range r.Trace {
		lines[i] = event.Text
	}
	return lines
}
