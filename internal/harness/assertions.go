package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relay/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [seq %d turn %d] %s %q\n", event.Seq, event.Turn, event.Kind, event.Text)
	}

	return buf.String()
}

// assertTraceLines checks that the emitted lines match the expected
// sequence exactly, in order.
func assertTraceLines(trace []TraceEvent, assertion Assertion) error {
	got := make([]string, len(trace))
	for i, event := range trace {
		got[i] = event.Text
	}

	if !slices.Equal(got, assertion.Lines) {
		return &AssertionError{
			Type:     "trace_lines",
			Expected: fmt.Sprintf("lines %q", assertion.Lines),
			Actual:   fmt.Sprintf("lines %q", got),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceContains checks if the trace contains an emission matching
// the specified line (and kind, when given).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Text == assertion.Line && (assertion.Kind == "" || event.Kind == assertion.Kind) {
			return nil // Found matching emission
		}
	}

	expected := fmt.Sprintf("line %q", assertion.Line)
	if assertion.Kind != "" {
		expected += fmt.Sprintf(" with kind %q", assertion.Kind)
	}
	return &AssertionError{
		Type:     "trace_contains",
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks if matching emissions appear exactly the
// specified number of times. An empty line matches any text; an empty
// kind matches both kinds.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.Line != "" && event.Text != assertion.Line {
			continue
		}
		if assertion.Kind != "" && event.Kind != assertion.Kind {
			continue
		}
		count++
	}

	if count != assertion.Count {
		var what []string
		if assertion.Line != "" {
			what = append(what, fmt.Sprintf("line %q", assertion.Line))
		}
		if assertion.Kind != "" {
			what = append(what, fmt.Sprintf("kind %q", assertion.Kind))
		}
		return &AssertionError{
			Type:     "trace_count",
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, strings.Join(what, " ")),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertStampsMonotonic checks the runner's stamping invariant: seq is
// contiguous from 1 and each emission lands on a strictly later turn.
func assertStampsMonotonic(trace []TraceEvent) error {
	for i, event := range trace {
		if event.Seq != int64(i+1) {
			return &AssertionError{
				Type:     "stamps_monotonic",
				Expected: fmt.Sprintf("seq %d at position %d", i+1, i),
				Actual:   fmt.Sprintf("seq %d", event.Seq),
				Trace:    trace,
			}
		}
		if i > 0 && event.Turn <= trace[i-1].Turn {
			return &AssertionError{
				Type:     "stamps_monotonic",
				Expected: fmt.Sprintf("turn after %d at seq %d", trace[i-1].Turn, event.Seq),
				Actual:   fmt.Sprintf("turn %d", event.Turn),
				Trace:    trace,
			}
		}
	}

	return nil
}

// assertStoredTrace reads the persisted emissions back and compares them
// field by field against the captured trace.
func assertStoredTrace(actx *AssertionContext, result *Result) error {
	if result.Report == nil {
		return fmt.Errorf("stored_trace requires an executed script")
	}

	stored, err := actx.Store.ReadEmissions(actx.Ctx, actx.RunToken)
	if err != nil {
		return fmt.Errorf("stored_trace: read emissions: %w", err)
	}

	divs := store.CompareEmissions(stored, result.Report.Emissions)
	if len(divs) > 0 {
		parts := make([]string, len(divs))
		for i, div := range divs {
			parts[i] = div.String()
		}
		return &AssertionError{
			Type:     "stored_trace",
			Expected: "persisted trace identical to captured trace",
			Actual:   strings.Join(parts, "; "),
			Trace:    result.Trace,
		}
	}

	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store    *store.Store
	Ctx      context.Context
	RunToken string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for stored_trace assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceLines:
			err = assertTraceLines(result.Trace, assertion)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStampsMonotonic:
			err = assertStampsMonotonic(result.Trace)
		case AssertStoredTrace:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: stored_trace requires database context", i)
			} else {
				err = assertStoredTrace(actx, result)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
