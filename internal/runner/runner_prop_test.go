package runner

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/relay/internal/ir"
)

// arithStepGen draws an increment or add step, never a fail.
func arithStepGen() *rapid.Generator[ir.Step] {
	return rapid.Custom(func(rt *rapid.T) ir.Step {
		if rapid.Bool().Draw(rt, "isAdd") {
			return ir.Step{
				Op:     ir.StepAdd,
				Amount: rapid.Int64Range(-1000, 1000).Draw(rt, "amount"),
			}
		}
		return ir.Step{Op: ir.StepIncrement}
	})
}

func TestProperty_TraceMatchesFold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		script := ir.Script{
			Name:  "prop",
			Start: rapid.Int64Range(-1000, 1000).Draw(rt, "start"),
			Steps: rapid.SliceOfN(arithStepGen(), 0, 8).Draw(rt, "steps"),
		}

		capture := NewCaptureEmitter()
		r := New(WithEmitter(capture), WithTokenGenerator(NewFixedGenerator("prop-run")))
		report, err := r.Run(context.Background(), script)
		require.NoError(t, err)

		// The trace is exactly the fold of the steps over the start
		// value, bracketed by the markers.
		want := []string{"begin"}
		value := script.Start
		for _, st := range script.Steps {
			next, err := ApplyStep(st, value)
			require.NoError(t, err)
			want = append(want, strconv.FormatInt(next, 10))
			value = next
		}
		want = append(want, "end")

		require.Equal(t, want, capture.Lines())
		require.Equal(t, ir.StatusOK, report.Status)
		require.Equal(t, value, report.FinalValue)

		// Root turn + one turn per step + end marker + observer.
		require.Equal(t, int64(len(script.Steps)+3), report.Turns)

		for i, em := range report.Emissions {
			require.Equal(t, int64(i+1), em.Seq, "seq must be contiguous")
			if i > 0 {
				require.Less(t, report.Emissions[i-1].Turn, em.Turn,
					"each emission must land on a strictly later turn")
			}
		}
	})
}

func TestProperty_ReRunDigestStable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		script := ir.Script{
			Name:  "prop-rerun",
			Start: rapid.Int64Range(-1000, 1000).Draw(rt, "start"),
			Steps: rapid.SliceOfN(arithStepGen(), 0, 8).Draw(rt, "steps"),
		}

		run := func(token string) *Report {
			r := New(
				WithEmitter(NewCaptureEmitter()),
				WithTokenGenerator(NewFixedGenerator(token)),
			)
			report, err := r.Run(context.Background(), script)
			require.NoError(t, err)
			return report
		}

		first := run("prop-a")
		second := run("prop-b")

		require.Equal(t, first.Lines(), second.Lines())
		require.Equal(t,
			ir.MustTraceDigest(first.Emissions),
			ir.MustTraceDigest(second.Emissions),
			"re-running a script must reproduce the trace digest")
	})
}

func TestProperty_FailTruncatesTrace(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prefix := rapid.SliceOfN(arithStepGen(), 0, 5).Draw(rt, "prefix")
		suffix := rapid.SliceOfN(arithStepGen(), 0, 5).Draw(rt, "suffix")

		steps := append([]ir.Step{}, prefix...)
		steps = append(steps, ir.Step{Op: ir.StepFail, Message: "prop failure"})
		steps = append(steps, suffix...)

		script := ir.Script{
			Name:  "prop-fail",
			Start: rapid.Int64Range(-1000, 1000).Draw(rt, "start"),
			Steps: steps,
		}

		capture := NewCaptureEmitter()
		r := New(WithEmitter(capture), WithTokenGenerator(NewFixedGenerator("prop-run")))
		report, err := r.Run(context.Background(), script)
		require.Error(t, err)
		require.Equal(t, ir.StatusError, report.Status)

		// Everything before the failing step is emitted, nothing after,
		// and the end marker never appears.
		want := []string{"begin"}
		value := script.Start
		for _, st := range prefix {
			next, err := ApplyStep(st, value)
			require.NoError(t, err)
			want = append(want, strconv.FormatInt(next, 10))
			value = next
		}
		require.Equal(t, want, capture.Lines())

		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		require.Equal(t, len(prefix), stepErr.StepIndex)
		require.Equal(t, ir.StepFail, stepErr.Op)
	})
}
