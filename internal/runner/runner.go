package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/roach88/relay/internal/ir"
	"github.com/roach88/relay/internal/loop"
	"github.com/roach88/relay/internal/promise"
	"github.com/roach88/relay/internal/store"
)

// Runner executes chain scripts.
//
// A Runner is stateless across runs and safe to reuse; each Run gets a
// fresh loop, token, and seq numbering.
type Runner struct {
	store    *store.Store
	emitter  Emitter
	tokens   TokenGenerator
	maxTurns int
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore attaches trace persistence. Without it runs leave no record.
func WithStore(s *store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithEmitter replaces the default stdout console emitter.
func WithEmitter(e Emitter) Option {
	return func(r *Runner) { r.emitter = e }
}

// WithTokenGenerator replaces the UUIDv7 default. Tests use
// NewFixedGenerator for reproducible tokens.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(r *Runner) { r.tokens = g }
}

// WithMaxTurns bounds the loop turns a single run may consume.
// Zero disables the bound.
func WithMaxTurns(n int) Option {
	return func(r *Runner) { r.maxTurns = n }
}

// New creates a Runner. By default emissions go to stdout, tokens are
// UUIDv7, and runs are not persisted.
func New(opts ...Option) *Runner {
	r := &Runner{
		emitter:  NewConsoleEmitter(os.Stdout),
		tokens:   UUIDv7Generator{},
		maxTurns: loop.DefaultMaxTurns,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Report summarizes one run.
type Report struct {
	Token      string
	ScriptName string
	ScriptHash string
	Status     ir.RunStatus
	FinalValue int64 // counter value the chain ended on (success only)
	Turns      int64 // loop turns the run consumed
	Emissions  []ir.Emission
	Err        error // the abort cause when Status is error
}

// Lines returns the report's emitted text lines in trace order.
func (r *Report) Lines() []string {
	return ir.Lines(r.Emissions)
}

// Run executes one script to completion on a fresh loop.
//
// The chain unfolds strictly sequentially: the root turn emits the begin
// marker and resolves the start value; each step receives its
// predecessor's value as a parameter, computes its own, and emits it;
// the terminal link emits the end marker. One emission per turn, in
// chain order.
//
// On a step failure the chain rejects: later steps are skipped, the end
// marker is not emitted, and Run returns the step error alongside a
// Report with Status error. Emitter and store errors abort the same way.
// Run never retries.
func (r *Runner) Run(ctx context.Context, script ir.Script) (*Report, error) {
	script.Normalize()
	if errs := script.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid script %q: %w", script.Name, errs[0])
	}

	hash, err := ir.ScriptHash(script)
	if err != nil {
		return nil, fmt.Errorf("hash script: %w", err)
	}

	token := r.tokens.Generate()
	slog.Debug("run starting",
		"script", script.Name,
		"token", token,
		"steps", len(script.Steps),
	)

	// The run row is written up front with status pending. A crash
	// mid-run leaves the pending row visible for inspection.
	if r.store != nil {
		scriptJSON, err := script.CanonicalJSON()
		if err != nil {
			return nil, fmt.Errorf("canonical script: %w", err)
		}
		run := ir.Run{
			Token:         token,
			ScriptName:    script.Name,
			ScriptHash:    hash,
			Status:        ir.StatusPending,
			RunnerVersion: ir.RunnerVersion,
			IRVersion:     ir.IRVersion,
		}
		if err := r.store.WriteRun(ctx, run, scriptJSON); err != nil {
			return nil, fmt.Errorf("write run: %w", err)
		}
	}

	lp := loop.New(loop.WithMaxTurns(r.maxTurns))

	var (
		seq       int64
		emissions []ir.Emission
	)

	// emit stamps the emission with the next seq and the current loop
	// turn, forwards it to the emitter, and persists it.
	emit := func(kind ir.EmissionKind, text string, value int64) error {
		seq++
		em := ir.Emission{
			RunToken: token,
			Seq:      seq,
			Turn:     lp.Turn(),
			Kind:     kind,
			Text:     text,
			Value:    value,
		}
		emissions = append(emissions, em)
		if err := r.emitter.Emit(em); err != nil {
			return err
		}
		if r.store != nil {
			if err := r.store.WriteEmission(ctx, em); err != nil {
				return fmt.Errorf("persist emission %d: %w", em.Seq, err)
			}
		}
		return nil
	}

	// Root turn: begin marker, then the start value enters the chain.
	root := promise.NewDeferred[int64](lp)
	lp.Post("run.begin", func(_ context.Context) error {
		if err := emit(ir.KindMarker, script.Markers.Begin, 0); err != nil {
			root.Reject(err)
			return err
		}
		root.Resolve(script.Start)
		return nil
	})

	// Each step is one link. The step's input arrives as the parameter
	// v; nothing is read from shared state.
	p := root.Promise()
	for i, st := range script.Steps {
		p = promise.Then(p, func(v int64) (int64, error) {
			next, err := ApplyStep(st, v)
			if err != nil {
				return 0, &StepError{
					RunToken:  token,
					StepIndex: i,
					Op:        st.Op,
					Message:   err.Error(),
				}
			}
			if err := emit(ir.KindValue, strconv.FormatInt(next, 10), next); err != nil {
				return 0, err
			}
			return next, nil
		})
	}

	// The end marker only follows a fully successful chain.
	final := promise.Then(p, func(v int64) (int64, error) {
		if err := emit(ir.KindMarker, script.Markers.End, 0); err != nil {
			return 0, err
		}
		return v, nil
	})

	var (
		settled  bool
		chainVal int64
		chainErr error
	)
	promise.Done(final,
		func(v int64) { settled, chainVal = true, v },
		func(err error) { settled, chainErr = true, err },
	)

	drainErr := lp.RunUntilIdle(ctx)

	report := &Report{
		Token:      token,
		ScriptName: script.Name,
		ScriptHash: hash,
		Turns:      lp.Turn(),
		Emissions:  emissions,
	}

	switch {
	case drainErr != nil:
		// Cancellation or turns quota; the chain may be mid-flight.
		report.Status = ir.StatusError
		report.Err = drainErr
	case !settled:
		report.Status = ir.StatusError
		report.Err = fmt.Errorf("run %s: chain never settled", token)
	case chainErr != nil:
		report.Status = ir.StatusError
		report.Err = chainErr
	default:
		report.Status = ir.StatusOK
		report.FinalValue = chainVal
	}

	if r.store != nil {
		errMsg := ""
		if report.Err != nil {
			errMsg = report.Err.Error()
		}
		if err := r.store.FinishRun(ctx, token, report.Status, report.FinalValue, errMsg); err != nil {
			// The emissions are already persisted; a lost terminal
			// status is visible as a stuck pending row.
			slog.Error("finish run failed", "error", err, "token", token)
		}
	}

	if report.Err != nil {
		slog.Debug("run aborted", "token", token, "error", report.Err)
		return report, report.Err
	}

	slog.Debug("run finished",
		"token", token,
		"final_value", report.FinalValue,
		"turns", report.Turns,
	)
	return report, nil
}

// DefaultScript returns the built-in count-up: three increments from
// zero with the default markers. Output: begin, 1, 2, 3, end.
func DefaultScript() ir.Script {
	s := ir.Script{
		Name:  "countup",
		Start: 0,
		Steps: []ir.Step{
			{Op: ir.StepIncrement},
			{Op: ir.StepIncrement},
			{Op: ir.StepIncrement},
		},
	}
	s.Normalize()
	return s
}
