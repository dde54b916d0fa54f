package loop

import (
	"context"
	"log/slog"
)

// Loop is the single-writer turn loop.
//
// The loop runs posted tasks in FIFO order, one task per turn. Posting
// never runs a task synchronously: a task posted during turn N runs on a
// later turn, after every task that was posted before it.
//
// CRITICAL: All task execution happens in the goroutine that calls Run
// or RunUntilIdle. External callers use Post() to submit work.
//
// Thread-safety model:
//   - Post(): safe from any goroutine, including from a running task
//   - Run()/RunUntilIdle(): must be called from exactly one goroutine
//
// INVARIANTS:
//   - Tasks run in post order, without exception
//   - Turn numbers are strictly increasing, one per task
//   - Execution is single-threaded for determinism
type Loop struct {
	clock    *Clock
	queue    *taskQueue
	maxTurns int // Maximum turns per drain (default: 10000)
}

// Option configures loop parameters.
type Option func(*Loop)

// WithMaxTurns sets the maximum turns quota per drain.
//
// Default: 10000 turns (DefaultMaxTurns)
// Use WithMaxTurns(5) for testing quota enforcement.
// WithMaxTurns(0) disables the quota.
func WithMaxTurns(maxTurns int) Option {
	return func(l *Loop) {
		l.maxTurns = maxTurns
	}
}

// WithClock sets a pre-positioned clock.
// Used to resume turn numbering from a known position.
func WithClock(c *Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// New creates a Loop with an empty queue and a clock at turn 0.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:    NewClock(),
		queue:    newTaskQueue(),
		maxTurns: DefaultMaxTurns,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Post submits a task to run on a later turn.
// Thread-safe: may be called from any goroutine, including from a task.
//
// The label appears in error logs when the task fails.
// Returns false if the loop has been stopped; the task will never run.
func (l *Loop) Post(label string, fn TaskFunc) bool {
	return l.queue.Enqueue(task{label: label, fn: fn})
}

// Turn returns the number of the most recently started turn.
// Inside a running task, this is the task's own turn number.
func (l *Loop) Turn() int64 {
	return l.clock.Current()
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// MaxTurns returns the per-drain turns quota.
// Used for logging and diagnostics.
func (l *Loop) MaxTurns() int {
	return l.maxTurns
}

// Run starts the turn loop in service mode.
// Blocks until the context is cancelled or Stop() is called; an empty
// queue waits for more work instead of returning.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: On task failure the error is logged with the task's
// label and turn, and the loop continues. This "log and continue"
// behavior is intentional for determinism - retries would reorder turns.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("loop starting")

	for {
		// Try non-blocking dequeue first
		t, ok := l.queue.TryDequeue()
		if ok {
			turn := l.clock.Next()
			if err := t.fn(ctx); err != nil {
				logTaskError(t, turn, err)
			}
			continue
		}

		// No task ready - wait for signal or context cancellation
		select {
		case <-ctx.Done():
			slog.Info("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// A coalesced signal can fire with the queue already
			// drained. Only a closed queue with nothing left means
			// the loop is done.
			if l.queue.Closed() && l.queue.Len() == 0 {
				slog.Info("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// RunUntilIdle drains the queue and returns once no tasks remain.
//
// This is the entry point for one-shot work: post the first task, then
// drain. Tasks posted while draining run in the same drain, so a chain
// of follow-on posts runs to completion before RunUntilIdle returns.
//
// A fresh turns quota applies to each call. If the drain exceeds it,
// RunUntilIdle returns TurnsExceededError and the remaining tasks are
// left unrun.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (l *Loop) RunUntilIdle(ctx context.Context) error {
	quota := newTurnQuota(l.maxTurns)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t, ok := l.queue.TryDequeue()
		if !ok {
			return nil
		}

		if err := quota.Check(); err != nil {
			return err
		}

		turn := l.clock.Next()
		if err := t.fn(ctx); err != nil {
			logTaskError(t, turn, err)
		}
	}
}

// Stop gracefully shuts down the loop.
// Pending tasks still run; new posts are rejected. Run() returns once
// the queue drains.
func (l *Loop) Stop() {
	l.queue.Close()
}

// logTaskError logs a failed task with enough context for manual
// investigation. The loop never retries.
func logTaskError(t task, turn int64, err error) {
	slog.Error("task failed",
		"error", err,
		"label", t.label,
		"turn", turn,
	)
}
