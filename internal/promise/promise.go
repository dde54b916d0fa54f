package promise

import (
	"context"
	"log/slog"

	"github.com/roach88/relay/internal/loop"
)

// State is the settlement state of a promise.
type State int

const (
	// Pending means the promise has not settled.
	Pending State = iota
	// Fulfilled means the promise settled with a value.
	Fulfilled
	// Rejected means the promise settled with an error.
	Rejected
)

// String returns the state name for logs and test failures.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// reaction is a callback waiting for settlement, with the label used
// when it is posted to the loop.
type reaction struct {
	label string
	fn    func()
}

// Promise is a one-shot deferred completion value.
//
// The zero Promise is not usable; obtain one from NewDeferred, Resolved,
// Rejected, or a combinator.
type Promise[T any] struct {
	loop      *loop.Loop
	state     State
	value     T
	err       error
	reactions []reaction
}

func newPromise[T any](l *loop.Loop) *Promise[T] {
	return &Promise[T]{loop: l}
}

// State returns the current settlement state.
func (p *Promise[T]) State() State {
	return p.state
}

// Value returns the fulfillment value, or the zero value while the
// promise is pending or rejected.
func (p *Promise[T]) Value() T {
	return p.value
}

// Err returns the rejection error, or nil while the promise is pending
// or fulfilled.
func (p *Promise[T]) Err() error {
	return p.err
}

// resolve fulfills the promise. Settlement is one-shot; calls after the
// first settlement are ignored.
func (p *Promise[T]) resolve(v T) {
	if p.state != Pending {
		return
	}
	p.state = Fulfilled
	p.value = v
	p.flush()
}

// reject rejects the promise. Settlement is one-shot; calls after the
// first settlement are ignored.
func (p *Promise[T]) reject(err error) {
	if p.state != Pending {
		return
	}
	p.state = Rejected
	p.err = err
	p.flush()
}

// flush posts every queued reaction, in attachment order.
func (p *Promise[T]) flush() {
	for _, r := range p.reactions {
		p.post(r)
	}
	p.reactions = nil
}

// subscribe registers fn to run on a later turn once the promise settles.
// On an already settled promise the reaction is posted immediately, which
// still never runs it inline.
func (p *Promise[T]) subscribe(label string, fn func()) {
	if p.state == Pending {
		p.reactions = append(p.reactions, reaction{label: label, fn: fn})
		return
	}
	p.post(reaction{label: label, fn: fn})
}

func (p *Promise[T]) post(r reaction) {
	posted := p.loop.Post(r.label, func(ctx context.Context) error {
		r.fn()
		return nil
	})
	if !posted {
		// A stopped loop runs nothing; the reaction is dropped.
		slog.Debug("promise reaction dropped: loop stopped", "label", r.label)
	}
}
