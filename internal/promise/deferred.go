package promise

import "github.com/roach88/relay/internal/loop"

// Deferred is the settlement handle for a promise. The producer keeps the
// Deferred and hands out the Promise.
type Deferred[T any] struct {
	p *Promise[T]
}

// NewDeferred creates a pending promise bound to the given loop.
func NewDeferred[T any](l *loop.Loop) *Deferred[T] {
	return &Deferred[T]{p: newPromise[T](l)}
}

// Promise returns the promise controlled by this deferred.
func (d *Deferred[T]) Promise() *Promise[T] {
	return d.p
}

// Resolve fulfills the promise. Reactions run on later turns.
// Settlement is one-shot; calls after the first are ignored.
func (d *Deferred[T]) Resolve(v T) {
	d.p.resolve(v)
}

// Reject rejects the promise. Reactions run on later turns.
// Settlement is one-shot; calls after the first are ignored.
func (d *Deferred[T]) Reject(err error) {
	d.p.reject(err)
}

// Resolved returns a promise already fulfilled with v.
// Reactions attached to it still run on later turns.
func Resolved[T any](l *loop.Loop, v T) *Promise[T] {
	p := newPromise[T](l)
	p.resolve(v)
	return p
}

// Rejected returns a promise already rejected with err.
// Reactions attached to it still run on later turns.
func Rejected[T any](l *loop.Loop, err error) *Promise[T] {
	p := newPromise[T](l)
	p.reject(err)
	return p
}
