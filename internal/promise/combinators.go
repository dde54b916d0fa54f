package promise

import (
	"errors"

	"github.com/roach88/relay/internal/loop"
)

// Then derives a promise by applying fn to the fulfillment value.
//
// fn runs on a later turn. A returned error rejects the derived promise.
// If p rejects, fn is skipped and the rejection propagates.
func Then[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	out := newPromise[U](p.loop)
	p.subscribe("promise.then", func() {
		switch p.state {
		case Fulfilled:
			v, err := fn(p.value)
			if err != nil {
				out.reject(err)
				return
			}
			out.resolve(v)
		case Rejected:
			out.reject(p.err)
		}
	})
	return out
}

// ThenP is the flattening variant of Then for steps that are themselves
// asynchronous: the derived promise settles the way fn's promise settles.
func ThenP[T, U any](p *Promise[T], fn func(T) *Promise[U]) *Promise[U] {
	out := newPromise[U](p.loop)
	p.subscribe("promise.thenp", func() {
		switch p.state {
		case Fulfilled:
			inner := fn(p.value)
			if inner == nil {
				out.reject(errors.New("thenp: callback returned nil promise"))
				return
			}
			inner.subscribe("promise.thenp.flatten", func() {
				switch inner.state {
				case Fulfilled:
					out.resolve(inner.value)
				case Rejected:
					out.reject(inner.err)
				}
			})
		case Rejected:
			out.reject(p.err)
		}
	})
	return out
}

// Catch derives a promise that intercepts rejection.
//
// fn runs on a later turn, only if p rejects. It may recover by returning
// a value, or re-reject by returning an error. Fulfillment of p passes
// through untouched.
func Catch[T any](p *Promise[T], fn func(error) (T, error)) *Promise[T] {
	out := newPromise[T](p.loop)
	p.subscribe("promise.catch", func() {
		switch p.state {
		case Fulfilled:
			out.resolve(p.value)
		case Rejected:
			v, err := fn(p.err)
			if err != nil {
				out.reject(err)
				return
			}
			out.resolve(v)
		}
	})
	return out
}

// Finally runs fn on settlement either way, on a later turn, and passes
// the settlement through.
func Finally[T any](p *Promise[T], fn func()) *Promise[T] {
	out := newPromise[T](p.loop)
	p.subscribe("promise.finally", func() {
		fn()
		switch p.state {
		case Fulfilled:
			out.resolve(p.value)
		case Rejected:
			out.reject(p.err)
		}
	})
	return out
}

// All fulfills with every input's value, in input order, once all inputs
// fulfill. The first rejection to settle rejects the result instead.
// With no inputs the result fulfills with an empty slice.
func All[T any](l *loop.Loop, ps ...*Promise[T]) *Promise[[]T] {
	out := newPromise[[]T](l)
	if len(ps) == 0 {
		out.resolve([]T{})
		return out
	}

	values := make([]T, len(ps))
	remaining := len(ps)
	for i, p := range ps {
		p.subscribe("promise.all", func() {
			if out.state != Pending {
				return
			}
			switch p.state {
			case Fulfilled:
				values[i] = p.value
				remaining--
				if remaining == 0 {
					out.resolve(values)
				}
			case Rejected:
				out.reject(p.err)
			}
		})
	}
	return out
}

// Done attaches terminal observers. Like every reaction they run on a
// later turn. Either observer may be nil.
func Done[T any](p *Promise[T], onValue func(T), onError func(error)) {
	p.subscribe("promise.done", func() {
		switch p.state {
		case Fulfilled:
			if onValue != nil {
				onValue(p.value)
			}
		case Rejected:
			if onError != nil {
				onError(p.err)
			}
		}
	})
}
