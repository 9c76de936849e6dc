// Package future implements the public, composable Promise/Future pair
// built on top of package delay's rendezvous cell. Promise is the
// producer end, Future the consumer end; each is conceptually a move-only
// handle, which Go approximates with a "valid" flag flipped by the terminal
// operations — calling a terminal operation twice on the same handle
// panics rather than silently misbehaving, since Go has no move semantics
// to enforce this at compile time.
package future

import (
	"github.com/sesh-run/asyncore/delay"
	"github.com/sesh-run/asyncore/outcome"
)

// Promise is the producer end of a Promise/Future pair. A Promise is
// valid until one of its terminal operations (SetResult, SetResultFrom,
// Fail, Complete) is called.
type Promise[T any] struct {
	cell  *delay.Cell[T]
	valid bool
}

// Future is the consumer end of a Promise/Future pair. A Future is
// valid until one of its terminal operations (Then, or any combinator that
// consumes it) is called.
type Future[T any] struct {
	cell  *delay.Cell[T]
	valid bool
}

// PromiseFuture creates a new Delay cell and returns its paired Promise and
// Future: the cell has exactly one Promise and one Future for its entire
// lifetime.
func PromiseFuture[T any]() (Promise[T], Future[T]) {
	c := delay.New[T]()
	return Promise[T]{cell: c, valid: true}, Future[T]{cell: c, valid: true}
}

// FutureOf returns an already-resolved Future holding v.
func FutureOf[T any](v T) Future[T] {
	p, f := PromiseFuture[T]()
	p.SetResult(v)
	return f
}

// FailedFuture returns an already-resolved Future holding err as its
// failure.
func FailedFuture[T any](err error) Future[T] {
	p, f := PromiseFuture[T]()
	p.Fail(err)
	return f
}

// FutureFrom evaluates f immediately, returning a Future already resolved
// to the result (or to the error f returned, caught as the failure arm).
func FutureFrom[T any](f func() (T, error)) Future[T] {
	p, fut := PromiseFuture[T]()
	p.SetResultFrom(f)
	return fut
}

func (p *Promise[T]) checkValid(op string) {
	if !p.valid {
		panic("future: Promise." + op + " called on an invalidated promise")
	}
}

func (f *Future[T]) checkValid(op string) {
	if !f.valid {
		panic("future: Future." + op + " called on an invalidated future")
	}
}

// SetResult fulfils the promise with v. Terminal: invalidates the promise.
func (p *Promise[T]) SetResult(v T) {
	p.checkValid("SetResult")
	p.cell.SetResult(outcome.Value(v))
	p.invalidate()
}

// SetResultFrom fulfils the promise with the result of calling f, catching
// any error it returns as the failure arm. Terminal: invalidates the
// promise.
func (p *Promise[T]) SetResultFrom(f func() (T, error)) {
	p.checkValid("SetResultFrom")
	p.cell.SetResultFrom(f)
	p.invalidate()
}

// Fail fulfils the promise with the given failure. Terminal: invalidates
// the promise. Panics if err is nil.
func (p *Promise[T]) Fail(err error) {
	p.checkValid("Fail")
	p.cell.SetResult(outcome.Failure[T](err))
	p.invalidate()
}

// Complete fulfils the promise with a pre-built Outcome (used internally by
// combinators that already hold an Outcome and want to propagate it
// verbatim). Terminal: invalidates the promise.
func (p *Promise[T]) Complete(o outcome.Outcome[T]) {
	p.checkValid("Complete")
	p.cell.SetResult(o)
	p.invalidate()
}

// Valid reports whether this promise still has an associated future.
func (p *Promise[T]) Valid() bool { return p.valid }

func (p *Promise[T]) invalidate() {
	p.cell = nil
	p.valid = false
}

// Valid reports whether this future still has an associated promise.
func (f *Future[T]) Valid() bool { return f.valid }

func (f *Future[T]) invalidate() {
	f.cell = nil
	f.valid = false
}

// Then installs cb as the terminal callback on this future. Terminal:
// invalidates the future. If the result is already present, cb fires
// synchronously on this call.
func (f *Future[T]) Then(cb func(outcome.Outcome[T])) {
	f.checkValid("Then")
	f.cell.SetCallback(cb)
	f.invalidate()
}

// Forward routes f's eventual result verbatim into target, consuming both
// handles. Terminal on f.
func (f *Future[T]) Forward(target Promise[T]) {
	f.checkValid("Forward")
	t := target
	f.cell.SetCallback(func(o outcome.Outcome[T]) {
		t.Complete(o)
	})
	f.invalidate()
}

// Map transforms a successful result with fn; a failure passes through
// unchanged — fn is never called on a failed future. If fn panics, the
// panic is recovered and becomes the new Future's failure (see
// ThenWithConversion). For transforms that need to see both branches, use
// ThenWithConversion.
func Map[T, U any](f Future[T], fn func(T) U) Future[U] {
	return ThenWithConversion(f, func(o outcome.Outcome[T]) outcome.Outcome[U] {
		v, err := o.Get()
		if err != nil {
			return outcome.Failure[U](err)
		}
		return outcome.Value(fn(v))
	})
}

// ThenWithConversion is the Outcome-returning generalization of Map: conv
// observes both the success and failure branches of f and produces the new
// Outcome[U] directly. A panic from conv is recovered the same way
// outcome.TryPanic recovers one, and becomes the new Future's failure
// rather than propagating out of the callback.
func ThenWithConversion[T, U any](f Future[T], conv func(outcome.Outcome[T]) outcome.Outcome[U]) Future[U] {
	f.checkValid("ThenWithConversion")
	p, result := PromiseFuture[U]()
	f.cell.SetCallback(func(o outcome.Outcome[T]) {
		nested := outcome.TryPanic(func() outcome.Outcome[U] { return conv(o) })
		out, err := nested.Get()
		if err != nil {
			p.Complete(outcome.Failure[U](err))
			return
		}
		p.Complete(out)
	})
	f.invalidate()
	return result
}

// Recover transforms a failure into a success using fn; a success passes
// through unchanged. If fn panics, the panic is recovered and becomes the
// new Future's failure, the same as any other conversion passed through
// ThenWithConversion.
func Recover[T any](f Future[T], fn func(error) T) Future[T] {
	return ThenWithConversion(f, func(o outcome.Outcome[T]) outcome.Outcome[T] {
		v, err := o.Get()
		if err == nil {
			return outcome.Value(v)
		}
		return outcome.Value(fn(err))
	})
}

// Wrap materialises f as the value of an outer future: the outer future
// resolves to f itself once f settles successfully, but a failure of f
// propagates directly to the outer future rather than becoming a
// "successful Future holding a failure".
func Wrap[T any](f Future[T]) Future[Future[T]] {
	f.checkValid("Wrap")
	p, out := PromiseFuture[Future[T]]()
	innerP, innerF := PromiseFuture[T]()
	f.cell.SetCallback(func(o outcome.Outcome[T]) {
		v, err := o.Get()
		if err != nil {
			p.Fail(err)
			return
		}
		innerP.SetResult(v)
		p.SetResult(innerF)
	})
	f.invalidate()
	return out
}

// Unwrap sequences two layers of Future: the result is whichever layer
// fails first, or the inner value if both succeed.
func Unwrap[T any](f Future[Future[T]]) Future[T] {
	p, out := PromiseFuture[T]()
	f.Then(func(o outcome.Outcome[Future[T]]) {
		inner, err := o.Get()
		if err != nil {
			p.Fail(err)
			return
		}
		inner.Forward(p)
	})
	return out
}

// FlatMap composes Map and Unwrap with short-circuit on failure: on
// success, fn is applied to produce the next future; on failure, the
// failure propagates without calling fn.
func FlatMap[T, U any](f Future[T], fn func(T) Future[U]) Future[U] {
	return Unwrap(Map(f, fn))
}
