// Package delay implements the single-producer/single-consumer rendezvous
// cell shared between a Promise and a Future: it pairs one result with
// one continuation and fires the continuation exactly when both arrive.
//
// Every operation in this package assumes single-threaded, cooperative
// access — the same goroutine that calls Expect/AwaitEvents in package
// event is the only goroutine that ever touches a Cell. There is
// deliberately no mutex here: access is always single-task.
package delay

import "github.com/sesh-run/asyncore/outcome"

// Cell is the heap-allocated rendezvous slot. The result slot and the
// continuation slot are each written at most once; neither is cleared
// before the Cell itself is destroyed, so a callback observes a result
// that remains valid for as long as the callback runs.
type Cell[T any] struct {
	result   *outcome.Outcome[T]
	callback func(outcome.Outcome[T])
}

// New creates an empty Cell.
func New[T any]() *Cell[T] {
	return &Cell[T]{}
}

// SetResultFrom evaluates f, catching its error into the result slot, and
// fires (via the package trampoline, see [Schedule]) if the continuation
// slot is already present. Undefined behavior (panics) if the result slot
// is already set.
func (c *Cell[T]) SetResultFrom(f func() (T, error)) {
	if c.result != nil {
		panic("delay: result already set")
	}
	o := outcome.Try(f)
	c.result = &o
	c.fireIfReady()
}

// SetResult stores a pre-computed Outcome as the result slot and fires if
// ready. Panics if the result slot is already set.
func (c *Cell[T]) SetResult(o outcome.Outcome[T]) {
	if c.result != nil {
		panic("delay: result already set")
	}
	c.result = &o
	c.fireIfReady()
}

// SetCallback stores the continuation and fires if the result slot is
// already present. Panics if a callback has already been set.
func (c *Cell[T]) SetCallback(cb func(outcome.Outcome[T])) {
	if cb == nil {
		panic("delay: nil callback")
	}
	if c.callback != nil {
		panic("delay: callback already set")
	}
	c.callback = cb
	c.fireIfReady()
}

// fireIfReady schedules the callback invocation once both slots are
// populated. "Fire" never calls the callback directly from here: it hands
// the invocation to the package-level trampoline (Schedule), so that a
// callback which itself completes another Cell synchronously cannot grow
// the goroutine's call stack, no matter how deep the continuation graph —
// an explicit queue of pending invocations in place of direct recursion,
// the same trick used to flatten any deeply chained continuation style.
func (c *Cell[T]) fireIfReady() {
	if c.result == nil || c.callback == nil {
		return
	}
	result := *c.result
	cb := c.callback
	Schedule(func() { cb(result) })
}

// trampoline is the single run-queue shared by every Cell on the one
// goroutine that drives this module's futures. It is package-level rather
// than per-Cell because the whole point of trampolining is that firing one
// cell's callback may synchronously fire another cell nested arbitrarily
// deep in the continuation graph (a Forward chain, a flat-mapped Future,
// …) — all of those fires share one physical call stack and must drain
// through the same queue.
var trampoline struct {
	queue   []func()
	running bool
}

// Schedule enqueues f for execution by the trampoline. If no drain is
// currently in progress, Schedule itself drains the queue (running f and
// anything f enqueues, in FIFO order) before returning; if a drain is
// already in progress further up the call stack, Schedule merely enqueues
// and returns immediately, trusting the outer drain to reach f.
func Schedule(f func()) {
	trampoline.queue = append(trampoline.queue, f)
	if trampoline.running {
		return
	}
	trampoline.running = true
	defer func() { trampoline.running = false }()
	for len(trampoline.queue) > 0 {
		next := trampoline.queue[0]
		trampoline.queue = trampoline.queue[1:]
		next()
	}
}
