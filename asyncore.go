// Package asyncore is the single import most callers need: it re-exports
// the pieces of outcome/delay/future/event/osapi/signalconf an end user
// touches to wait on a mix of timeouts, fd readiness, signals, and other
// futures, so callers don't need to reach into the poller or promise
// subpackages directly for everyday use.
package asyncore

import (
	"github.com/sesh-run/asyncore/event"
	"github.com/sesh-run/asyncore/future"
	"github.com/sesh-run/asyncore/osapi"
	"github.com/sesh-run/asyncore/outcome"
	"github.com/sesh-run/asyncore/signalconf"
)

// Outcome, Promise, and Future are the result/producer/consumer types
// every asynchronous operation in this module is built from.
type (
	Outcome[T any] = outcome.Outcome[T]
	Promise[T any] = future.Promise[T]
	Future[T any]  = future.Future[T]
)

// PromiseFuture returns a connected Promise/Future pair: resolving the
// Promise resolves the Future with the same Outcome.
func PromiseFuture[T any]() (Promise[T], Future[T]) { return future.PromiseFuture[T]() }

// FutureOf returns a Future already resolved with v.
func FutureOf[T any](v T) Future[T] { return future.FutureOf[T](v) }

// FailedFuture returns a Future already resolved with err.
func FailedFuture[T any](err error) Future[T] { return future.FailedFuture[T](err) }

// FutureFrom runs fn synchronously and returns a Future resolved with its
// result. See package future for the full combinator set (Map, Recover,
// FlatMap, Wrap, Unwrap, ThenWithConversion) — those are generic free
// functions rather than methods and aren't re-exported here; callers that
// need them import package future directly.
func FutureFrom[T any](fn func() (T, error)) Future[T] { return future.FutureFrom[T](fn) }

// Trigger, Awaiter, and AwaiterOption are the wait-set vocabulary: Expect a
// set of Triggers on an Awaiter to get back a Future that resolves with
// whichever one fires first.
type (
	Trigger       = event.Trigger
	Awaiter       = event.Awaiter
	AwaiterOption = event.AwaiterOption
)

// Trigger constructors.
var (
	Timeout      = event.Timeout
	ReadableFD   = event.ReadableFD
	WritableFD   = event.WritableFD
	ErrorFD      = event.ErrorFD
	Signal       = event.Signal
	UserProvided = event.UserProvided
)

// NewAwaiter constructs an Awaiter driven by a production unix osapi.API
// and the process-wide signal configuration, the combination most
// programs want. Programs that need an isolated signalconf.Config (tests,
// multiple independent awaiters) should call event.NewAwaiter directly.
func NewAwaiter(opts ...AwaiterOption) *Awaiter {
	api := osapi.NewReal()
	return event.NewAwaiter(api, signalconf.Shared(api), opts...)
}

// WithIterationErrorSink and WithLogger configure an Awaiter. See package
// event for the full option set.
var (
	WithIterationErrorSink = event.WithIterationErrorSink
	WithLogger             = event.WithLogger
)

// Logger is the structured-logging facade honored by every Awaiter built
// through this package. SetLogger installs the process-wide default.
type Logger = event.Logger

var SetLogger = event.SetLogger
