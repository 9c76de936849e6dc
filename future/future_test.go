package future

import (
	"errors"
	"testing"

	"github.com/sesh-run/asyncore/outcome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThen_ImmediateFire(t *testing.T) {
	// Result filled before Then is called invokes the callback
	// synchronously on the installing call.
	p, f := PromiseFuture[int]()
	p.SetResult(9)

	var got int
	f.Then(func(o outcome.Outcome[int]) {
		got = o.Must()
	})
	assert.Equal(t, 9, got)
}

func TestThen_LateFire(t *testing.T) {
	p, f := PromiseFuture[int]()
	var got int
	var fired bool
	f.Then(func(o outcome.Outcome[int]) {
		fired = true
		got = o.Must()
	})
	assert.False(t, fired)
	p.SetResult(3)
	assert.True(t, fired)
	assert.Equal(t, 3, got)
}

func TestMap_ValueTransparency(t *testing.T) {
	f := FutureOf(5)
	mapped := Map(f, func(v int) string {
		if v == 5 {
			return "five"
		}
		return "other"
	})
	var got string
	mapped.Then(func(o outcome.Outcome[string]) { got = o.Must() })
	assert.Equal(t, "five", got)
}

func TestMap_FailurePassthrough(t *testing.T) {
	wantErr := errors.New("nope")
	f := FailedFuture[int](wantErr)
	called := false
	mapped := Map(f, func(v int) int {
		called = true
		return v * 2
	})
	var gotErr error
	mapped.Then(func(o outcome.Outcome[int]) {
		_, gotErr = o.Get()
	})
	assert.False(t, called)
	assert.ErrorIs(t, gotErr, wantErr)
}

func TestMap_FnPanicBecomesFailure(t *testing.T) {
	f := FutureOf(5)
	mapped := Map(f, func(int) int { panic("boom") })

	var gotErr error
	mapped.Then(func(o outcome.Outcome[int]) { _, gotErr = o.Get() })
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "boom")
}

func TestRecover_FnPanicBecomesFailure(t *testing.T) {
	f := FailedFuture[int](errors.New("original"))
	recovered := Recover(f, func(error) int { panic("recover blew up") })

	var gotErr error
	recovered.Then(func(o outcome.Outcome[int]) { _, gotErr = o.Get() })
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "recover blew up")
}

func TestThenWithConversion_ConvPanicBecomesFailure(t *testing.T) {
	f := FutureOf(1)
	converted := ThenWithConversion(f, func(outcome.Outcome[int]) outcome.Outcome[string] {
		panic(errors.New("conv blew up"))
	})

	var gotErr error
	converted.Then(func(o outcome.Outcome[string]) { _, gotErr = o.Get() })
	require.Error(t, gotErr)
	assert.ErrorContains(t, gotErr, "conv blew up")
}

func TestRecover_Symmetry(t *testing.T) {
	okFuture := FutureOf(7)
	recovered := Recover(okFuture, func(error) int { return -1 })
	var got int
	recovered.Then(func(o outcome.Outcome[int]) { got = o.Must() })
	assert.Equal(t, 7, got)

	failFuture := FailedFuture[int](errors.New("x"))
	recovered2 := Recover(failFuture, func(e error) int { return 99 })
	var got2 int
	recovered2.Then(func(o outcome.Outcome[int]) { got2 = o.Must() })
	assert.Equal(t, 99, got2)
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	// FutureOf(x).Wrap().Unwrap() observationally equals FutureOf(x).
	f := FutureOf(42)
	wrapped := Wrap(f)
	unwrapped := Unwrap(wrapped)

	var got int
	unwrapped.Then(func(o outcome.Outcome[int]) { got = o.Must() })
	assert.Equal(t, 42, got)
}

func TestWrap_InnerFailurePropagatesToOuter(t *testing.T) {
	wantErr := errors.New("inner failed")
	f := FailedFuture[int](wantErr)
	wrapped := Wrap(f)

	var gotErr error
	var outerSucceeded bool
	wrapped.Then(func(o outcome.Outcome[Future[int]]) {
		if _, err := o.Get(); err != nil {
			gotErr = err
			return
		}
		outerSucceeded = true
	})
	assert.ErrorIs(t, gotErr, wantErr)
	assert.False(t, outerSucceeded)
}

func TestFlatMap_Success(t *testing.T) {
	f := FutureOf(2)
	chained := FlatMap(f, func(v int) Future[int] {
		return FutureOf(v * 10)
	})
	var got int
	chained.Then(func(o outcome.Outcome[int]) { got = o.Must() })
	assert.Equal(t, 20, got)
}

func TestFlatMap_FailurePassthrough(t *testing.T) {
	wantErr := errors.New("flat fail")
	f := FailedFuture[int](wantErr)
	called := false
	chained := FlatMap(f, func(v int) Future[int] {
		called = true
		return FutureOf(v)
	})
	var gotErr error
	chained.Then(func(o outcome.Outcome[int]) { _, gotErr = o.Get() })
	assert.False(t, called)
	assert.ErrorIs(t, gotErr, wantErr)
}

func TestForward(t *testing.T) {
	srcP, srcF := PromiseFuture[int]()
	dstP, dstF := PromiseFuture[int]()

	srcF.Forward(dstP)
	var got int
	dstF.Then(func(o outcome.Outcome[int]) { got = o.Must() })

	srcP.SetResult(11)
	assert.Equal(t, 11, got)
}

func TestPromise_TerminalTwicePanics(t *testing.T) {
	p, _ := PromiseFuture[int]()
	p.SetResult(1)
	assert.Panics(t, func() { p.SetResult(2) })
}

func TestFuture_TerminalTwicePanics(t *testing.T) {
	_, f := PromiseFuture[int]()
	f.Then(func(outcome.Outcome[int]) {})
	assert.Panics(t, func() { f.Then(func(outcome.Outcome[int]) {}) })
}

func TestFutureFrom_CatchesError(t *testing.T) {
	wantErr := errors.New("ctor failed")
	f := FutureFrom(func() (int, error) { return 0, wantErr })
	var gotErr error
	f.Then(func(o outcome.Outcome[int]) { _, gotErr = o.Get() })
	require.ErrorIs(t, gotErr, wantErr)
}

// TestDeepChainDoesNotRecurse exercises the trampoline through many
// sequential FlatMap links (mirrors delay's own recursion test, but through
// the public Future API).
func TestDeepChainDoesNotRecurse(t *testing.T) {
	const depth = 5000
	f := FutureOf(0)
	for i := 0; i < depth; i++ {
		f = FlatMap(f, func(v int) Future[int] {
			return FutureOf(v + 1)
		})
	}
	var got int
	f.Then(func(o outcome.Outcome[int]) { got = o.Must() })
	assert.Equal(t, depth, got)
}
