package outcome

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Get(t *testing.T) {
	o := Value(5)
	assert.True(t, o.HasValue())
	v, err := o.Get()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.NoError(t, o.Err())
	assert.Equal(t, 5, o.Must())
}

func TestFailure_Get(t *testing.T) {
	boom := errors.New("boom")
	o := Failure[int](boom)
	assert.False(t, o.HasValue())
	_, err := o.Get()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, o.Err(), boom)
}

func TestFailure_NilPanics(t *testing.T) {
	assert.Panics(t, func() { Failure[int](nil) })
}

func TestMust_PanicsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	o := Failure[int](boom)
	assert.PanicsWithValue(t, boom, func() { o.Must() })
}

func TestTry_SuccessAndFailure(t *testing.T) {
	ok := Try(func() (int, error) { return 9, nil })
	v, err := ok.Get()
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	boom := errors.New("boom")
	failed := Try(func() (int, error) { return 0, boom })
	_, err = failed.Get()
	assert.ErrorIs(t, err, boom)
}

func TestTryPanic_RecoversAndUnwraps(t *testing.T) {
	boom := errors.New("boom")
	out := TryPanic(func() int { panic(boom) })
	assert.False(t, out.HasValue())
	assert.ErrorIs(t, out.Err(), boom)
}

func TestTryPanic_NonErrorValue(t *testing.T) {
	out := TryPanic(func() int { panic("not an error") })
	assert.False(t, out.HasValue())
	require.Error(t, out.Err())
	assert.Contains(t, out.Err().Error(), "not an error")
}
