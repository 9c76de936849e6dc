package osapitest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesh-run/asyncore/osapi"
)

func TestFakeAPI_TimeoutZeroEmptySets(t *testing.T) {
	f := New(time.Unix(0, 0), 0)
	zero := time.Duration(0)
	n, err := f.Pselect(0, nil, nil, nil, &zero, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.Len(t, f.Calls, 1)
	assert.Equal(t, &zero, f.Calls[0].Timeout)
}

func TestFakeAPI_ReadableFD(t *testing.T) {
	f := New(time.Unix(0, 0), 0)
	f.SetReadable(3, true)

	reads := f.NewFdSet()
	require.NoError(t, reads.Add(3))
	require.NoError(t, reads.Add(4))

	d := time.Second
	n, err := f.Pselect(5, reads, nil, nil, &d, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, reads.Test(3))
	assert.False(t, reads.Test(4))
}

func TestFakeAPI_TimeoutAdvancesClock(t *testing.T) {
	start := time.Unix(0, 0)
	f := New(start, 0)
	d := 50 * time.Millisecond
	n, err := f.Pselect(0, nil, nil, nil, &d, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, start.Add(d), f.SteadyNow())
}

func TestFakeAPI_Interrupted(t *testing.T) {
	f := New(time.Unix(0, 0), 0)
	f.QueueInterrupt()
	d := time.Second
	_, err := f.Pselect(0, nil, nil, nil, &d, nil)
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestFakeAPI_FDOutOfDomain(t *testing.T) {
	f := New(time.Unix(0, 0), 8)
	reads := f.NewFdSet()
	err := reads.Add(9)
	assert.ErrorIs(t, err, osapi.ErrFDDomain)
}

func TestFakeAPI_QueuedErrorTakesPriority(t *testing.T) {
	f := New(time.Unix(0, 0), 0)
	f.SetReadable(1, true)
	boom := assert.AnError
	f.QueueError(boom)

	reads := f.NewFdSet()
	require.NoError(t, reads.Add(1))

	_, err := f.Pselect(2, reads, nil, nil, nil, nil)
	assert.ErrorIs(t, err, boom)
}
