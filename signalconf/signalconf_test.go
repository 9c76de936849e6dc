package signalconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesh-run/asyncore/osapi"
	"github.com/sesh-run/asyncore/osapi/osapitest"
)

func TestAddHandler_Reconciles(t *testing.T) {
	fake := osapitest.New(time.Unix(0, 0), 0)
	cfg := New(fake)

	canceler, err := cfg.AddHandler(3, func(int) {})
	require.NoError(t, err)
	require.NotNil(t, canceler)
	assert.Equal(t, osapi.Handler, cfg.CurrentDisposition(3))

	canceler()
	assert.Equal(t, osapi.Default, cfg.CurrentDisposition(3))
	canceler() // idempotent
	assert.Equal(t, osapi.Default, cfg.CurrentDisposition(3))
}

func TestRunPendingHandlers_InsertionOrder(t *testing.T) {
	fake := osapitest.New(time.Unix(0, 0), 0)
	cfg := New(fake)

	var order []int
	_, err := cfg.AddHandler(3, func(int) { order = append(order, 1) })
	require.NoError(t, err)
	_, err = cfg.AddHandler(3, func(int) { order = append(order, 2) })
	require.NoError(t, err)

	// Simulate k=2 native arrivals.
	cfg.Deliver(3)
	cfg.Deliver(3)
	assert.Equal(t, 2, cfg.PendingCount(3))

	cfg.RunPendingHandlers()

	assert.Equal(t, []int{1, 2, 1, 2}, order)
	assert.Equal(t, 0, cfg.PendingCount(3))
}

func TestSetTrap_FailIfIgnored(t *testing.T) {
	fake := osapitest.New(time.Unix(0, 0), 0)
	cfg := New(fake)

	// Pre-seed the fake so the first Sigaction probe reports Ignore as the
	// prior disposition.
	fake.PresetInitialDisposition(5, osapi.Ignore)

	err := cfg.SetTrap(5, TrapHandler, func(int) {}, FailIfIgnored)
	assert.ErrorIs(t, err, ErrInitiallyIgnored)
	var typed *InitiallyIgnoredError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, 5, typed.Signal)
}

func TestSetTrap_ForceOverridesIgnored(t *testing.T) {
	fake := osapitest.New(time.Unix(0, 0), 0)
	cfg := New(fake)
	fake.PresetInitialDisposition(5, osapi.Ignore)

	err := cfg.SetTrap(5, TrapHandler, func(int) {}, Force)
	assert.NoError(t, err)
}

func TestMaskForWait_NilUntouched(t *testing.T) {
	fake := osapitest.New(time.Unix(0, 0), 0)
	cfg := New(fake)
	assert.Nil(t, cfg.MaskForWait())

	_, err := cfg.AddHandler(3, func(int) {})
	require.NoError(t, err)
	assert.NotNil(t, cfg.MaskForWait())
}

func TestInitialDisposition_CapturedOnce(t *testing.T) {
	fake := osapitest.New(time.Unix(0, 0), 0)
	cfg := New(fake)
	fake.PresetInitialDisposition(9, osapi.Default)

	d, err := cfg.InitialDisposition(9)
	require.NoError(t, err)
	assert.Equal(t, osapi.Default, d)

	// A second touch must not re-query; changing the preset should have no
	// further effect.
	fake.PresetInitialDisposition(9, osapi.Ignore)
	d2, err := cfg.InitialDisposition(9)
	require.NoError(t, err)
	assert.Equal(t, osapi.Default, d2)
}
