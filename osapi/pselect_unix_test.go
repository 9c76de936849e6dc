//go:build linux || darwin

package osapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReal_Pselect_WakesOnSignalRelay(t *testing.T) {
	r := NewReal()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// No timeout: this call only returns if something wakes it.
		n, err := r.Pselect(0, nil, nil, nil, nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, n)
	}()

	select {
	case <-done:
		t.Fatal("Pselect returned before any wake-up was sent")
	case <-time.After(50 * time.Millisecond):
	}

	wakePselect()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pselect did not wake up after wakePselect")
	}
}
