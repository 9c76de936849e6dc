package osapi

import "time"

// SystemClock is the real Clock backed by Go's monotonic/wall clock.
type SystemClock struct{}

// SteadyNow returns a monotonic reading (time.Now carries a monotonic
// component on every supported platform).
func (SystemClock) SteadyNow() time.Time { return time.Now() }

// SystemNow returns a wall-clock reading with the monotonic component
// stripped, matching the source's distinction between a steady clock used
// for deadline arithmetic and a system clock used for presentation.
func (SystemClock) SystemNow() time.Time { return time.Now().Round(0) }
