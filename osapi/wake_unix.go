//go:build linux || darwin

package osapi

import (
	"sync"

	"golang.org/x/sys/unix"
)

// wakeFDs lazily creates the process-wide self-pipe (or Linux eventfd)
// used to interrupt a blocked Pselect call when a signal relay goroutine
// fires: os/signal delivery happens on whatever OS thread the kernel
// picks, which is not necessarily the one blocked in the pselect syscall,
// so a real signal does not reliably cause that syscall to return EINTR.
// Writing a byte to this descriptor, which real.Pselect always includes
// in its read set, does. The self-pipe is a single process-wide pair
// rather than a per-instance field, since there is exactly one
// awaiter-facing signal configuration per process.
var (
	wakeOnce    sync.Once
	wakeReadFD  = -1
	wakeWriteFD = -1
	wakeInitErr error
)

func ensureWake() (int, int, error) {
	wakeOnce.Do(func() {
		r, w, err := createWakeFD()
		if err != nil {
			wakeInitErr = err
			return
		}
		wakeReadFD, wakeWriteFD = r, w
	})
	return wakeReadFD, wakeWriteFD, wakeInitErr
}

// wakePselect writes a single byte to the wake descriptor, waking any
// Pselect call currently blocked. Best-effort: a full pipe/eventfd means
// a wake is already pending, which is just as good.
func wakePselect() {
	r, w, err := ensureWake()
	if err != nil || r < 0 {
		return
	}
	var buf [8]byte
	buf[0] = 1
	_, _ = unix.Write(w, buf[:])
}

// drainWake reads every pending wake notification so the descriptor is
// not left readable after a Pselect call consumes it.
func drainWake() {
	r, _, err := ensureWake()
	if err != nil || r < 0 {
		return
	}
	var buf [8]byte
	for {
		_, err := unix.Read(r, buf[:])
		if err != nil {
			return
		}
	}
}
