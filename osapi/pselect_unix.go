//go:build linux || darwin

package osapi

import (
	"time"

	"golang.org/x/sys/unix"
)

// real is the production API backend. It satisfies the osapi.API
// surface using golang.org/x/sys/unix for pselect and fd sets.
//
// Signal dispositions (Sigaction) and the process signal mask
// (Sigprocmask) are NOT implemented via raw unix.Sigaction/
// unix.PthreadSigmask: the Go runtime already installs its own native
// signal handlers for a large set of signals (for stack growth, GC,
// preemption, …), and a library calling unix.Sigaction directly would
// race or clobber that machinery. Instead, real's Sigaction is
// implemented on top of the standard os/signal package, which is the
// runtime-sanctioned way user code observes signals: this mirrors the
// standard signal.Notify-plus-channel idiom for observing signals without
// colliding with the runtime's own handlers. Sigprocmask is a no-op here:
// there is no kernel-level blocking to perform because delivery always
// flows through the os/signal channel regardless of any mask, so there is
// nothing unsafe about it neither applying nor recording what was asked.
//
// Pselect's sigmask argument is therefore also not forwarded to the
// kernel call (always passed as nil, meaning "use the process's current
// mask"); signal wakeups instead reach a blocked Pselect call through the
// wake descriptor in wake_unix.go/wake_linux.go/wake_darwin.go, which
// real.Pselect always folds into its own read set regardless of what the
// caller asked for, and which relaySignal in signal_unix.go writes to
// after running a signal's handler. osapi/osapitest's fake, which the
// end-to-end tests in package event run against, accepts the mask
// argument too but neither applies nor records it.
type real struct{}

// NewReal returns the production API implementation for the current unix
// platform.
func NewReal() API { return &real{} }

func (r *real) SteadyNow() time.Time { return SystemClock{}.SteadyNow() }
func (r *real) SystemNow() time.Time { return SystemClock{}.SystemNow() }

func (r *real) NewFdSet() FdSet { return newUnixFdSet() }

func (r *real) NewSignalSet() SignalSet { return NewBitSignalSet() }

func (r *real) Pselect(fdBound int, reads, writes, errs FdSet, timeout *time.Duration, mask SignalSet) (int, error) {
	// The wake descriptor always rides along in the read set, regardless
	// of what the caller asked for, so a blocked syscall below reliably
	// observes a signal relay's wake-up write.
	wakeFD, _, wakeErr := ensureWake()
	haveWake := wakeErr == nil && wakeFD >= 0
	if haveWake {
		if reads == nil {
			reads = newUnixFdSet()
		}
		if err := reads.Add(wakeFD); err == nil && wakeFD+1 > fdBound {
			fdBound = wakeFD + 1
		}
	}

	var rset, wset, eset *unix.FdSet
	if reads != nil {
		rset = &reads.(*unixFdSet).raw
	}
	if writes != nil {
		wset = &writes.(*unixFdSet).raw
	}
	if errs != nil {
		eset = &errs.(*unixFdSet).raw
	}

	var ts *unix.Timespec
	if timeout != nil {
		d := *timeout
		if d < 0 {
			d = 0
		}
		spec := unix.NsecToTimespec(d.Nanoseconds())
		ts = &spec
	}

	n, err := unix.Pselect(fdBound, rset, wset, eset, ts, nil)
	if haveWake && reads.Test(wakeFD) {
		drainWake()
		n--
	}
	if err == unix.EINTR {
		return n, ErrInterrupted
	}
	return n, err
}
