// Package event implements the awaiter/proactor: it accepts trigger
// sets, multiplexes timeouts, file-descriptor readiness, POSIX signals,
// and user-supplied futures into a single pselect call per iteration, and
// dispatches the satisfied trigger to each pending event's promise.
//
// One driving loop blocks in a single syscall per iteration and fans the
// result out to whichever registered waiters are satisfied, rather than
// polling each fd's readiness separately.
package event

import (
	"fmt"
	"time"

	"github.com/sesh-run/asyncore/future"
)

// Kind identifies which of the six trigger cases a Trigger represents.
type Kind int

const (
	KindTimeout Kind = iota
	KindReadableFD
	KindWritableFD
	KindErrorFD
	KindSignal
	KindUserProvided
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindReadableFD:
		return "ReadableFD"
	case KindWritableFD:
		return "WritableFD"
	case KindErrorFD:
		return "ErrorFD"
	case KindSignal:
		return "Signal"
	case KindUserProvided:
		return "UserProvided"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Trigger is a closed sum type representing a single wake condition. Use the
// Timeout/ReadableFD/WritableFD/ErrorFD/Signal/UserProvided constructors
// to build one, and Kind/Duration/FD/SignalNumber/Value to inspect a
// delivered one.
type Trigger struct {
	kind Kind

	duration time.Duration
	fd       int
	signal   int

	userFuture future.Future[any]
	userValue  any
}

// Timeout fires after d has elapsed from the moment Expect was called. A
// negative d is treated as zero.
func Timeout(d time.Duration) Trigger { return Trigger{kind: KindTimeout, duration: d} }

// ReadableFD fires when fd becomes readable.
func ReadableFD(fd int) Trigger { return Trigger{kind: KindReadableFD, fd: fd} }

// WritableFD fires when fd becomes writable.
func WritableFD(fd int) Trigger { return Trigger{kind: KindWritableFD, fd: fd} }

// ErrorFD fires when fd reports an error condition.
func ErrorFD(fd int) Trigger { return Trigger{kind: KindErrorFD, fd: fd} }

// Signal fires when signal number n is caught.
func Signal(n int) Trigger { return Trigger{kind: KindSignal, signal: n} }

// UserProvided fires when f resolves; the delivered Trigger carries f's
// resolved value (discarding any error, which instead fails the pending
// event — see Awaiter.dispatchUserProvided).
func UserProvided(f future.Future[any]) Trigger {
	return Trigger{kind: KindUserProvided, userFuture: f}
}

// Kind reports which of the six trigger cases this is.
func (t Trigger) Kind() Kind { return t.kind }

// Duration returns the Timeout duration; only meaningful when Kind() ==
// KindTimeout.
func (t Trigger) Duration() time.Duration { return t.duration }

// FD returns the file descriptor; only meaningful when Kind() is one of
// KindReadableFD, KindWritableFD, KindErrorFD.
func (t Trigger) FD() int { return t.fd }

// SignalNumber returns the signal number; only meaningful when Kind() ==
// KindSignal.
func (t Trigger) SignalNumber() int { return t.signal }

// Value returns the resolved opaque value of a delivered UserProvided
// trigger; only meaningful on a Trigger returned by the awaiter (not on
// one passed to Expect).
func (t Trigger) Value() any { return t.userValue }

func (t Trigger) String() string {
	switch t.kind {
	case KindTimeout:
		return fmt.Sprintf("Timeout(%s)", t.duration)
	case KindReadableFD:
		return fmt.Sprintf("ReadableFD(%d)", t.fd)
	case KindWritableFD:
		return fmt.Sprintf("WritableFD(%d)", t.fd)
	case KindErrorFD:
		return fmt.Sprintf("ErrorFD(%d)", t.fd)
	case KindSignal:
		return fmt.Sprintf("Signal(%d)", t.signal)
	case KindUserProvided:
		return "UserProvided"
	default:
		return t.kind.String()
	}
}
