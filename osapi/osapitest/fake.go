// Package osapitest provides an in-memory, single-goroutine fake of
// osapi.API so package event's tests can drive exact end-to-end wait/
// dispatch scenarios deterministically — no real file descriptors, no
// real signals, no real wall-clock waits, in favor of a substitutable
// backend injected through the same osapi.API interface the real
// implementation satisfies.
package osapitest

import (
	"fmt"
	"sort"
	"time"

	"github.com/sesh-run/asyncore/osapi"
)

// ErrInterrupted is returned by Pselect when a queued interrupt is
// consumed, standing in for the platform's EINTR. It matches
// errors.Is(err, osapi.ErrInterrupted).
var ErrInterrupted = fmt.Errorf("osapitest: interrupted: %w", osapi.ErrInterrupted)

// PselectCall records one invocation of Pselect, for assertions about how
// many times it was called and with what arguments.
type PselectCall struct {
	FDBound int
	Reads   []int
	Writes  []int
	Errors  []int
	Timeout *time.Duration
}

// FakeAPI is a deterministic, test-only osapi.API. All methods assume a
// single goroutine drives both the fake and the code under test.
type FakeAPI struct {
	now time.Time

	readable map[int]bool
	writable map[int]bool
	errored  map[int]bool

	fdCap int

	queuedErr   error
	interrupted bool

	presetInitial map[int]osapi.Disposition
	current       map[int]osapi.Disposition
	installedFn   map[int]func(int)

	Calls []PselectCall
}

// New returns a FakeAPI with the given starting steady-clock time and fd
// domain cap.
func New(start time.Time, fdCap int) *FakeAPI {
	return &FakeAPI{
		now:      start,
		readable: map[int]bool{},
		writable: map[int]bool{},
		errored:  map[int]bool{},
		fdCap:    fdCap,
	}
}

func (f *FakeAPI) SteadyNow() time.Time { return f.now }
func (f *FakeAPI) SystemNow() time.Time { return f.now }

// Advance moves the fake steady clock forward by d, simulating the passage
// of time during a blocking Pselect call.
func (f *FakeAPI) Advance(d time.Duration) { f.now = f.now.Add(d) }

// SetReadable, SetWritable, and SetError mark (or unmark, with ready=false)
// an fd's condition for the next Pselect call.
func (f *FakeAPI) SetReadable(fd int, ready bool) { f.readable[fd] = ready }
func (f *FakeAPI) SetWritable(fd int, ready bool) { f.writable[fd] = ready }
func (f *FakeAPI) SetError(fd int, ready bool)    { f.errored[fd] = ready }

// QueueInterrupt makes the next Pselect call return ErrInterrupted instead
// of inspecting readiness, simulating a signal delivered mid-wait.
func (f *FakeAPI) QueueInterrupt() { f.interrupted = true }

// QueueError makes the next Pselect call return err, simulating a
// non-interrupt platform error.
func (f *FakeAPI) QueueError(err error) { f.queuedErr = err }

func (f *FakeAPI) NewFdSet() osapi.FdSet { return &fakeFdSet{cap: f.fdCap} }

func (f *FakeAPI) NewSignalSet() osapi.SignalSet { return osapi.NewBitSignalSet() }

func (f *FakeAPI) Sigprocmask(osapi.How, osapi.SignalSet, osapi.SignalSet) error {
	return nil
}

// PresetInitialDisposition makes the first Sigaction(n, ...) call on this
// fake report d as the previously-installed disposition, simulating a
// process that inherited a particular disposition for n before the
// configuration layer ever touched it. Must be called before the first
// Sigaction(n, ...) to take effect.
func (f *FakeAPI) PresetInitialDisposition(n int, d osapi.Disposition) {
	if f.presetInitial == nil {
		f.presetInitial = map[int]osapi.Disposition{}
	}
	f.presetInitial[n] = d
}

// Sigaction records the installed disposition per signal and returns
// whatever was previously installed (or the value given to
// PresetInitialDisposition, on first touch; Default otherwise).
func (f *FakeAPI) Sigaction(n int, disposition osapi.Disposition, fn func(int)) (osapi.Disposition, error) {
	if f.current == nil {
		f.current = map[int]osapi.Disposition{}
	}
	previous, touched := f.current[n]
	if !touched {
		if preset, ok := f.presetInitial[n]; ok {
			previous = preset
		} else {
			previous = osapi.Default
		}
	}
	f.current[n] = disposition

	if f.installedFn == nil {
		f.installedFn = map[int]func(int){}
	}
	if disposition == osapi.Handler {
		f.installedFn[n] = fn
	} else {
		delete(f.installedFn, n)
	}

	return previous, nil
}

// DeliverSignal simulates the kernel invoking the currently-installed
// native handler for signal n, standing in for an actual signal arriving
// while a real pselect call is blocked. Invoking the closure installed by
// Sigaction is the fake's analogue of the native catch function firing;
// it is a no-op if no Handler disposition is currently installed for n.
func (f *FakeAPI) DeliverSignal(n int) {
	if fn, ok := f.installedFn[n]; ok {
		fn(n)
	}
}

// Pselect simulates one pselect(2) call: a queued error or interrupt is
// returned first, without inspecting readiness. Otherwise, if readiness was
// pre-marked for any requested fd, it returns immediately with those fds
// (and only those) surviving in the passed-in sets, per real pselect's
// "destructively filtered in place" semantics. Otherwise it advances the
// fake clock by timeout (if one is given) and reports no readiness; it
// never blocks. The mask argument is ignored.
func (f *FakeAPI) Pselect(fdBound int, reads, writes, errs osapi.FdSet, timeout *time.Duration, mask osapi.SignalSet) (int, error) {
	call := PselectCall{FDBound: fdBound, Timeout: timeout}
	call.Reads = fdsOf(reads)
	call.Writes = fdsOf(writes)
	call.Errors = fdsOf(errs)
	f.Calls = append(f.Calls, call)

	if f.queuedErr != nil {
		err := f.queuedErr
		f.queuedErr = nil
		return 0, err
	}
	if f.interrupted {
		f.interrupted = false
		return 0, ErrInterrupted
	}

	n := 0
	n += filterReady(reads, f.readable)
	n += filterReady(writes, f.writable)
	n += filterReady(errs, f.errored)

	if n > 0 {
		return n, nil
	}

	if timeout != nil {
		f.Advance(*timeout)
	}
	return 0, nil
}

func filterReady(set osapi.FdSet, ready map[int]bool) int {
	if set == nil {
		return 0
	}
	fs := set.(*fakeFdSet)
	n := 0
	for fd := range fs.bits {
		if ready[fd] {
			n++
		} else {
			delete(fs.bits, fd)
		}
	}
	return n
}

func fdsOf(set osapi.FdSet) []int {
	if set == nil {
		return nil
	}
	fs := set.(*fakeFdSet)
	out := make([]int, 0, len(fs.bits))
	for fd := range fs.bits {
		out = append(out, fd)
	}
	sort.Ints(out)
	return out
}

// fakeFdSet is a map-backed FdSet, simpler than a real bitset since fake
// tests never need cache-friendly performance.
type fakeFdSet struct {
	bits map[int]struct{}
	cap  int
}

func (s *fakeFdSet) Add(fd int) error {
	if s.cap > 0 && (fd < 0 || fd >= s.cap) {
		return osapi.ErrFDDomain
	}
	if s.bits == nil {
		s.bits = map[int]struct{}{}
	}
	s.bits[fd] = struct{}{}
	return nil
}

func (s *fakeFdSet) Remove(fd int) { delete(s.bits, fd) }

func (s *fakeFdSet) Test(fd int) bool {
	_, ok := s.bits[fd]
	return ok
}

func (s *fakeFdSet) Clear() { s.bits = nil }

func (s *fakeFdSet) MaxValue() int {
	if s.cap > 0 {
		return s.cap
	}
	return 1 << 20
}
