package event

import (
	"errors"
	"time"

	"github.com/sesh-run/asyncore/future"
	"github.com/sesh-run/asyncore/osapi"
	"github.com/sesh-run/asyncore/outcome"
	"github.com/sesh-run/asyncore/signalconf"
)

// pendingEvent is an unordered set of triggers plus the Promise
// waiting for one of them to fire.
type pendingEvent struct {
	triggers []Trigger
	promise  future.Promise[Trigger]

	seq int // insertion order, for dispatch tie-breaks

	hasDeadline bool
	deadline    time.Time

	attached        bool // whether signal/user-future side effects have been wired
	registeredSigs  []int
	resolvedUserIdx int // index into triggers of the first resolved UserProvided trigger, or -1
	userResolved    bool
	userOutcome     outcome.Outcome[any]

	done bool
}

// Awaiter is the proactor: it owns pending events and the pselect
// wait primitive. It does not own the OS API or the signal configuration
// it is given — both are injected and shared with the rest of the process.
type Awaiter struct {
	api     osapi.API
	sigConf *signalconf.Config

	events []*pendingEvent
	seq    int

	signalArrivals map[int]int
	signalRegs     map[int]*signalReg

	closed bool

	opts *awaiterOptions
}

type signalReg struct {
	canceler signalconf.Canceler
	count    int
}

// NewAwaiter constructs an Awaiter driven by api and sharing sigConf with
// the rest of the process (signal configuration is a process-wide
// singleton).
func NewAwaiter(api osapi.API, sigConf *signalconf.Config, opts ...AwaiterOption) *Awaiter {
	return &Awaiter{
		api:            api,
		sigConf:        sigConf,
		signalArrivals: map[int]int{},
		signalRegs:     map[int]*signalReg{},
		opts:           resolveAwaiterOptions(opts),
	}
}

// Expect registers a set of wake conditions and returns a future that
// resolves with whichever trigger fires first. An empty set returns a
// future that never completes (by design, not an error).
// Otherwise a pending event is created, its deadline (if any) derived
// from the minimum Timeout trigger, and the future returned.
func (a *Awaiter) Expect(triggers ...Trigger) future.Future[Trigger] {
	if a.closed {
		return future.FailedFuture[Trigger](ErrAwaiterClosed)
	}

	if len(triggers) == 0 {
		_, f := future.PromiseFuture[Trigger]()
		return f
	}

	p, f := future.PromiseFuture[Trigger]()
	pe := &pendingEvent{
		triggers:        append([]Trigger(nil), triggers...),
		promise:         p,
		seq:             a.seq,
		resolvedUserIdx: -1,
	}
	a.seq++

	now := a.api.SteadyNow()
	for _, t := range pe.triggers {
		if t.kind != KindTimeout {
			continue
		}
		d := t.duration
		if d < 0 {
			d = 0
		}
		limit := now.Add(d)
		if !pe.hasDeadline || limit.Before(pe.deadline) {
			pe.deadline = limit
			pe.hasDeadline = true
		}
	}

	a.events = append(a.events, pe)
	return f
}

// AwaitEvents runs the wait/dispatch loop until every pending event has
// been fulfilled. Reentrant calls from inside a callback execute
// synchronously and return once this Awaiter's pending-event set is empty,
// including events registered after the reentrant call began.
func (a *Awaiter) AwaitEvents() error {
	// a.events belongs to this Awaiter and is shared by every nested call
	// on it, so a reentrant call drains the same pending set the outer
	// call is looping over: once it is empty, every level of the call
	// stack observes that and returns.
	for len(a.events) > 0 {
		a.runOneIteration()
	}
	return nil
}

// runOneIteration executes one pass of fire-expired / build-wait-set /
// block / dispatch. Returns true if it consumed at least one iteration's
// worth of work (so the caller should loop again immediately).
func (a *Awaiter) runOneIteration() bool {
	// Step 1: fire any already-expired deadlines.
	if a.fireExpired() {
		return true
	}
	if len(a.events) == 0 {
		return false
	}

	// Step 2: build the wait set.
	reads := a.api.NewFdSet()
	writes := a.api.NewFdSet()
	errs := a.api.NewFdSet()
	fdBound := 0

	var nextDeadline *time.Time
	var domainFailed *pendingEvent
	var domainErr error

	for _, pe := range a.events {
		if pe.hasDeadline {
			d := pe.deadline
			if nextDeadline == nil || d.Before(*nextDeadline) {
				nextDeadline = &d
			}
		}

		a.attach(pe)

		for _, t := range pe.triggers {
			switch t.kind {
			case KindReadableFD:
				if err := reads.Add(t.fd); err != nil {
					domainFailed, domainErr = pe, &DomainError{FD: t.fd, Cause: err}
				} else if t.fd+1 > fdBound {
					fdBound = t.fd + 1
				}
			case KindWritableFD:
				if err := writes.Add(t.fd); err != nil {
					domainFailed, domainErr = pe, &DomainError{FD: t.fd, Cause: err}
				} else if t.fd+1 > fdBound {
					fdBound = t.fd + 1
				}
			case KindErrorFD:
				if err := errs.Add(t.fd); err != nil {
					domainFailed, domainErr = pe, &DomainError{FD: t.fd, Cause: err}
				} else if t.fd+1 > fdBound {
					fdBound = t.fd + 1
				}
			}
		}
		if domainFailed != nil {
			break
		}
	}

	if domainFailed != nil {
		// Deliver the domain error without ever calling pselect.
		a.opts.logger.Warn("event: fd out of domain, failing event", "error", domainErr)
		a.fulfil(domainFailed, outcome.Failure[Trigger](domainErr))
		return true
	}

	var timeout *time.Duration
	if nextDeadline != nil {
		now := a.api.SteadyNow()
		d := nextDeadline.Sub(now)
		if d < 0 {
			d = 0
		}
		timeout = &d
	}

	mask := a.sigConf.MaskForWait()

	// Step 3: block.
	n, err := a.api.Pselect(fdBound, reads, writes, errs, timeout, mask)
	trustFDs := true
	if err != nil {
		if !isInterrupted(err) {
			a.opts.logger.Warn("event: pselect failed", "error", err)
			if a.opts.onIterationError != nil {
				a.opts.onIterationError(&PlatformError{Op: "pselect", Cause: err})
			}
			return true
		}
		// Interrupted is a legitimate wake (signalled by the handler
		// layer): dispatch still proceeds below, but the fd sets cannot be
		// trusted, so fd dispatch (4b) is skipped this iteration.
		a.opts.logger.Debug("event: pselect interrupted, retrying")
		trustFDs = false
		n = 0
	}

	// Drain signal handlers, then dispatch any accumulated arrivals to the
	// earliest matching event, in insertion order.
	a.sigConf.RunPendingHandlers()
	a.dispatchSignals()

	if trustFDs && n > 0 {
		a.dispatchFDs(reads, writes, errs)
	}

	a.dispatchUserProvided()

	// Any event whose time limit has now passed (including one whose
	// deadline was exactly "now" and so was deliberately carried through a
	// single zero-timeout pselect call rather than short-circuited earlier
	// — see fireExpired's doc comment) fires here.
	a.dispatchExpiredDeadlines()

	return true
}

// fireExpired fulfils pending events whose deadline is already STRICTLY
// in the past, before a wait set is even built. A deadline exactly equal
// to "now" is deliberately left for dispatchExpiredDeadlines instead, so
// that a bare Expect(Timeout(0)) still goes through one pselect call with
// a 0ns timeout, rather than resolving without ever touching pselect.
func (a *Awaiter) fireExpired() bool {
	now := a.api.SteadyNow()
	fired := false
	for _, pe := range a.snapshot() {
		if pe.done || !pe.hasDeadline {
			continue
		}
		if !pe.deadline.Before(now) {
			continue
		}
		a.fulfil(pe, outcome.Value(pe.timeoutTrigger()))
		fired = true
	}
	return fired
}

// dispatchExpiredDeadlines runs after a pselect call returns: any event
// whose deadline has now passed (strictly before, or exactly at, the
// current steady-clock reading) is fulfilled with its Timeout trigger.
func (a *Awaiter) dispatchExpiredDeadlines() {
	now := a.api.SteadyNow()
	for _, pe := range a.snapshot() {
		if pe.done || !pe.hasDeadline {
			continue
		}
		if pe.deadline.After(now) {
			continue
		}
		a.fulfil(pe, outcome.Value(pe.timeoutTrigger()))
	}
}

// timeoutTrigger returns the Timeout trigger that produced this event's
// deadline (the minimum one, by construction in Expect).
func (pe *pendingEvent) timeoutTrigger() Trigger {
	var best Trigger
	found := false
	for _, t := range pe.triggers {
		if t.kind == KindTimeout && (!found || t.duration < best.duration) {
			best, found = t, true
		}
	}
	if !found {
		return Timeout(0)
	}
	return best
}

// attach wires the one-time side effects required for a pending event's
// signal and user-provided triggers. Idempotent per event.
func (a *Awaiter) attach(pe *pendingEvent) {
	if pe.attached {
		return
	}
	pe.attached = true

	for _, t := range pe.triggers {
		if t.kind == KindSignal {
			a.acquireSignal(pe, t.signal)
		}
	}

	for i, t := range pe.triggers {
		if t.kind != KindUserProvided {
			continue
		}
		idx := i
		uf := t.userFuture
		uf.Then(func(o outcome.Outcome[any]) {
			if pe.userResolved {
				return
			}
			pe.userResolved = true
			pe.resolvedUserIdx = idx
			pe.userOutcome = o
		})
	}
}

// acquireSignal ensures a handler is installed with the shared
// signal-handler configuration for signal n, scoped to this event: the
// handler is released (and the native disposition reconciled away) when
// the event completes.
func (a *Awaiter) acquireSignal(pe *pendingEvent, n int) {
	reg, ok := a.signalRegs[n]
	if !ok {
		reg = &signalReg{}
		canceler, err := a.sigConf.AddHandler(n, func(caught int) {
			a.signalArrivals[caught]++
		})
		if err != nil {
			// Surface as an iteration-level failure; the event itself will
			// simply never see this signal.
			if a.opts.onIterationError != nil {
				a.opts.onIterationError(&PlatformError{Op: "sigaction", Cause: err})
			}
			return
		}
		reg.canceler = canceler
		a.signalRegs[n] = reg
	}
	reg.count++
	pe.registeredSigs = append(pe.registeredSigs, n)
}

// releaseSignals reconciles away the per-event signal handler
// registrations made by acquireSignal, once the event completes.
func (a *Awaiter) releaseSignals(pe *pendingEvent) {
	for _, n := range pe.registeredSigs {
		reg, ok := a.signalRegs[n]
		if !ok {
			continue
		}
		reg.count--
		if reg.count <= 0 {
			if reg.canceler != nil {
				reg.canceler()
			}
			delete(a.signalRegs, n)
		}
	}
	pe.registeredSigs = nil
}

// dispatchSignals fulfils, for each signal with a nonzero accumulated
// arrival count, the earliest (lowest seq) still-pending event awaiting
// that signal number, once per arrival, until either the count or the
// matching events are exhausted.
func (a *Awaiter) dispatchSignals() {
	if len(a.signalArrivals) == 0 {
		return
	}
	for n, count := range a.signalArrivals {
		for count > 0 {
			pe := a.earliestAwaiting(KindSignal, n)
			if pe == nil {
				break
			}
			a.fulfil(pe, outcome.Value(Signal(n)))
			count--
		}
		if count > 0 {
			// No event left to absorb the remaining arrivals; they are
			// dropped, matching run_pending_handlers' role as a counter
			// drain rather than a durable queue.
			a.signalArrivals[n] = 0
		} else {
			delete(a.signalArrivals, n)
		}
	}
}

// earliestAwaiting returns the not-yet-done pending event with the lowest
// seq whose trigger set contains a trigger of the given kind matching
// discriminator (fd or signal number, depending on kind).
func (a *Awaiter) earliestAwaiting(kind Kind, discriminator int) *pendingEvent {
	var best *pendingEvent
	for _, pe := range a.events {
		if pe.done {
			continue
		}
		for _, t := range pe.triggers {
			if t.kind != kind {
				continue
			}
			match := false
			switch kind {
			case KindSignal:
				match = t.signal == discriminator
			case KindReadableFD, KindWritableFD, KindErrorFD:
				match = t.fd == discriminator
			}
			if match && (best == nil || pe.seq < best.seq) {
				best = pe
			}
		}
	}
	return best
}

// dispatchFDs fulfils every pending event whose trigger set intersects
// the fds the kernel reported ready, with one matching trigger.
func (a *Awaiter) dispatchFDs(reads, writes, errs osapi.FdSet) {
	for _, pe := range a.snapshot() {
		if pe.done {
			continue
		}
		var winner *Trigger
		for i := range pe.triggers {
			t := &pe.triggers[i]
			switch t.kind {
			case KindReadableFD:
				if reads.Test(t.fd) {
					winner = t
				}
			case KindWritableFD:
				if writes.Test(t.fd) {
					winner = t
				}
			case KindErrorFD:
				if errs.Test(t.fd) {
					winner = t
				}
			}
			if winner != nil {
				break
			}
		}
		if winner != nil {
			a.fulfil(pe, outcome.Value(*winner))
		}
	}
}

// dispatchUserProvided fulfils any event whose user-provided trigger
// resolved during attach's Then callback.
func (a *Awaiter) dispatchUserProvided() {
	for _, pe := range a.snapshot() {
		if pe.done || !pe.userResolved {
			continue
		}
		v, err := pe.userOutcome.Get()
		if err != nil {
			a.fulfil(pe, outcome.Failure[Trigger](err))
			continue
		}
		t := pe.triggers[pe.resolvedUserIdx]
		t.userValue = v
		a.fulfil(pe, outcome.Value(t))
	}
}

// fulfil completes pe's promise with o, removes pe from the pending set,
// and releases any signal handlers it had acquired.
func (a *Awaiter) fulfil(pe *pendingEvent, o outcome.Outcome[Trigger]) {
	if pe.done {
		return
	}
	pe.done = true
	a.releaseSignals(pe)
	a.removeEvent(pe)
	pe.promise.Complete(o)
}

// snapshot returns a copy of the current pending-event slice, so callers
// that fulfil events while iterating (which mutates a.events in place via
// removeEvent) don't skip or repeat entries.
func (a *Awaiter) snapshot() []*pendingEvent {
	return append([]*pendingEvent(nil), a.events...)
}

func (a *Awaiter) removeEvent(pe *pendingEvent) {
	for i, e := range a.events {
		if e == pe {
			a.events = append(a.events[:i], a.events[i+1:]...)
			return
		}
	}
}

// Close releases every signal handler this Awaiter has registered with
// its shared signalconf.Config and fails any still-pending events with
// ErrAwaiterClosed. After Close, Expect returns an already-failed future.
// Mirrors Loop.Shutdown in the reference event-loop package — a best-effort resource release
// rather than an abrupt discard, since dropped futures don't cancel any
// kernel-side effects.
func (a *Awaiter) Close() {
	if a.closed {
		return
	}
	a.closed = true
	for _, pe := range a.snapshot() {
		a.fulfil(pe, outcome.Failure[Trigger](ErrAwaiterClosed))
	}
}

// isInterrupted reports whether err is the platform's "interrupted"
// pselect error: treated as a normal wake, retried, FD sets not trusted.
func isInterrupted(err error) bool {
	return errors.Is(err, osapi.ErrInterrupted)
}
