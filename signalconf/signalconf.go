// Package signalconf implements the process-wide signal-handler
// configuration layer: a registry mapping each signal number to a
// stack of user handlers and one trap action, mediating between the
// native (os/signal-relayed) disposition and the mask the awaiter passes
// to pselect.
//
// A single registry guarded by a mutex is reconciled against the native
// disposition on every configuration change, generalized here to a
// per-signal handler-stack and trap model rather than one handler per
// signal.
package signalconf

import (
	"errors"
	"fmt"
	"sync"
	"weak"

	"github.com/sesh-run/asyncore/osapi"
)

// TrapAction is the single per-signal action set by SetTrap: Default,
// Handler, or Ignore — the reconciliation algorithm below treats Ignore
// as a third trap action alongside Default and Handler (see DESIGN.md for
// why a third state earns its own constant rather than overloading
// Default).
type TrapAction int

const (
	TrapDefault TrapAction = iota
	TrapHandler
	TrapIgnore
)

// Policy governs how SetTrap behaves when a signal's initial disposition
// was Ignore.
type Policy int

const (
	// Force overwrites any existing trap unconditionally.
	Force Policy = iota
	// FailIfIgnored refuses with ErrInitiallyIgnored if the signal's first
	// observed native disposition was Ignore.
	FailIfIgnored
)

// ErrInitiallyIgnored is the sentinel InitiallyIgnoredError wraps, so
// callers can test for it with errors.Is without depending on the
// concrete type.
var ErrInitiallyIgnored = errors.New("signalconf: signal was initially ignored")

// InitiallyIgnoredError is returned by SetTrap(n, _, FailIfIgnored) when
// n's first observed disposition was Ignore.
type InitiallyIgnoredError struct {
	Signal int
}

func (e *InitiallyIgnoredError) Error() string {
	return fmt.Sprintf("signalconf: signal %d was initially ignored", e.Signal)
}

func (e *InitiallyIgnoredError) Unwrap() error { return ErrInitiallyIgnored }

// Handler is a user callback invoked once per received (and drained)
// instance of a signal.
type Handler func(n int)

// entry is the per-signal bookkeeping: a FILO handler stack, at most one
// trap action, cached initial/current native dispositions, and a
// received-but-undelivered counter.
type entry struct {
	handlers []*handlerSlot
	trapSet  bool
	trap     TrapAction
	trapFn   Handler

	initialDisposition osapi.Disposition
	currentDisposition osapi.Disposition
	touched            bool

	pending int
	inMask  bool // whether n is currently included in mask_for_wait
}

type handlerSlot struct {
	fn     Handler
	active bool
}

// Canceler removes a previously-added handler and reconciles the native
// disposition. Idempotent and safe to call more than once or drop
// entirely.
type Canceler func()

// Config is the process-wide signal-handler configuration singleton.
// All exported methods are safe to call from any goroutine, but the
// design assumes a single-threaded awaiter driving them — the mutex
// exists only to protect against the async relay goroutine installed in
// osapi's real backend, not to support concurrent user access.
type Config struct {
	api osapi.API

	mu      sync.Mutex
	entries map[int]*entry
}

// New constructs a Config backed by api. Most callers should use the
// package-wide singleton via Shared instead; New exists for tests that
// want an isolated instance.
func New(api osapi.API) *Config {
	return &Config{api: api, entries: map[int]*entry{}}
}

var (
	sharedMu sync.Mutex
	shared   *Config
)

// Shared returns the process-wide Config, creating it with api if none
// exists yet: at most one live handler-configuration instance exists per
// process. Subsequent calls ignore api and return the existing instance.
func Shared(api osapi.API) *Config {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(api)
	}
	return shared
}

// ResetShared discards the process-wide singleton. Relays already
// installed for the discarded instance keep running, but they reach it
// only through a weak pointer (see dispatchFor): while the discarded
// Config is still referenced elsewhere they keep incrementing its
// counters, and once it has been collected they drop signals. A fresh
// Shared() call starts a new, independent registry. Intended for tests
// only.
func ResetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = nil
}

func (c *Config) entryFor(n int) *entry {
	e, ok := c.entries[n]
	if !ok {
		e = &entry{}
		c.entries[n] = e
	}
	return e
}

// AddHandler pushes h onto the handler stack for n and reconciles the
// native disposition. The returned Canceler removes h and reconciles
// again.
func (c *Config) AddHandler(n int, h Handler) (Canceler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryFor(n)
	slot := &handlerSlot{fn: h, active: true}
	e.handlers = append(e.handlers, slot)

	if err := c.reconcileLocked(n); err != nil {
		slot.active = false
		return func() {}, err
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !slot.active {
			return
		}
		slot.active = false
		// reconcileLocked tolerates a best-effort reconciliation failure on
		// cancel since there is no caller left to report it to.
		_ = c.reconcileLocked(n)
	}, nil
}

// SetTrap sets (action != TrapDefault with fn) or clears (action ==
// TrapDefault) the single trap action for n.
func (c *Config) SetTrap(n int, action TrapAction, fn Handler, policy Policy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryFor(n)

	if policy == FailIfIgnored {
		if err := c.touchLocked(n); err != nil {
			return err
		}
		if e.initialDisposition == osapi.Ignore {
			return &InitiallyIgnoredError{Signal: n}
		}
	}

	e.trapSet = action != TrapDefault
	e.trap = action
	e.trapFn = fn

	return c.reconcileLocked(n)
}

// touchLocked ensures n's initial disposition has been observed, without
// changing it: the very first time, it lets reconcileLocked capture the
// initial disposition via Sigaction and then, if the disposition that call
// installed differs from the one observed, reinstalls the observed one. A
// no-op if n has already been touched. Must be called with mu held.
func (c *Config) touchLocked(n int) error {
	e := c.entryFor(n)
	if e.touched {
		return nil
	}
	// reconcileLocked performs the real first-touch capture via Sigaction
	// without altering any handler/trap state.
	if err := c.reconcileLocked(n); err != nil {
		return err
	}
	if e.currentDisposition != e.initialDisposition {
		if _, err := c.api.Sigaction(n, e.initialDisposition, c.dispatchFor(n)); err != nil {
			return fmt.Errorf("signalconf: sigaction(%d): %w", n, err)
		}
		e.currentDisposition = e.initialDisposition
		e.inMask = e.initialDisposition == osapi.Default
	}
	return nil
}

// desiredDisposition computes the disposition this entry wants installed
// right now, from its active handlers and trap action.
func (e *entry) desiredDisposition() osapi.Disposition {
	hasActiveHandler := false
	for _, s := range e.handlers {
		if s.active {
			hasActiveHandler = true
			break
		}
	}
	if hasActiveHandler || (e.trapSet && e.trap == TrapHandler) {
		return osapi.Handler
	}
	if e.trapSet && e.trap == TrapIgnore {
		return osapi.Ignore
	}
	return osapi.Default
}

// reconcileLocked brings n's installed native disposition in line with
// its desired disposition, updating cached state as it goes. Must be
// called with mu held.
func (c *Config) reconcileLocked(n int) error {
	e := c.entryFor(n)
	desired := e.desiredDisposition()

	if !e.touched {
		// First touch: install desired with the signal's own relay
		// function, and record the "old" disposition that Sigaction
		// returns as the initial disposition cache, whatever desired is.
		fn := c.dispatchFor(n)
		prev, err := c.api.Sigaction(n, desired, fn)
		if err != nil {
			return fmt.Errorf("signalconf: sigaction(%d): %w", n, err)
		}
		e.touched = true
		e.initialDisposition = prev
		e.currentDisposition = desired
		e.inMask = desired == osapi.Default && prev == osapi.Default
		return nil
	}

	if desired == e.currentDisposition {
		return nil
	}

	if desired == osapi.Handler {
		// Block n before installing the handler so no delivery races the
		// Sigaction call. osapi's real backend treats this as bookkeeping
		// only (see osapi/signal_unix.go) but the call is kept so a future
		// native backend can honor it literally.
		if err := c.api.Sigprocmask(osapi.Block, c.singleSignalSet(n), nil); err != nil {
			return fmt.Errorf("signalconf: sigprocmask block(%d): %w", n, err)
		}
	}

	fn := c.dispatchFor(n)
	if _, err := c.api.Sigaction(n, desired, fn); err != nil {
		return fmt.Errorf("signalconf: sigaction(%d): %w", n, err)
	}
	e.currentDisposition = desired

	if desired != osapi.Default && !e.wasInitiallyBlocked() {
		if err := c.api.Sigprocmask(osapi.Unblock, c.singleSignalSet(n), nil); err != nil {
			return fmt.Errorf("signalconf: sigprocmask unblock(%d): %w", n, err)
		}
	}

	// The mask-for-wait bit is set iff desired is Default and n was in
	// the initial mask. This implementation treats "n was in the initial
	// mask" as equivalent to the initial disposition being Default (a
	// process that blocks a signal without a handler installed and the
	// default action being taken is outside what this layer can observe
	// through Sigaction alone).
	e.inMask = desired == osapi.Default && e.initialDisposition == osapi.Default

	return nil
}

// wasInitiallyBlocked is a conservative stand-in for inspecting the
// process's original signal mask, which osapi.API does not expose reading
// of (only Sigprocmask, a write-only primitive). Signals are assumed
// unblocked initially except where the initial disposition itself was
// Ignore, which implies the process intentionally suppressed it.
func (e *entry) wasInitiallyBlocked() bool {
	return e.initialDisposition == osapi.Ignore
}

func (c *Config) singleSignalSet(n int) osapi.SignalSet {
	s := c.api.NewSignalSet()
	s.Add(n)
	return s
}

// dispatchFor returns the function installed as the native handler for n:
// it only increments the pending counter and does nothing else. The
// closure holds only a weak.Pointer to c, not c itself, so that a relay
// goroutine installed by osapi's real backend (which, once a Handler
// disposition is installed, lives for the remainder of the process) never
// keeps a discarded Config reachable. If the weak pointer no longer
// resolves (the only owning Config has been dropped, e.g. after
// ResetShared), the signal is silently dropped rather than delivered to
// a half-torn-down configuration.
func (c *Config) dispatchFor(n int) func(int) {
	wp := weak.Make(c)
	return func(int) {
		cfg := wp.Value()
		if cfg == nil {
			return
		}
		cfg.mu.Lock()
		e := cfg.entryFor(n)
		e.pending++
		cfg.mu.Unlock()
	}
}

// MaskForWait returns the signal mask the awaiter must pass to pselect,
// or nil until the first configuration change (meaning "use the current
// process mask").
func (c *Config) MaskForWait() osapi.SignalSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	var mask osapi.SignalSet
	for n, e := range c.entries {
		if !e.touched {
			continue
		}
		if mask == nil {
			mask = c.api.NewSignalSet()
		}
		if e.inMask {
			mask.Add(n)
		}
	}
	return mask
}

// RunPendingHandlers drains every signal's received-but-undelivered
// counter and invokes its handlers (in insertion order) and trap, that
// many times each, on the caller's goroutine. A handler must not panic;
// if one does, the panic propagates out of this call at once, and the
// invocations still outstanding are not run (their counters have already
// been reset to zero).
func (c *Config) RunPendingHandlers() {
	c.mu.Lock()
	type drain struct {
		n        int
		count    int
		handlers []Handler
		trapFn   Handler
		trapSet  bool
	}
	var work []drain
	for n, e := range c.entries {
		if e.pending == 0 {
			continue
		}
		d := drain{n: n, count: e.pending, trapFn: e.trapFn, trapSet: e.trapSet}
		for _, s := range e.handlers {
			if s.active {
				d.handlers = append(d.handlers, s.fn)
			}
		}
		e.pending = 0
		work = append(work, d)
	}
	c.mu.Unlock()

	for _, d := range work {
		for i := 0; i < d.count; i++ {
			for _, h := range d.handlers {
				h(d.n)
			}
			if d.trapSet && d.trapFn != nil {
				d.trapFn(d.n)
			}
		}
	}
}

// PendingCount reports the current received-but-undelivered counter for
// n.
func (c *Config) PendingCount(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryFor(n).pending
}

// Deliver records one native signal arrival for n, incrementing the same
// received-but-undelivered counter that the dispatch closure installed via
// Sigaction (see dispatchFor) increments. No package in this module calls
// it; the dispatchFor path does not use it, and tests use it to simulate
// arrivals.
func (c *Config) Deliver(n int) {
	c.mu.Lock()
	e := c.entryFor(n)
	e.pending++
	c.mu.Unlock()
}

// CurrentDisposition reports the currently-installed native disposition
// for n (Default if n has never been touched).
func (c *Config) CurrentDisposition(n int) osapi.Disposition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryFor(n).currentDisposition
}

// InitialDisposition reports the first observed native disposition for n,
// capturing it via a zero-effect reconciliation if n has never been
// touched.
func (c *Config) InitialDisposition(n int) (osapi.Disposition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.touchLocked(n); err != nil {
		return osapi.Default, err
	}
	return c.entryFor(n).initialDisposition, nil
}
