package client

import (
	"log"
	"sync"
	"time"
)

// weakListener is a clearable wrapper standing in for a weak
// reference (Design Notes §9 Open Question 1: Go's targeted toolchain has
// no portable weak pointer). *Control holds the strong side and clears it
// on Close; the controller treats a cleared wrapper as expired and elides
// it on the next fan-out, upgrading each live one exactly once per
// notification.
type weakListener struct {
	mu       sync.Mutex
	listener Listener
}

func newWeakListener(l Listener) *weakListener {
	return &weakListener{listener: l}
}

// upgrade returns the live listener, or nil if expired. Called at most once
// per subscriber per transition, per spec.md invariant 6.
func (w *weakListener) upgrade() Listener {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.listener
}

func (w *weakListener) expire() {
	w.mu.Lock()
	w.listener = nil
	w.mu.Unlock()
}

// Controller is the Client Controller (component E): the sole authority
// that owns the shared-memory handle and the subscriber set, and that
// converts asynchronous state events into the user-visible lifecycle. It is
// a process-wide singleton in spirit (spec.md §9), realized here as an
// explicitly constructed object held by Factory with lifetime tied to the
// first Control's creation.
type Controller struct {
	cfg    *Config
	logger *log.Logger

	mu                   sync.Mutex
	currentState         ApplicationState
	registrationRequired bool
	registered           bool
	shm                  *SharedMemoryHandle
	subscribers          []*weakListener

	channel    Channel
	dispatcher *eventDispatcher
	session    *session
	diag       *diagnosticsRing
}

// newController constructs the full stack (channel, dispatcher, session)
// bound to cfg, but performs no registerClient RPC yet -- registration is
// lazy, triggered by the first RegisterClient call (spec.md §4.E / §8
// scenario 6).
func newController(cfg *Config) (*Controller, error) {
	logger := newLogger(cfg)

	channel, err := NewSocketChannel(cfg.SocketPath, cfg.timeout(), logger)
	if err != nil {
		return nil, err
	}

	return newControllerWithChannel(cfg, channel, logger)
}

// newControllerWithChannel builds a Controller over an already-constructed
// Channel, letting tests substitute a fake Channel without a real socket.
func newControllerWithChannel(cfg *Config, channel Channel, logger *log.Logger) (*Controller, error) {
	c := &Controller{
		cfg:                  cfg,
		logger:               logger,
		currentState:         ApplicationStateUnknown,
		registrationRequired: true,
		channel:              channel,
		dispatcher:           newEventDispatcher(),
		diag:                 newDiagnosticsRing(),
	}

	sess, err := newSession(channel, c.dispatcher, c, cfg.schemaVersion(), logger, cfg.ClientLabel)
	if err != nil {
		c.dispatcher.Close()
		channel.Close()
		return nil, err
	}
	c.session = sess

	return c, nil
}

// registerListener adds listener to the subscriber set and returns the
// current state, the weak handle Control must hold on to in order to
// unregister later, and success. If the controller has not yet performed a
// successful registerClient RPC, it performs one now; a failed RPC causes
// this call to return false and the listener is not added.
func (c *Controller) registerListener(listener Listener) (*weakListener, ApplicationState, bool) {
	if listener == nil {
		return nil, ApplicationStateUnknown, false
	}

	c.mu.Lock()
	needsRegister := c.registrationRequired || !c.registered
	c.mu.Unlock()

	if needsRegister {
		start := time.Now()
		ok, err := c.session.registerClient()
		measureSince(metricKeyRegister, start)
		if err != nil || !ok {
			if c.logger != nil {
				c.logger.Printf("[ERR] rialto.controller: registerClient failed: ok=%v err=%v", ok, err)
			}
			return nil, ApplicationStateUnknown, false
		}
		incrCounter(metricKeyRegister)

		c.mu.Lock()
		c.registrationRequired = false
		c.registered = true
		c.mu.Unlock()
	}

	c.mu.Lock()
	// Deduplicate: registering the same listener twice (the round-trip law
	// of spec.md §8: "register; unregister; register" must leave the
	// subscriber set semantically identical to a single register) must not
	// grow the subscriber set with two wrappers around one listener.
	for _, existing := range c.subscribers {
		if existing.upgrade() == listener {
			state := c.currentState
			c.mu.Unlock()
			return existing, state, true
		}
	}
	w := newWeakListener(listener)
	c.subscribers = append(c.subscribers, w)
	state := c.currentState
	c.mu.Unlock()

	return w, state, true
}

// stateSnapshot returns the current application state under lock.
func (c *Controller) stateSnapshot() ApplicationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentState
}

// unregisterWeak removes w from the subscriber set; returns false if not
// present.
func (c *Controller) unregisterWeak(w *weakListener) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sub := range c.subscribers {
		if sub == w {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// SharedMemoryHandle returns the current handle, or nil outside RUNNING.
func (c *Controller) SharedMemoryHandle() *SharedMemoryHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shm
}

// diagnosticsLines returns the recent state/ping log lines kept for
// rialto-ctl's ping-log subcommand.
func (c *Controller) diagnosticsLines() []string {
	return c.diag.Lines()
}

// notifyApplicationState implements the state-machine transition table of
// spec.md §4.E. It satisfies sessionListener.
func (c *Controller) notifyApplicationState(newState ApplicationState) {
	c.mu.Lock()
	if c.currentState == newState {
		c.mu.Unlock()
		if c.logger != nil {
			c.logger.Printf("[WARN] rialto.controller: application state already %s", newState)
		}
		return
	}
	c.mu.Unlock()

	switch newState {
	case ApplicationStateRunning:
		c.transitionToRunning()
	case ApplicationStateInactive:
		c.transitionToInactive()
	case ApplicationStateUnknown:
		c.transitionToUnknown()
	default:
		if c.logger != nil {
			c.logger.Printf("[ERR] rialto.controller: rejecting invalid application state %v", newState)
		}
	}
}

// transitionToRunning fetches (fd,size) via the session and attempts
// mapping; on success it stores the handle, sets state to RUNNING, then
// notifies subscribers (invariant 3: mapping acquired before notify). On
// failure, the state is not advanced (invariant: failure is non-fatal and
// local).
func (c *Controller) transitionToRunning() {
	fd, size, err := c.session.getSharedMemory()
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("[ERR] rialto.controller: getSharedMemory failed: %v", err)
		}
		return
	}

	handle, err := newSharedMemoryHandle(fd, size)
	if err != nil {
		incrCounter(metricKeyShmMapErr)
		if c.logger != nil {
			c.logger.Printf("[ERR] rialto.controller: could not initialise shared memory: %v", err)
		}
		return
	}

	c.mu.Lock()
	c.shm = handle
	c.currentState = ApplicationStateRunning
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	c.diag.record("state -> RUNNING (shm fd=%d size=%d)", fd, size)
	c.fanOut(subs, ApplicationStateRunning)
}

// transitionToInactive notifies subscribers with INACTIVE first, then
// releases the mapping (invariant 2: notify before unmap/close).
func (c *Controller) transitionToInactive() {
	c.mu.Lock()
	c.currentState = ApplicationStateInactive
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	c.diag.record("state -> INACTIVE")
	c.fanOut(subs, ApplicationStateInactive)

	c.mu.Lock()
	handle := c.shm
	c.shm = nil
	c.mu.Unlock()

	if handle != nil {
		if err := handle.Close(); err != nil && c.logger != nil {
			c.logger.Printf("[ERR] rialto.controller: failed to release shared memory: %v", err)
		}
	}
}

// transitionToUnknown notifies subscribers with UNKNOWN, releases the
// mapping if present, and marks registration as required again (spec.md
// invariant 5).
func (c *Controller) transitionToUnknown() {
	c.mu.Lock()
	c.currentState = ApplicationStateUnknown
	c.registrationRequired = true
	c.registered = false
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	c.diag.record("state -> UNKNOWN")
	c.fanOut(subs, ApplicationStateUnknown)

	c.mu.Lock()
	handle := c.shm
	c.shm = nil
	c.mu.Unlock()

	if handle != nil {
		if err := handle.Close(); err != nil && c.logger != nil {
			c.logger.Printf("[ERR] rialto.controller: failed to release shared memory: %v", err)
		}
	}
}

// notifyPing satisfies sessionListener: fans a Ping callback out to every
// live subscriber implementing PingObserver. Not gated further here; the
// session has already validated the control handle.
func (c *Controller) notifyPing(id uint32) {
	c.mu.Lock()
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	c.diag.record("ping id=%d", id)
	for _, l := range subs {
		if observer, ok := l.(PingObserver); ok {
			observer.Ping(id)
		}
	}
}

// snapshotSubscribers must be called with c.mu held. It upgrades each
// live weak subscriber exactly once, elides expired ones, and returns the
// strong references -- the caller releases c.mu before invoking any of
// them (invariant 4).
func (c *Controller) snapshotSubscribers() []Listener {
	live := make([]Listener, 0, len(c.subscribers))
	kept := c.subscribers[:0]
	for _, w := range c.subscribers {
		if l := w.upgrade(); l != nil {
			live = append(live, l)
			kept = append(kept, w)
		}
	}
	c.subscribers = kept
	return live
}

func (c *Controller) fanOut(subs []Listener, state ApplicationState) {
	for _, l := range subs {
		l.NotifyApplicationState(state)
	}
}

// close tears down the session, dispatcher and channel. Invoked once, at
// process exit, via Factory.Close.
func (c *Controller) close() {
	if err := c.session.releaseSubscriptions(); err != nil && c.logger != nil {
		c.logger.Printf("[WARN] rialto.controller: releaseSubscriptions: %v", err)
	}
	c.dispatcher.Close()
	c.channel.Close()

	c.mu.Lock()
	handle := c.shm
	c.shm = nil
	c.mu.Unlock()
	if handle != nil {
		handle.Close()
	}
}
