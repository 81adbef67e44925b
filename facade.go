package client

import "sync"

// Factory lazily constructs the single process-wide Controller and hands
// out Control facades bound to it. This realizes spec.md §9's instruction
// to reimplement the original's static-initialisation singleton as "an
// explicitly constructed object held by the facade factory, with lifetime
// tied to the first facade's creation".
type Factory struct {
	cfg *Config

	once       sync.Once
	controller *Controller
	initErr    error
}

// NewFactory returns a Factory configured to connect to cfg.SocketPath. No
// connection is made until the first Control is created.
func NewFactory(cfg *Config) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) getController() (*Controller, error) {
	f.once.Do(func() {
		f.controller, f.initErr = newController(f.cfg)
	})
	return f.controller, f.initErr
}

// NewControl creates a Control facade holding a strong reference to
// listener for its own lifetime, so the Controller's weak references
// remain valid. Control.RegisterClient must be called explicitly; NewControl
// itself performs no RPC.
func (f *Factory) NewControl(listener Listener) (*Control, error) {
	controller, err := f.getController()
	if err != nil {
		return nil, err
	}
	return &Control{controller: controller, listener: listener}, nil
}

// Close tears down the process-wide Controller, if one was created. Call at
// most once, at program exit.
func (f *Factory) Close() {
	if f.controller != nil {
		f.controller.close()
	}
}

// Control is the Control Facade (component F): a thin per-client handle
// that forwards register/unregister and state-query to the shared
// Controller.
type Control struct {
	controller *Controller
	listener   Listener

	mu   sync.Mutex
	weak *weakListener
}

// RegisterClient forwards to the Controller, keeping a strong reference to
// the listener alive for the lifetime of this Control. Calling it again
// after a successful registration is a no-op that simply reports the
// current state (spec.md §8 scenario 6: lazy registration).
func (c *Control) RegisterClient() (ApplicationState, bool) {
	w, state, ok := c.controller.registerListener(c.listener)
	if !ok {
		return state, false
	}

	c.mu.Lock()
	c.weak = w
	c.mu.Unlock()

	return state, true
}

// SharedMemoryHandle returns the controller's current shared-memory handle,
// or nil outside RUNNING.
func (c *Control) SharedMemoryHandle() *SharedMemoryHandle {
	return c.controller.SharedMemoryHandle()
}

// State returns the controller's current application state snapshot,
// independent of whether this Control has itself registered yet.
func (c *Control) State() ApplicationState {
	return c.controller.stateSnapshot()
}

// DiagnosticsLines returns the recent state/ping log lines kept by the
// controller, oldest first, for diagnostic tooling such as rialto-ctl.
func (c *Control) DiagnosticsLines() []string {
	return c.controller.diagnosticsLines()
}

// Close unregisters this facade's listener from the controller.
func (c *Control) Close() error {
	c.mu.Lock()
	w := c.weak
	c.mu.Unlock()

	if w != nil {
		c.controller.unregisterWeak(w)
		w.expire()
	}
	return nil
}
