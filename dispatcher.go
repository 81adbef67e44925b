package client

import "sync"

// eventDispatcher is a single-threaded cooperative executor: callers
// enqueue zero-arg closures via add, and one dedicated worker goroutine
// drains them in FIFO order, never overlapping with itself. The controller
// uses this so that all event handling (state change, ping) executes on the
// same goroutine, eliminating the need for handler-side mutual exclusion
// between handlers; it still uses locks to synchronise with caller-thread
// API calls.
type eventDispatcher struct {
	tasks chan func()

	closeOnce sync.Once
	done      chan struct{}
}

func newEventDispatcher() *eventDispatcher {
	d := &eventDispatcher{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	defer close(d.done)
	for fn := range d.tasks {
		fn()
	}
}

// add enqueues fn for execution on the worker goroutine. It may be called
// from any goroutine, including from within a currently-executing task (the
// task will simply run after the ones queued ahead of it). The queue holds
// 256 tasks; add blocks while it is full, so a task that calls add on a
// full queue never returns.
func (d *eventDispatcher) add(fn func()) {
	d.tasks <- fn
}

// Close stops accepting new tasks and joins the worker once it has run
// every task already queued, including the currently-executing one.
func (d *eventDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.tasks)
	})
	<-d.done
}
