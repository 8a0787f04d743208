package exec

import "sync"

// StateFn is one step of a flow. It returns the state to run next within
// the same scheduler slot, or nil to give up the worker. Before returning
// nil through Suspend the flow must have arranged for Notify to be called,
// otherwise returning nil ends the flow.
type StateFn func() StateFn

// Flow is a resumable state machine scheduled on an Executor. All state
// transitions run on the executor worker; Notify is the only entry point
// safe from other goroutines.
type Flow struct {
	exec *Executor

	mu       sync.Mutex
	state    StateFn
	running  bool
	notified bool
}

// NewFlow creates an idle flow bound to an executor.
func NewFlow(e *Executor) *Flow {
	return &Flow{exec: e}
}

// Executor returns the executor this flow is scheduled on.
func (f *Flow) Executor() *Executor { return f.exec }

// Start sets the entry state and schedules the flow.
func (f *Flow) Start(entry StateFn) {
	f.mu.Lock()
	f.state = entry
	f.mu.Unlock()
	f.Notify()
}

// Suspend records the state to resume at and yields the worker. Use as
// `return f.Suspend(next)` from a state function after registering a
// resumption path (pool waiter, hub queue, driver callback).
func (f *Flow) Suspend(next StateFn) StateFn {
	f.mu.Lock()
	f.state = next
	f.mu.Unlock()
	return nil
}

// Exit ends the flow. Use as `return f.Exit()`.
func (f *Flow) Exit() StateFn {
	f.mu.Lock()
	f.state = nil
	f.mu.Unlock()
	return nil
}

// Notify schedules the flow to resume its recorded state. Duplicate
// notifications while the flow is queued or running coalesce into one
// additional pass.
func (f *Flow) Notify() {
	f.mu.Lock()
	if f.running {
		f.notified = true
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()
	f.exec.Add(f)
}

// Run executes states until the flow suspends or exits. Called by the
// executor worker only.
func (f *Flow) Run() {
	for {
		f.mu.Lock()
		f.notified = false
		s := f.state
		f.mu.Unlock()

		for s != nil {
			s = s()
		}

		f.mu.Lock()
		if f.notified && f.state != nil {
			f.mu.Unlock()
			continue
		}
		f.running = false
		f.mu.Unlock()
		return
	}
}
