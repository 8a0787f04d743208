package exec

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Runnable is one unit of work on the executor queue.
type Runnable interface {
	Run()
}

// Executor owns the run queue and the single worker goroutine. Add may be
// called from any goroutine; everything popped from the queue executes on
// the worker, one runnable at a time, so queued work never preempts other
// queued work mid-step.
type Executor struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Runnable
	busy   bool
	closed bool

	stopped chan struct{}
}

// NewExecutor creates and starts an executor.
func NewExecutor(name string) *Executor {
	e := &Executor{name: name, stopped: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.work()
	return e
}

// Add enqueues a runnable. Safe from any goroutine, including notification
// producers running concurrently with the worker; it never blocks.
func (e *Executor) Add(r Runnable) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		log.Warn().Str("executor", e.name).Msg("runnable dropped after shutdown")
		return
	}
	e.queue = append(e.queue, r)
	e.mu.Unlock()
	// Broadcast rather than Signal: Drain waits on the same condition.
	e.cond.Broadcast()
}

// Drain blocks until the queue is empty and the worker is idle. Work queued
// while draining is waited for as well.
func (e *Executor) Drain() {
	e.mu.Lock()
	for e.busy || len(e.queue) > 0 {
		e.cond.Wait()
	}
	e.mu.Unlock()
}

// Shutdown stops the worker after the queue empties and waits for it.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.stopped
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	<-e.stopped
}

func (e *Executor) work() {
	defer close(e.stopped)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 {
			if e.closed {
				e.mu.Unlock()
				return
			}
			e.cond.Broadcast()
			e.cond.Wait()
		}
		r := e.queue[0]
		e.queue = e.queue[1:]
		e.busy = true
		e.mu.Unlock()

		r.Run()

		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
		e.cond.Broadcast()
	}
}
