package exec

import "sync/atomic"

// Notifiable receives completion callbacks between flows.
type Notifiable interface {
	Notify()
}

// NotifyFunc adapts a function to Notifiable.
type NotifyFunc func()

func (f NotifyFunc) Notify() { f() }

// Barrier fans N child notifications into one parent notification. The
// parent fires exactly once, when the count reaches zero.
type Barrier struct {
	remaining atomic.Int32
	parent    Notifiable
}

// NewBarrier creates a barrier expecting n notifications. A nil parent makes
// the barrier a pure sink.
func NewBarrier(n int, parent Notifiable) *Barrier {
	if n <= 0 {
		panic("exec: barrier count must be positive")
	}
	b := &Barrier{parent: parent}
	b.remaining.Store(int32(n))
	return b
}

func (b *Barrier) Notify() {
	n := b.remaining.Add(-1)
	if n < 0 {
		panic("exec: barrier notified past zero")
	}
	if n == 0 && b.parent != nil {
		b.parent.Notify()
	}
}

// Done is a Notifiable tests and synchronous callers can wait on.
type Done struct {
	ch chan struct{}
}

func NewDone() *Done {
	return &Done{ch: make(chan struct{})}
}

func (d *Done) Notify() { close(d.ch) }

// Wait blocks until Notify has been called.
func (d *Done) Wait() { <-d.ch }

// C exposes the completion channel for select loops.
func (d *Done) C() <-chan struct{} { return d.ch }
