// Package hub relays opaque buffers among registered ports. The single
// invariant this layer always upholds: a buffer is never delivered to the
// port whose identity equals its skip tag.
package hub

import (
	"sync"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/exec"
	"github.com/danmuck/canhub/internal/observability"
)

// Port is anything that can accept a buffer. Implementations take over the
// reference handed to them and release it when done. Send must not block
// the hub flow for long; slow consumers queue internally.
type Port[T any] interface {
	Send(b *buffer.Buffer[T], priority uint)
}

// Hub broadcasts each buffer to every registered port except the one named
// by the buffer's skip tag. Delivery runs on a flow, so buffers from one
// producer reach every port in the order they were sent.
type Hub[T any] struct {
	name string
	flow *exec.Flow

	mu    sync.Mutex
	ports []Port[T]
	queue []*buffer.Buffer[T]
}

// New creates a hub scheduled on the given executor.
func New[T any](e *exec.Executor, name string) *Hub[T] {
	h := &Hub[T]{name: name}
	h.flow = exec.NewFlow(e)
	h.flow.Start(h.pump)
	return h
}

// Name identifies the hub in logs and metrics.
func (h *Hub[T]) Name() string { return h.name }

// Register attaches a port. Ports receive buffers in registration order.
func (h *Hub[T]) Register(p Port[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ports = append(h.ports, p)
}

// Unregister detaches a port. Buffers already captured for delivery to the
// port complete independently; the port just stops receiving new ones.
func (h *Hub[T]) Unregister(p Port[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, q := range h.ports {
		if q == p {
			h.ports = append(h.ports[:i], h.ports[i+1:]...)
			return
		}
	}
}

// PortCount reports the number of registered ports.
func (h *Hub[T]) PortCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ports)
}

// Send queues the buffer for broadcast, consuming the caller's reference.
// Safe from any goroutine.
func (h *Hub[T]) Send(b *buffer.Buffer[T]) {
	h.mu.Lock()
	h.queue = append(h.queue, b)
	h.mu.Unlock()
	h.flow.Notify()
}

// pump delivers one queued buffer per step: highest priority first among
// what is pending, first-queued among equals.
func (h *Hub[T]) pump() exec.StateFn {
	h.mu.Lock()
	if len(h.queue) == 0 {
		h.mu.Unlock()
		return h.flow.Suspend(h.pump)
	}
	best := 0
	for i, b := range h.queue {
		if b.Priority > h.queue[best].Priority {
			best = i
		}
	}
	b := h.queue[best]
	h.queue = append(h.queue[:best], h.queue[best+1:]...)
	targets := make([]Port[T], 0, len(h.ports))
	for _, p := range h.ports {
		if b.Skip != nil && p == b.Skip {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		p.Send(b.Ref(), b.Priority)
	}
	b.Release()
	observability.RecordBroadcast(h.name)
	return h.pump
}
