package buffer

import (
	"sync"
	"sync/atomic"
)

// Buffer is one pooled payload slot. Skip names the port identity that must
// not receive this buffer back from a hub (loop-back suppression). Priority
// is an optional delivery hint; zero is the default.
//
// A buffer handed to more than one concurrent reader must not be mutated.
type Buffer[T any] struct {
	Value    T
	Skip     any
	Priority uint

	pool *Pool[T]
	refs atomic.Int32
}

// Ref acquires one additional reference.
func (b *Buffer[T]) Ref() *Buffer[T] {
	b.refs.Add(1)
	return b
}

// Release drops one reference. The slot goes back to the pool when the last
// reference is dropped; releasing more often than acquired is a caller bug.
func (b *Buffer[T]) Release() {
	n := b.refs.Add(-1)
	if n < 0 {
		panic("buffer: release of a dead buffer")
	}
	if n == 0 {
		b.pool.put(b)
	}
}

// Refs reports the current reference count.
func (b *Buffer[T]) Refs() int {
	return int(b.refs.Load())
}

// Ticket is one pending asynchronous allocation. Cancel prevents a not yet
// fulfilled request from ever being fulfilled.
type Ticket[T any] struct {
	fn        func(*Buffer[T])
	cancelled bool
	fulfilled bool
}

// Pool hands out buffers from a fixed set of slots. Requests past capacity
// queue in FIFO order and are fulfilled as slots free up.
type Pool[T any] struct {
	mu      sync.Mutex
	free    []*Buffer[T]
	waiters []*Ticket[T]
}

// NewPool creates a pool with the given fixed capacity.
func NewPool[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		panic("buffer: pool capacity must be positive")
	}
	p := &Pool[T]{free: make([]*Buffer[T], 0, capacity)}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, &Buffer[T]{pool: p})
	}
	return p
}

// Alloc returns a buffer with one reference, blocking the calling goroutine
// until a slot is available. Flows that must not block use AllocAsync.
func (p *Pool[T]) Alloc() *Buffer[T] {
	ch := make(chan *Buffer[T], 1)
	p.AllocAsync(func(b *Buffer[T]) { ch <- b })
	return <-ch
}

// AllocAsync runs fn with a fresh buffer as soon as one is available, either
// immediately on the caller or later on the goroutine that released a slot.
// The returned ticket cancels a request that has not been fulfilled yet.
func (p *Pool[T]) AllocAsync(fn func(*Buffer[T])) *Ticket[T] {
	t := &Ticket[T]{fn: fn}
	p.mu.Lock()
	if len(p.free) == 0 {
		p.waiters = append(p.waiters, t)
		p.mu.Unlock()
		return t
	}
	b := p.takeLocked()
	t.fulfilled = true
	p.mu.Unlock()
	fn(b)
	return t
}

// TryAlloc returns a buffer only if a slot is free right now.
func (p *Pool[T]) TryAlloc() (*Buffer[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, false
	}
	return p.takeLocked(), true
}

// Cancel withdraws the request. It reports false when the request was
// already fulfilled or cancelled.
func (p *Pool[T]) Cancel(t *Ticket[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.fulfilled || t.cancelled {
		return false
	}
	t.cancelled = true
	for i, w := range p.waiters {
		if w == t {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	return true
}

// InUse reports how many slots are currently allocated.
func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cap(p.free) - len(p.free)
}

// Pending reports how many allocation requests are queued.
func (p *Pool[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Capacity reports the fixed slot count.
func (p *Pool[T]) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cap(p.free)
}

func (p *Pool[T]) takeLocked() *Buffer[T] {
	b := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	b.refs.Store(1)
	return b
}

// put returns a dead buffer to the pool, fulfilling the oldest waiter first.
func (p *Pool[T]) put(b *Buffer[T]) {
	var zero T
	b.Value = zero
	b.Skip = nil
	b.Priority = 0

	p.mu.Lock()
	for len(p.waiters) > 0 {
		t := p.waiters[0]
		p.waiters = p.waiters[1:]
		if t.cancelled {
			continue
		}
		t.fulfilled = true
		b.refs.Store(1)
		fn := t.fn
		p.mu.Unlock()
		fn(b)
		return
	}
	p.free = append(p.free, b)
	p.mu.Unlock()
}
