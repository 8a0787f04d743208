// Package dispatch routes buffers to handlers by masked identifier match.
// The same engine serves raw CAN frames (keyed by 29-bit identifier) and
// reassembled messages (keyed by MTI).
package dispatch

import (
	"sync"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/exec"
)

// Handler consumes one dispatched item. done must be notified exactly once,
// synchronously or later; the item buffer stays alive until then. Handlers
// must not release the buffer themselves. A handler that will ever be
// unregistered must have a comparable dynamic type (pointer receivers work;
// bare HandlerFunc values do not).
type Handler[T any] interface {
	Handle(b *buffer.Buffer[T], done exec.Notifiable)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(b *buffer.Buffer[T], done exec.Notifiable)

func (f HandlerFunc[T]) Handle(b *buffer.Buffer[T], done exec.Notifiable) { f(b, done) }

type entry[T any] struct {
	id      uint32
	mask    uint32
	handler Handler[T]
}

// Dispatcher matches inbound items against registered (id, mask, handler)
// entries: an entry fires when key&mask == id&mask. Overlapping entries all
// fire, in registration order, once each.
type Dispatcher[T any] struct {
	mu      sync.Mutex
	entries []entry[T]
}

func New[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{}
}

// Register appends a routing entry. Safe from handler callbacks.
func (d *Dispatcher[T]) Register(id, mask uint32, h Handler[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, entry[T]{id: id, mask: mask, handler: h})
}

// Unregister removes the exact (id, mask, handler) triple. Safe from
// handler callbacks; an in-progress dispatch still completes against the
// snapshot it took.
func (d *Dispatcher[T]) Unregister(id, mask uint32, h Handler[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.entries {
		if e.id == id && e.mask == mask && e.handler == h {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			return
		}
	}
}

// Dispatch routes one item, consuming the caller's reference. Every
// matching handler receives an additional reference that is released when
// the handler notifies completion; after all handlers finish, the caller's
// reference is released and done (if any) is notified. Unmatched items are
// discarded silently.
func (d *Dispatcher[T]) Dispatch(key uint32, b *buffer.Buffer[T], done exec.Notifiable) {
	d.mu.Lock()
	matches := make([]Handler[T], 0, len(d.entries))
	for _, e := range d.entries {
		if key&e.mask == e.id&e.mask {
			matches = append(matches, e.handler)
		}
	}
	d.mu.Unlock()

	if len(matches) == 0 {
		b.Release()
		if done != nil {
			done.Notify()
		}
		return
	}

	barrier := exec.NewBarrier(len(matches), exec.NotifyFunc(func() {
		b.Release()
		if done != nil {
			done.Notify()
		}
	}))
	for _, h := range matches {
		h.Handle(b.Ref(), &handlerDone[T]{b: b, barrier: barrier})
	}
}

// handlerDone releases the handler's reference and advances the barrier.
type handlerDone[T any] struct {
	b       *buffer.Buffer[T]
	barrier *exec.Barrier
	once    sync.Once
}

func (h *handlerDone[T]) Notify() {
	h.once.Do(func() {
		h.b.Release()
		h.barrier.Notify()
	})
}
