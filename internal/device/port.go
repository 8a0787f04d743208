// Package device attaches local CAN hardware to the hubs: a frame-level
// port driving a can.RawTransport, and a byte-level stream for character
// devices that speak GridConnect.
package device

import (
	"sync"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/exec"
	"github.com/danmuck/canhub/internal/hub"
	"github.com/danmuck/canhub/internal/observability"
)

// Port pumps frames between a raw CAN transport and the frame hub. Inbound
// frames carry the port as skip tag so the hub never hands them back for
// retransmission. Outbound frames queue until the driver accepts them; the
// driver's event notifier resumes the pump when frames arrive or transmit
// space frees up.
type Port struct {
	hub  *hub.Hub[can.Frame]
	pool *buffer.Pool[can.Frame]
	dev  can.RawTransport
	flow *exec.Flow

	mu       sync.Mutex
	outbound []*buffer.Buffer[can.Frame]
	spare    *buffer.Buffer[can.Frame]
	awaiting bool
	closed   bool
}

func New(e *exec.Executor, h *hub.Hub[can.Frame], pool *buffer.Pool[can.Frame], dev can.RawTransport) *Port {
	p := &Port{hub: h, pool: pool, dev: dev}
	p.flow = exec.NewFlow(e)
	dev.SetEventNotifier(p.flow.Notify)
	h.Register(p)
	p.flow.Start(p.pump)
	return p
}

// Send queues a hub broadcast for transmission on the device.
func (p *Port) Send(b *buffer.Buffer[can.Frame], _ uint) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		b.Release()
		return
	}
	p.outbound = append(p.outbound, b)
	p.mu.Unlock()
	p.flow.Notify()
}

// Close detaches the port and drops anything still queued.
func (p *Port) Close() {
	p.hub.Unregister(p)
	p.dev.SetEventNotifier(nil)

	p.mu.Lock()
	p.closed = true
	queued := p.outbound
	p.outbound = nil
	spare := p.spare
	p.spare = nil
	p.mu.Unlock()

	for _, b := range queued {
		b.Release()
	}
	if spare != nil {
		spare.Release()
	}
	p.flow.Notify()
}

func (p *Port) pump() exec.StateFn {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.flow.Exit()
	}
	p.mu.Unlock()

	// Inbound: drain the driver while a buffer slot is at hand. The slot is
	// kept as a spare between events so an arriving frame never waits for
	// the pool.
	for {
		p.mu.Lock()
		b := p.spare
		p.spare = nil
		awaiting := p.awaiting
		p.mu.Unlock()
		if b == nil {
			var ok bool
			b, ok = p.pool.TryAlloc()
			if !ok {
				if !awaiting {
					p.mu.Lock()
					p.awaiting = true
					p.mu.Unlock()
					p.pool.AllocAsync(p.adoptSpare)
				}
				break
			}
		}
		f, ok := p.dev.ReadFrame()
		if !ok {
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				b.Release()
			} else {
				p.spare = b
				p.mu.Unlock()
			}
			break
		}
		b.Value = f
		b.Skip = p
		p.hub.Send(b)
		observability.RecordFrame(p.hub.Name(), "in")
	}

	// Outbound: feed the driver until it reports full. The driver notifies
	// when space frees and the loop resumes where it stopped.
	for {
		p.mu.Lock()
		if p.closed || len(p.outbound) == 0 {
			p.mu.Unlock()
			break
		}
		b := p.outbound[0]
		p.outbound = p.outbound[1:]
		p.mu.Unlock()
		if !p.dev.WriteFrame(b.Value) {
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				b.Release()
			} else {
				p.outbound = append([]*buffer.Buffer[can.Frame]{b}, p.outbound...)
				p.mu.Unlock()
			}
			break
		}
		b.Release()
		observability.RecordFrame(p.hub.Name(), "out")
	}

	return p.flow.Suspend(p.pump)
}

// adoptSpare receives a pool slot that freed up after exhaustion.
func (p *Port) adoptSpare(b *buffer.Buffer[can.Frame]) {
	p.mu.Lock()
	p.awaiting = false
	if p.closed || p.spare != nil {
		p.mu.Unlock()
		b.Release()
		return
	}
	p.spare = b
	p.mu.Unlock()
	p.flow.Notify()
}
