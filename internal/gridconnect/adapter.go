package gridconnect

import (
	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/hub"
	"github.com/danmuck/canhub/internal/observability"
)

// Adapter bridges a raw-frame hub and a byte-stream hub with the
// GridConnect line protocol. It registers one port on each side: frames
// arriving on the frame hub are encoded onto the text hub, bytes arriving
// on the text hub are decoded onto the frame hub. Either direction tags its
// output with its own port identity so nothing echoes back through the
// adapter, and frame order is preserved both ways.
type Adapter struct {
	frameHub  *hub.Hub[can.Frame]
	textHub   *hub.Hub[[]byte]
	framePool *buffer.Pool[can.Frame]
	textPool  *buffer.Pool[[]byte]
	newlines  bool

	frameSide *encodePort
	textSide  *decodePort
}

// NewAdapter wires both ports and starts relaying. newlines controls the
// trailing '\n' after each encoded line.
func NewAdapter(
	frameHub *hub.Hub[can.Frame],
	textHub *hub.Hub[[]byte],
	framePool *buffer.Pool[can.Frame],
	textPool *buffer.Pool[[]byte],
	newlines bool,
) *Adapter {
	a := &Adapter{
		frameHub:  frameHub,
		textHub:   textHub,
		framePool: framePool,
		textPool:  textPool,
		newlines:  newlines,
	}
	a.frameSide = &encodePort{a: a}
	a.textSide = &decodePort{a: a, dec: NewDecoder()}
	frameHub.Register(a.frameSide)
	textHub.Register(a.textSide)
	return a
}

// Close detaches the adapter from both hubs.
func (a *Adapter) Close() {
	a.frameHub.Unregister(a.frameSide)
	a.textHub.Unregister(a.textSide)
}

// encodePort receives frames from the frame hub and emits text lines.
type encodePort struct {
	a *Adapter
}

func (p *encodePort) Send(b *buffer.Buffer[can.Frame], priority uint) {
	line := Encode(b.Value, p.a.newlines)
	b.Release()
	p.a.textPool.AllocAsync(func(tb *buffer.Buffer[[]byte]) {
		tb.Value = line
		tb.Skip = p.a.textSide
		tb.Priority = priority
		p.a.textHub.Send(tb)
	})
	observability.RecordFrame(p.a.textHub.Name(), "out")
}

// decodePort receives byte chunks from the text hub and emits frames.
type decodePort struct {
	a   *Adapter
	dec *Decoder
}

func (p *decodePort) Send(b *buffer.Buffer[[]byte], priority uint) {
	before := p.dec.Errors()
	p.dec.Feed(b.Value, func(f can.Frame) {
		p.a.framePool.AllocAsync(func(fb *buffer.Buffer[can.Frame]) {
			fb.Value = f
			fb.Skip = p.a.frameSide
			fb.Priority = priority
			p.a.frameHub.Send(fb)
		})
		observability.RecordFrame(p.a.frameHub.Name(), "in")
	})
	for i := before; i < p.dec.Errors(); i++ {
		observability.RecordDecodeError(p.a.textHub.Name())
	}
	b.Release()
}
