package olcb

import (
	"github.com/rs/zerolog/log"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/dispatch"
	"github.com/danmuck/canhub/internal/exec"
	"github.com/danmuck/canhub/internal/hub"
)

// Interface binds the OpenLCB message layer to one CAN frame hub. Inbound
// frames are routed by identifier through the frame dispatcher; MTI frames
// are reassembled and handed to the message dispatcher. Outbound messages go
// through a fixed set of write flows that fragment onto the hub.
type Interface struct {
	hub       *hub.Hub[can.Frame]
	framePool *buffer.Pool[can.Frame]
	msgPool   *buffer.Pool[Message]
	frames    *dispatch.Dispatcher[can.Frame]
	messages  *dispatch.Dispatcher[Message]
	aliases   *AliasMap
	port      *framePort
	writers   chan *WriteFlow
}

// New wires an interface to the hub and registers its inbound port. writers
// bounds how many outbound messages can be in flight at once.
func New(e *exec.Executor, h *hub.Hub[can.Frame], framePool *buffer.Pool[can.Frame], msgPool *buffer.Pool[Message], writers int) *Interface {
	if writers <= 0 {
		panic("olcb: interface needs at least one write flow")
	}
	ifc := &Interface{
		hub:       h,
		framePool: framePool,
		msgPool:   msgPool,
		frames:    dispatch.New[can.Frame](),
		messages:  dispatch.New[Message](),
		aliases:   NewAliasMap(),
		writers:   make(chan *WriteFlow, writers),
	}
	ifc.port = &framePort{ifc: ifc}
	ifc.frames.Register(messageFrameBits, frameTypeMask, newReassembler(ifc))
	h.Register(ifc.port)
	for i := 0; i < writers; i++ {
		ifc.writers <- &WriteFlow{ifc: ifc, flow: exec.NewFlow(e)}
	}
	return ifc
}

// Close detaches the interface from its hub. In-flight writes drain on
// their own; new inbound frames stop arriving.
func (ifc *Interface) Close() {
	ifc.hub.Unregister(ifc.port)
}

// Aliases exposes the node id to alias map.
func (ifc *Interface) Aliases() *AliasMap { return ifc.aliases }

// Frames exposes the raw frame dispatcher, keyed by 29-bit identifier.
func (ifc *Interface) Frames() *dispatch.Dispatcher[can.Frame] { return ifc.frames }

// Messages exposes the message dispatcher, keyed by MTI.
func (ifc *Interface) Messages() *dispatch.Dispatcher[Message] { return ifc.messages }

// RegisterFrameHandler routes inbound frames whose identifier matches
// id&mask to the handler.
func (ifc *Interface) RegisterFrameHandler(id, mask uint32, h dispatch.Handler[can.Frame]) {
	ifc.frames.Register(id, mask, h)
}

// RegisterMessageHandler routes reassembled messages whose MTI matches
// mti&mask to the handler.
func (ifc *Interface) RegisterMessageHandler(mti MTI, mask uint32, h dispatch.Handler[Message]) {
	ifc.messages.Register(uint32(mti), mask, h)
}

// Write acquires a write flow, blocking the caller until one is free, and
// starts emitting the message. done fires after the last frame has been
// handed to the hub; for declined or cancelled writes it fires without any
// frame being emitted. A global message with more than 8 payload bytes is a
// caller bug.
func (ifc *Interface) Write(msg Message, done exec.Notifiable) *WriteFlow {
	checkWritable(msg)
	wf := <-ifc.writers
	wf.begin(msg, done)
	return wf
}

// TryWrite starts the message only if a write flow is free right now.
func (ifc *Interface) TryWrite(msg Message, done exec.Notifiable) (*WriteFlow, bool) {
	checkWritable(msg)
	select {
	case wf := <-ifc.writers:
		wf.begin(msg, done)
		return wf, true
	default:
		return nil, false
	}
}

func checkWritable(msg Message) {
	if !msg.MTI.Addressed() && !msg.MTI.DatagramClass() && len(msg.Payload) > 8 {
		panic("olcb: global message payload exceeds one frame")
	}
}

// deliver hands a reassembled or looped-back message to the message
// dispatcher, as soon as a message buffer is available.
func (ifc *Interface) deliver(m Message) {
	ifc.msgPool.AllocAsync(func(mb *buffer.Buffer[Message]) {
		mb.Value = m
		ifc.messages.Dispatch(uint32(m.MTI), mb, nil)
	})
}

// framePort receives every broadcast from the hub and feeds the frame
// dispatcher. Outbound frames carry this port as their skip tag so the
// interface never hears its own writes back.
type framePort struct {
	ifc *Interface
}

func (p *framePort) Send(b *buffer.Buffer[can.Frame], _ uint) {
	if !b.Value.Extended {
		// Standard frames carry no OpenLCB traffic.
		log.Debug().Uint32("id", b.Value.ID).Msg("dropping standard frame")
		b.Release()
		return
	}
	p.ifc.frames.Dispatch(b.Value.ID, b, nil)
}
