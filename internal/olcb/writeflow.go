package olcb

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/exec"
)

// Payload bytes carried per addressed frame after the two destination bytes.
const addressedChunk = 6

// WriteFlow turns one outbound message into CAN frames. Global messages fit
// a single frame and are additionally looped back to the local message
// dispatcher. Addressed messages fragment into first/middle/last frames of
// addressedChunk payload bytes each; a payload that is an exact multiple
// still gets an empty last frame so the receiver can close the transfer.
// Datagram and stream class MTIs are declined without emitting anything.
type WriteFlow struct {
	ifc  *Interface
	flow *exec.Flow

	mu        sync.Mutex
	msg       Message
	done      exec.Notifiable
	offset    int
	started   bool
	cancelled bool
	ticket    *buffer.Ticket[can.Frame]
	buf       *buffer.Buffer[can.Frame]

	srcAlias Alias
	dstAlias Alias
}

func (wf *WriteFlow) begin(msg Message, done exec.Notifiable) {
	wf.mu.Lock()
	wf.msg = msg
	wf.done = done
	wf.offset = 0
	wf.started = false
	wf.cancelled = false
	wf.ticket = nil
	wf.buf = nil
	wf.mu.Unlock()
	wf.flow.Start(wf.stateClassify)
}

// Cancel withdraws a write that has not emitted its first frame yet. It
// reports false once emission began; the write then runs to completion. A
// successful cancel emits nothing but still notifies done.
func (wf *WriteFlow) Cancel() bool {
	wf.mu.Lock()
	if wf.started || wf.cancelled {
		wf.mu.Unlock()
		return false
	}
	wf.cancelled = true
	t := wf.ticket
	wf.mu.Unlock()

	if t != nil {
		wf.ifc.framePool.Cancel(t)
	}
	wf.flow.Notify()
	return true
}

func (wf *WriteFlow) stateClassify() exec.StateFn {
	wf.mu.Lock()
	if wf.cancelled {
		wf.mu.Unlock()
		return wf.stateFinish
	}
	m := wf.msg
	wf.mu.Unlock()

	if m.MTI.DatagramClass() {
		// Datagrams and streams travel in their own frame types.
		log.Debug().Uint16("mti", uint16(m.MTI)).Msg("declining datagram-class write")
		return wf.stateFinish
	}
	wf.srcAlias = wf.ifc.aliases.AliasFor(m.Src)
	if m.MTI.Addressed() {
		wf.dstAlias = wf.ifc.aliases.AliasFor(m.Dst)
	}
	return wf.stateAlloc
}

func (wf *WriteFlow) stateAlloc() exec.StateFn {
	// Record the resume state before requesting: fulfillment may run on
	// whichever goroutine frees a slot.
	next := wf.flow.Suspend(wf.stateEmit)
	t := wf.ifc.framePool.AllocAsync(func(b *buffer.Buffer[can.Frame]) {
		wf.mu.Lock()
		wf.buf = b
		wf.mu.Unlock()
		wf.flow.Notify()
	})
	wf.mu.Lock()
	wf.ticket = t
	wf.mu.Unlock()
	return next
}

func (wf *WriteFlow) stateEmit() exec.StateFn {
	wf.mu.Lock()
	b := wf.buf
	wf.buf = nil
	wf.ticket = nil
	if wf.cancelled {
		wf.mu.Unlock()
		if b != nil {
			b.Release()
		}
		return wf.stateFinish
	}
	if b == nil {
		// Allocation still pending; spurious wakeup.
		wf.mu.Unlock()
		return wf.flow.Suspend(wf.stateEmit)
	}
	// Mark started in the same critical section as the cancel check: from
	// here the frame goes out, so a Cancel racing with emission must report
	// false rather than orphan a first fragment on the wire.
	wf.started = true
	m := wf.msg
	offset := wf.offset
	wf.mu.Unlock()

	f := &b.Value
	*f = can.Frame{ID: MessageFrameID(m.MTI, wf.srcAlias), Extended: true}
	more := false
	if !m.MTI.Addressed() {
		f.Len = uint8(copy(f.Data[:], m.Payload))
	} else {
		remaining := len(m.Payload) - offset
		var flag byte
		var take int
		switch {
		case offset == 0 && remaining <= addressedChunk:
			flag, take = fragOnly, remaining
		case offset == 0:
			flag, take = fragFirst, addressedChunk
		case remaining >= addressedChunk:
			flag, take = fragMiddle, addressedChunk
		default:
			flag, take = fragLast, remaining
		}
		f.Data[0], f.Data[1] = destBytes(wf.dstAlias, flag)
		copy(f.Data[2:], m.Payload[offset:offset+take])
		f.Len = uint8(2 + take)
		offset += take
		more = flag == fragFirst || flag == fragMiddle
	}

	b.Skip = wf.ifc.port
	b.Priority = 0
	wf.mu.Lock()
	wf.offset = offset
	wf.mu.Unlock()
	wf.ifc.hub.Send(b)

	if more {
		return wf.stateAlloc
	}
	if !m.MTI.Addressed() {
		return wf.stateLoopback
	}
	return wf.stateFinish
}

// stateLoopback hands a global message to the local dispatcher as well, so
// handlers on this node see it like any other participant on the bus.
func (wf *WriteFlow) stateLoopback() exec.StateFn {
	wf.mu.Lock()
	m := wf.msg
	wf.mu.Unlock()
	m.SrcAlias = wf.srcAlias
	wf.ifc.deliver(m)
	return wf.stateFinish
}

func (wf *WriteFlow) stateFinish() exec.StateFn {
	wf.mu.Lock()
	done := wf.done
	wf.done = nil
	wf.msg = Message{}
	wf.mu.Unlock()

	// Exit before the flow goes back on the channel: a waiting Write may
	// restart it immediately, and a late Exit would wipe the new state.
	next := wf.flow.Exit()
	if done != nil {
		done.Notify()
	}
	wf.ifc.writers <- wf
	return next
}
