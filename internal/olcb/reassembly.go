package olcb

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/exec"
)

// reasmKey identifies one in-progress multi-frame transfer. One source may
// interleave transfers to different destinations or with different MTIs.
type reasmKey struct {
	src Alias
	dst Alias
	mti MTI
}

// reassembler is the frame handler for MTI frames: global frames become
// messages immediately, addressed frames accumulate by continuation marker
// until the last fragment arrives. A fragment that does not fit an open
// transfer is dropped and the partial transfer discarded.
type reassembler struct {
	ifc *Interface

	mu   sync.Mutex
	open map[reasmKey][]byte
}

func newReassembler(ifc *Interface) *reassembler {
	return &reassembler{ifc: ifc, open: make(map[reasmKey][]byte)}
}

func (r *reassembler) Handle(b *buffer.Buffer[can.Frame], done exec.Notifiable) {
	f := b.Value
	mti := FrameMTI(f.ID)
	src := FrameSource(f.ID)
	done.Notify()

	if !mti.Addressed() {
		payload := append([]byte(nil), f.Data[:f.Len]...)
		r.ifc.deliver(Message{
			MTI:      mti,
			Src:      r.ifc.aliases.NodeFor(src),
			SrcAlias: src,
			Payload:  payload,
		})
		return
	}

	if f.Len < 2 {
		log.Warn().Uint32("id", f.ID).Msg("addressed frame without destination bytes")
		return
	}
	flag := f.Data[0] >> 4
	dst := Alias(f.Data[0]&0xF)<<8 | Alias(f.Data[1])
	chunk := f.Data[2:f.Len]
	key := reasmKey{src: src, dst: dst, mti: mti}

	r.mu.Lock()
	switch flag {
	case fragOnly:
		// A fresh single-frame message supersedes any stale partial.
		delete(r.open, key)
		r.mu.Unlock()
		r.complete(key, append([]byte(nil), chunk...))
		return
	case fragFirst:
		r.open[key] = append([]byte(nil), chunk...)
	case fragMiddle:
		if p, ok := r.open[key]; ok {
			r.open[key] = append(p, chunk...)
		} else {
			r.mu.Unlock()
			log.Warn().Uint32("id", f.ID).Msg("middle fragment without open transfer")
			return
		}
	case fragLast:
		p, ok := r.open[key]
		if !ok {
			r.mu.Unlock()
			log.Warn().Uint32("id", f.ID).Msg("last fragment without open transfer")
			return
		}
		delete(r.open, key)
		r.mu.Unlock()
		r.complete(key, append(p, chunk...))
		return
	}
	r.mu.Unlock()
}

func (r *reassembler) complete(key reasmKey, payload []byte) {
	r.ifc.deliver(Message{
		MTI:      key.mti,
		Src:      r.ifc.aliases.NodeFor(key.src),
		SrcAlias: key.src,
		Dst:      r.ifc.aliases.NodeFor(key.dst),
		DstAlias: key.dst,
		Payload:  payload,
	})
}
