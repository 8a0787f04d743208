package gridconnect

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/hub"
)

// PacketPrinter logs every frame crossing a hub in GridConnect rendering.
// Attach it while debugging a bus; it never suppresses or alters traffic.
type PacketPrinter struct {
	h      *hub.Hub[can.Frame]
	logger zerolog.Logger
}

func NewPacketPrinter(h *hub.Hub[can.Frame], logger zerolog.Logger) *PacketPrinter {
	p := &PacketPrinter{h: h, logger: logger}
	h.Register(p)
	return p
}

func (p *PacketPrinter) Close() {
	p.h.Unregister(p)
}

func (p *PacketPrinter) Send(b *buffer.Buffer[can.Frame], _ uint) {
	p.logger.Info().
		Str("hub", p.h.Name()).
		Str("packet", string(Encode(b.Value, false))).
		Msg("packet")
	b.Release()
}
