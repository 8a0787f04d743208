package device

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/hub"
	"github.com/danmuck/canhub/internal/observability"
)

const streamChunk = 1024

// Stream attaches a character device speaking GridConnect (USB-CAN adapter,
// serial bridge, pty) to the text hub, byte for byte. Line assembly and
// validation happen in the gridconnect adapter like for any other port.
type Stream struct {
	path string
	hub  *hub.Hub[[]byte]
	pool *buffer.Pool[[]byte]
	f    *os.File
	port *streamPort
}

// OpenStream opens the device read-write and starts relaying.
func OpenStream(path string, textHub *hub.Hub[[]byte], textPool *buffer.Pool[[]byte]) (*Stream, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", path, err)
	}
	s := &Stream{path: path, hub: textHub, pool: textPool, f: f}
	s.port = &streamPort{path: path, f: f}
	textHub.Register(s.port)
	go s.readLoop()
	log.Info().Str("device", path).Msg("device stream attached")
	return s, nil
}

// Close detaches the stream and closes the device.
func (s *Stream) Close() error {
	s.hub.Unregister(s.port)
	return s.f.Close()
}

func (s *Stream) readLoop() {
	buf := make([]byte, streamChunk)
	for {
		n, err := s.f.Read(buf)
		if n > 0 {
			tb := s.pool.Alloc()
			tb.Value = append([]byte(nil), buf[:n]...)
			tb.Skip = s.port
			s.hub.Send(tb)
			observability.RecordFrame(s.hub.Name(), "in")
		}
		if err != nil {
			if err != io.EOF {
				log.Warn().Str("device", s.path).Err(err).Msg("device read failed")
			}
			s.hub.Unregister(s.port)
			return
		}
	}
}

// streamPort writes hub broadcasts out to the device.
type streamPort struct {
	path string
	f    *os.File
}

func (p *streamPort) Send(b *buffer.Buffer[[]byte], _ uint) {
	defer b.Release()
	if _, err := p.f.Write(b.Value); err != nil {
		log.Warn().Str("device", p.path).Err(err).Msg("device write failed")
	}
}
