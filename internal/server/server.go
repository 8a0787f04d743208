// Package server accepts GridConnect TCP clients and attaches each one as a
// port on the text hub. Everything a client sends is broadcast to every
// other attachment; everything broadcast by others is written back to the
// client socket.
package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/hub"
	"github.com/danmuck/canhub/internal/observability"
)

const (
	readChunk    = 4096
	writeTimeout = 10 * time.Second
)

// DefaultListenAddr is the conventional GridConnect hub port.
const DefaultListenAddr = ":12021"

type Config struct {
	ListenAddr string
}

func DefaultConfig() Config {
	return Config{ListenAddr: DefaultListenAddr}
}

// ConnInfo describes one attached client for the admin surface.
type ConnInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Server owns the listener and the per-connection ports.
type Server struct {
	cfg  Config
	hub  *hub.Hub[[]byte]
	pool *buffer.Pool[[]byte]

	connsMu sync.Mutex
	conns   map[net.Conn]ConnInfo

	clientCount atomic.Int64
}

func New(cfg Config, textHub *hub.Hub[[]byte], textPool *buffer.Pool[[]byte]) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	return &Server{
		cfg:   cfg,
		hub:   textHub,
		pool:  textPool,
		conns: make(map[net.Conn]ConnInfo),
	}
}

// Listen opens the TCP listener without serving yet, so callers can learn
// the bound address before starting Serve.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.cfg.ListenAddr)
}

// Serve runs the accept loop until the context is cancelled. Cancellation
// closes the listener and every tracked connection.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("gridconnect server listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Snapshot returns the currently attached clients.
func (s *Server) Snapshot() []ConnInfo {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	out := make([]ConnInfo, 0, len(s.conns))
	for _, info := range s.conns {
		out = append(out, info)
	}
	return out
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	info := ConnInfo{
		ID:          uuid.NewString(),
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
	}
	s.trackConn(conn, info)
	defer s.untrackConn(conn)

	active := s.clientCount.Add(1)
	observability.AddActiveConnections(s.cfg.ListenAddr, 1)
	log.Info().Str("conn", info.ID).Str("remote", info.RemoteAddr).
		Int64("active", active).Msg("client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		observability.AddActiveConnections(s.cfg.ListenAddr, -1)
		log.Info().Str("conn", info.ID).Str("remote", info.RemoteAddr).
			Int64("active", remaining).Msg("client disconnected")
	}()

	port := &connPort{id: info.ID, conn: conn}
	s.hub.Register(port)
	defer s.hub.Unregister(port)

	buf := make([]byte, readChunk)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			tb := s.pool.Alloc()
			tb.Value = append([]byte(nil), buf[:n]...)
			tb.Skip = port
			s.hub.Send(tb)
			observability.RecordFrame(s.hub.Name(), "in")
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) trackConn(conn net.Conn, info ConnInfo) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = info
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

// connPort writes hub broadcasts out to one client socket. A write failure
// or stall closes the connection; the read side then unregisters the port.
type connPort struct {
	id   string
	conn net.Conn
}

func (p *connPort) Send(b *buffer.Buffer[[]byte], _ uint) {
	defer b.Release()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := p.conn.Write(b.Value); err != nil {
		log.Warn().Str("conn", p.id).Err(err).Msg("client write failed")
		_ = p.conn.Close()
	}
}
