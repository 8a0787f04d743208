// Package discovery announces the GridConnect TCP service over mDNS so
// layout control software can find the hub without configuration.
package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
	"github.com/rs/zerolog/log"
)

const (
	ServiceType = "_gridconnect-can._tcp"
	Domain      = "local."
)

type Config struct {
	// Instance is the advertised service instance name.
	Instance string
	// Port is the TCP port the hub listens on.
	Port int
	// Interface restricts announcement to one interface; empty means all.
	Interface string
}

// Announcer advertises one hub service instance.
type Announcer struct {
	cfg Config

	mu     sync.Mutex
	server *zeroconf.Server
}

func NewAnnouncer(cfg Config) *Announcer {
	if cfg.Instance == "" {
		cfg.Instance = "canhub"
	}
	return &Announcer{cfg: cfg}
}

func (a *Announcer) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		log.Warn().Str("iface", a.cfg.Interface).Err(err).Msg("announce interface not found, using all")
		return nil
	}
	return []net.Interface{*iface}
}

// Announce registers the service, replacing any prior announcement.
func (a *Announcer) Announce() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txt := []string{"proto=gridconnect"}
	server, err := zeroconf.Register(
		a.cfg.Instance,
		ServiceType,
		Domain,
		a.cfg.Port,
		txt,
		a.interfaces(),
	)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", a.cfg.Instance, err)
	}
	a.server = server
	log.Info().Str("instance", a.cfg.Instance).Int("port", a.cfg.Port).Msg("mdns announcement up")
	return nil
}

// Shutdown withdraws the announcement. Safe to call without a prior
// successful Announce.
func (a *Announcer) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
