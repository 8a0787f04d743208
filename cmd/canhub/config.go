package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type settings struct {
	ListenAddr   string
	DevicePath   string
	Newlines     bool
	PrintPackets bool
	FramePool    int
	TextPool     int
	AdminAddr    string
	CORSOrigins  []string
	CapturePath  string
	MDNS         bool
	MDNSInstance string
}

func defaultSettings() settings {
	return settings{
		ListenAddr:   ":12021",
		FramePool:    64,
		TextPool:     64,
		MDNSInstance: "canhub",
	}
}

type fileConfig struct {
	ListenAddr   string   `toml:"listen_addr"`
	Device       string   `toml:"device"`
	Newlines     bool     `toml:"newlines"`
	PrintPackets bool     `toml:"print_packets"`
	FramePool    int      `toml:"frame_pool"`
	TextPool     int      `toml:"text_pool"`
	AdminAddr    string   `toml:"admin_addr"`
	CORSOrigins  []string `toml:"cors_origins"`
	CapturePath  string   `toml:"capture_path"`
	MDNS         bool     `toml:"mdns"`
	MDNSInstance string   `toml:"mdns_instance"`
}

func loadSettings(path string) (settings, error) {
	cfg := defaultSettings()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, fmt.Errorf("load hub config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		if v := strings.TrimSpace(raw.ListenAddr); v != "" {
			cfg.ListenAddr = v
		}
	}
	if meta.IsDefined("device") {
		cfg.DevicePath = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("newlines") {
		cfg.Newlines = raw.Newlines
	}
	if meta.IsDefined("print_packets") {
		cfg.PrintPackets = raw.PrintPackets
	}
	if meta.IsDefined("frame_pool") {
		if raw.FramePool <= 0 {
			return settings{}, fmt.Errorf("frame_pool must be positive, got %d", raw.FramePool)
		}
		cfg.FramePool = raw.FramePool
	}
	if meta.IsDefined("text_pool") {
		if raw.TextPool <= 0 {
			return settings{}, fmt.Errorf("text_pool must be positive, got %d", raw.TextPool)
		}
		cfg.TextPool = raw.TextPool
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}
	if meta.IsDefined("capture_path") {
		cfg.CapturePath = strings.TrimSpace(raw.CapturePath)
	}
	if meta.IsDefined("mdns") {
		cfg.MDNS = raw.MDNS
	}
	if meta.IsDefined("mdns_instance") {
		if v := strings.TrimSpace(raw.MDNSInstance); v != "" {
			cfg.MDNSInstance = v
		}
	}

	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
