// canhub bridges GridConnect TCP clients and an optional local CAN device
// into one logical bus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/capture"
	"github.com/danmuck/canhub/internal/device"
	"github.com/danmuck/canhub/internal/discovery"
	"github.com/danmuck/canhub/internal/exec"
	"github.com/danmuck/canhub/internal/gridconnect"
	"github.com/danmuck/canhub/internal/hub"
	"github.com/danmuck/canhub/internal/logging"
	"github.com/danmuck/canhub/internal/observability"
	"github.com/danmuck/canhub/internal/server"
)

const version = "0.1.0"

var startedAt = time.Now()

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("canhub", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	port := fs.Int("p", 12021, "TCP port to listen on")
	devicePath := fs.String("d", "", "GridConnect character device to attach (e.g. /dev/ttyUSB0)")
	confPath := fs.String("c", "", "TOML configuration file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "canhub: unexpected argument %q\n", fs.Arg(0))
		fs.Usage()
		return 1
	}

	logging.ConfigureRuntime()
	observability.RegisterMetrics()

	cfg := defaultSettings()
	if *confPath != "" {
		var err error
		cfg, err = loadSettings(*confPath)
		if err != nil {
			log.Error().Err(err).Msg("configuration invalid")
			return 1
		}
	}
	// Flags given on the command line win over the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.ListenAddr = fmt.Sprintf(":%d", *port)
		case "d":
			cfg.DevicePath = *devicePath
		}
	})

	e := exec.NewExecutor("canhub")
	defer e.Shutdown()
	framePool := buffer.NewPool[can.Frame](cfg.FramePool)
	textPool := buffer.NewPool[[]byte](cfg.TextPool)
	frameHub := hub.New[can.Frame](e, "can0")
	textHub := hub.New[[]byte](e, "gc0")

	adapter := gridconnect.NewAdapter(frameHub, textHub, framePool, textPool, cfg.Newlines)
	defer adapter.Close()

	if cfg.PrintPackets {
		printer := gridconnect.NewPacketPrinter(frameHub, log.Logger)
		defer printer.Close()
	}

	if cfg.CapturePath != "" {
		fc, err := capture.NewFileCapture(cfg.CapturePath, frameHub.Name())
		if err != nil {
			log.Error().Err(err).Msg("capture open failed")
			return 1
		}
		frameHub.Register(fc)
		defer fc.Close()
		defer frameHub.Unregister(fc)
	}

	if cfg.DevicePath != "" {
		stream, err := device.OpenStream(cfg.DevicePath, textHub, textPool)
		if err != nil {
			log.Error().Err(err).Msg("device attach failed")
			return 1
		}
		defer stream.Close()
	}

	srv := server.New(server.Config{ListenAddr: cfg.ListenAddr}, textHub, textPool)
	ln, err := srv.Listen()
	if err != nil {
		log.Error().Err(err).Msg("listen failed")
		return 1
	}

	if cfg.MDNS {
		tcpAddr, ok := ln.Addr().(*net.TCPAddr)
		if ok {
			ann := discovery.NewAnnouncer(discovery.Config{
				Instance: cfg.MDNSInstance,
				Port:     tcpAddr.Port,
			})
			if err := ann.Announce(); err != nil {
				log.Warn().Err(err).Msg("mdns announce failed")
			}
			defer ann.Shutdown()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go samplePools(ctx, framePool, textPool)

	if cfg.AdminAddr != "" {
		adminSrv := &http.Server{Addr: cfg.AdminAddr, Handler: newAdminRouter(cfg, srv)}
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("admin server failed")
			}
		}()
		defer func() { _ = adminSrv.Shutdown(context.Background()) }()
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin api up")
	}

	if err := srv.Serve(ctx, ln); err != nil {
		log.Error().Err(err).Msg("server failed")
		return 1
	}
	return 0
}

// samplePools publishes pool occupancy gauges until ctx is cancelled.
func samplePools(ctx context.Context, frames *buffer.Pool[can.Frame], text *buffer.Pool[[]byte]) {
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()
	for {
		recordPoolUsage(frames, text)
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func recordPoolUsage(frames *buffer.Pool[can.Frame], text *buffer.Pool[[]byte]) {
	observability.SetPoolInUse("frames", frames.InUse())
	observability.SetPoolInUse("text", text.InUse())
}
