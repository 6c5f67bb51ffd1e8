// Command adnsd runs the authoritative DNS server: load configuration,
// load zones, and serve queries until terminated. CLI flag parsing is
// limited to the config file path (spec.md §1 scopes flag handling out).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mirelon/adnsd/internal/config"
	"github.com/mirelon/adnsd/internal/forwarder"
	"github.com/mirelon/adnsd/internal/server"
	"github.com/mirelon/adnsd/internal/transport"
	"github.com/mirelon/adnsd/internal/zone"
)

func main() {
	configPath := flag.String("config", "adnsd.yaml", "path to the server's YAML configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("adnsd exited with error", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store := zone.NewStore(logger)
	if err := store.Reload(cfg.Zones.Directory); err != nil {
		// Per-zone failures are already isolated inside Reload (a bad
		// master file is skipped, not fatal to the others); this is
		// logged rather than treated as a startup failure.
		logger.Warn("some zones failed to load", zap.Error(err))
	}

	var fwd *forwarder.Forwarder
	if cfg.Forward.Enabled() {
		fwd = forwarder.New(cfg.Forward.Upstream, cfg.Forward.Timeout(), logger)
	}

	srv := server.New(cfg, store, fwd, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("adnsd starting",
		zap.String("protocol", string(cfg.Protocol)),
		zap.Int("port", cfg.Port),
		zap.String("zones", cfg.Zones.Directory),
		zap.Bool("forwarding", cfg.Forward.Enabled()),
		zap.String("kernel", transport.KernelVersion()),
	)

	return srv.Run(ctx)
}
