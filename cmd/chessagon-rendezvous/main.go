// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// chessagon-rendezvous is the HTTP broker that pairs two Chessagon
// players for a peer-to-peer WebRTC game. It exposes two endpoints,
// POST /ident and POST /poll, keeps all session state in an object
// store, and sweeps expired rooms and identities in the background.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Tocutoeltuco/chessagon/lib/bucket"
	"github.com/Tocutoeltuco/chessagon/lib/clock"
	"github.com/Tocutoeltuco/chessagon/lib/config"
	"github.com/Tocutoeltuco/chessagon/lib/process"
	"github.com/Tocutoeltuco/chessagon/lib/rendezvous"
	"github.com/Tocutoeltuco/chessagon/lib/service"
	"github.com/Tocutoeltuco/chessagon/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var listen string
	var storeDir string
	var gcInterval string
	var showVersion bool

	flags := pflag.NewFlagSet("chessagon-rendezvous", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to the YAML config file")
	flags.StringVar(&listen, "listen", "", "TCP listen address (overrides the config file)")
	flags.StringVar(&storeDir, "store-dir", "", "record store directory (overrides the config file)")
	flags.StringVar(&gcInterval, "gc-interval", "", "sweep cadence, e.g. 10s (overrides the config file)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print("chessagon-rendezvous")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, listen, storeDir, gcInterval)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := cfg.ParseLogLevel()
	if err != nil {
		return err
	}
	logger := service.NewLogger(level)
	slog.SetDefault(logger)

	sweepInterval, err := cfg.ParseGCInterval()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	broker := rendezvous.New(store, clk, logger)
	gc := rendezvous.NewGC(store, clk, logger)
	go gc.Run(ctx, sweepInterval)

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.Listen,
		Handler: service.NewHandler(broker, logger),
		Logger:  logger,
	})

	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	select {
	case <-httpServer.Ready():
		logger.Info("rendezvous broker running",
			"address", httpServer.Addr().String(),
			"store", cfg.Store.Backend,
			"gc_interval", sweepInterval.String(),
			"version", version.Info(),
		)
	case err := <-httpDone:
		return err
	}

	return <-httpDone
}

// applyOverrides layers non-empty flag values over the loaded config.
// A --store-dir override also forces the dir backend.
func applyOverrides(cfg *config.Config, listen, storeDir, gcInterval string) {
	if listen != "" {
		cfg.Listen = listen
	}
	if storeDir != "" {
		cfg.Store.Backend = config.BackendDir
		cfg.Store.Dir = storeDir
	}
	if gcInterval != "" {
		cfg.GCInterval = gcInterval
	}
}

// loadConfig resolves the configuration source: the --config flag,
// then CHESSAGON_CONFIG, then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("CHESSAGON_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// openStore builds the record store the config names.
func openStore(cfg *config.Config) (bucket.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendDir:
		return bucket.NewDir(cfg.Store.Dir)
	case config.BackendMemory:
		return bucket.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
