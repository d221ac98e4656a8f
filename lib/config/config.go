// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the rendezvous
// broker.
//
// Configuration is loaded from a single YAML file specified by:
//   - CHESSAGON_CONFIG environment variable, or
//   - --config flag passed to the command
//
// The config file is the single source of truth once named; other
// environment variables do not override its values. A broker started
// without a config file runs on defaults, which suit a single-node
// development setup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	// BackendDir persists records under a directory. The default.
	BackendDir = "dir"
	// BackendMemory keeps records in process memory. Every restart
	// forgets all rooms; useful for tests and local experiments.
	BackendMemory = "memory"
)

// Config is the broker configuration.
type Config struct {
	// Listen is the TCP address the HTTP server binds.
	Listen string `yaml:"listen"`

	// Store configures where records are kept.
	Store StoreConfig `yaml:"store"`

	// GCInterval is how often the sweep runs, as a Go duration
	// string. Must be positive and no longer than the 20-second
	// grace period, or expired records would outlive their deadline
	// by more than one period.
	GCInterval string `yaml:"gc_interval"`

	// LogLevel is the minimum level emitted: debug, info, warn or
	// error.
	LogLevel string `yaml:"log_level"`
}

// StoreConfig configures the record store.
type StoreConfig struct {
	// Backend selects the store implementation.
	Backend string `yaml:"backend"`

	// Dir is the root directory for the dir backend.
	Dir string `yaml:"dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen: ":8571",
		Store: StoreConfig{
			Backend: BackendDir,
			Dir:     "./rendezvous-data",
		},
		GCInterval: "10s",
		LogLevel:   "info",
	}
}

// Load loads configuration from the CHESSAGON_CONFIG environment
// variable. Fails if the variable is not set; callers that want
// defaults when no file is named should check the variable first.
func Load() (*Config, error) {
	path := os.Getenv("CHESSAGON_CONFIG")
	if path == "" {
		return nil, errors.New("CHESSAGON_CONFIG environment variable not set; " +
			"set it to the path of your config file, or use the --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is empty")
	}

	switch c.Store.Backend {
	case BackendDir:
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the dir backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	interval, err := c.ParseGCInterval()
	if err != nil {
		return err
	}
	if interval <= 0 {
		return errors.New("gc_interval must be positive")
	}
	if interval > 20*time.Second {
		return errors.New("gc_interval exceeds the record grace period")
	}

	if _, err := c.ParseLogLevel(); err != nil {
		return err
	}
	return nil
}

// ParseGCInterval returns the sweep interval as a duration.
func (c *Config) ParseGCInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.GCInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid gc_interval %q: %w", c.GCInterval, err)
	}
	return interval, nil
}

// ParseLogLevel returns the configured slog level.
func (c *Config) ParseLogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
