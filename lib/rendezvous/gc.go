// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Tocutoeltuco/chessagon/lib/bucket"
	"github.com/Tocutoeltuco/chessagon/lib/clock"
)

// GC sweeps expired records out of the store. Expiry is decided from
// object metadata alone, so a sweep never reads record bodies.
//
// An unbound identity dies when its own kill_at deadline passes. A
// room dies once its most overdue peer has missed its poll deadline by
// the grace period, and takes the identities of both its peers with it.
type GC struct {
	store bucket.Store
	clock clock.Clock
	log   *slog.Logger
}

// NewGC returns a sweeper over the given store.
func NewGC(store bucket.Store, clk clock.Clock, log *slog.Logger) *GC {
	return &GC{store: store, clock: clk, log: log}
}

// Sweep lists the store once and deletes every expired record. A
// record with undecodable metadata is logged and left alone rather
// than aborting the sweep; deletion failures are likewise logged and
// skipped, since the next sweep will retry them.
func (g *GC) Sweep(ctx context.Context) error {
	entries, err := g.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing store: %w", err)
	}

	var doomed []string
	for _, entry := range entries {
		keys, err := g.keysToKill(entry)
		if err != nil {
			g.log.Error("skipping undecodable record", "key", entry.Key, "error", err)
			continue
		}
		doomed = append(doomed, keys...)
	}

	deleted := 0
	for _, key := range doomed {
		if err := g.store.Delete(ctx, key); err != nil {
			g.log.Error("deleting expired record", "key", key, "error", err)
			continue
		}
		deleted++
	}

	if len(doomed) > 0 {
		g.log.Info("sweep finished", "expired", len(doomed), "deleted", deleted)
	}
	return nil
}

// keysToKill decides, from one listing entry, which storage keys are
// expired. A room entry expands to the room plus its bound
// identities.
func (g *GC) keysToKill(entry bucket.Entry) ([]string, error) {
	now := g.clock.Now()

	switch {
	case strings.HasPrefix(entry.Key, authType.Prefix+":"):
		meta := authType.Blank()
		if err := meta.DecodeMetadata(entry.Metadata); err != nil {
			return nil, err
		}
		if meta.KillAt.IsZero() || now.Before(meta.KillAt) {
			return nil, nil
		}
		return []string{entry.Key}, nil

	case strings.HasPrefix(entry.Key, roomType.Prefix+":"):
		meta := roomType.Blank()
		if err := meta.DecodeMetadata(entry.Metadata); err != nil {
			return nil, err
		}
		if now.Before(roomKillAt(meta)) {
			return nil, nil
		}
		keys := []string{entry.Key, authType.StorageKey(meta.Offer.Token)}
		if meta.Answer != nil {
			keys = append(keys, authType.StorageKey(meta.Answer.Token))
		}
		return keys, nil

	default:
		return nil, fmt.Errorf("unknown key prefix")
	}
}

// Run sweeps at the given interval until ctx is canceled.
func (g *GC) Run(ctx context.Context, interval time.Duration) {
	ticker := g.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.Sweep(ctx); err != nil {
				g.log.Error("sweep failed", "error", err)
			}
		}
	}
}
