// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package snapshot

import (
	"context"
	"time"

	"github.com/metricus/metricus/internal/logging"
)

// GC reclaims Badger value-log space on a fixed interval. Expired history
// entries free their space only after a GC pass, so the store grows
// unbounded without one. Runs as a suture service.
type GC struct {
	store    *BadgerStore
	interval time.Duration
}

// NewGC builds a GC over the snapshot store.
func NewGC(store *BadgerStore, interval time.Duration) *GC {
	if interval <= 0 {
		interval = time.Hour
	}
	return &GC{store: store, interval: interval}
}

// Serve implements suture.Service.
func (g *GC) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.run()
		}
	}
}

// run repeats value-log GC until Badger reports nothing left to rewrite.
// In-memory stores have no value log and return an error immediately.
func (g *GC) run() {
	passes := 0
	for {
		if err := g.store.db.RunValueLogGC(0.5); err != nil {
			break
		}
		passes++
	}
	if passes > 0 {
		logging.Debug().Int("passes", passes).Msg("Snapshot store garbage collected")
	}
}

// String implements suture's service naming.
func (g *GC) String() string {
	return "snapshot-gc"
}
