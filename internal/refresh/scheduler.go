// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/metricus/metricus/internal/logging"
)

// Scheduler drives the coordinator on a fixed interval. It is a suture
// service: Serve runs one cycle immediately, then ticks until the context
// is cancelled, and a returned error lets the supervisor restart it.
type Scheduler struct {
	coord    *Coordinator
	interval time.Duration
}

// NewScheduler builds a Scheduler over coord.
func NewScheduler(coord *Coordinator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{coord: coord, interval: interval}
}

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ageTicker := time.NewTicker(15 * time.Second)
	defer ageTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ageTicker.C:
			s.coord.UpdateSnapshotAge()
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	_, err := s.coord.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInProgress):
		logging.Debug().Msg("Scheduled refresh skipped, cycle already running")
	case errors.Is(err, context.Canceled):
	default:
		logging.Error().Err(err).Msg("Scheduled refresh failed")
	}
}

// String implements suture's service naming.
func (s *Scheduler) String() string {
	return "refresh-scheduler"
}
