// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package snapshot

import (
	"time"

	"github.com/metricus/metricus/internal/models"
)

// Snapshot is one immutable, self-consistent set of derived analytics. A
// refresh cycle builds a Snapshot off to the side and publishes it with a
// single pointer swap; readers holding an older Snapshot keep a coherent
// view until they re-fetch.
type Snapshot struct {
	// ComputedAt is the cycle's reference instant; every unit in the
	// snapshot was derived relative to it.
	ComputedAt time.Time `json:"computed_at"`

	// Elapsed is the wall time the cycle spent computing.
	Elapsed time.Duration `json:"elapsed"`

	Sessions        []models.Session          `json:"sessions"`
	SessionOverview models.SessionOverview    `json:"session_overview"`
	Funnel          []models.FunnelStepStat   `json:"funnel"`
	Cohorts         []models.CohortRow        `json:"cohorts"`
	CohortsBySource []models.CohortRow        `json:"cohorts_by_source"`
	RFM             []models.RFMRecord        `json:"rfm"`
	Rollups         []models.RollupRow        `json:"rollups"`
	RevenueDaily    []models.RevenueRollupRow `json:"revenue_daily"`
	Anomalies       []models.AnomalyRow       `json:"anomalies"`
	TopProducts     []models.TopProduct       `json:"top_products"`

	// Partial is set when some units failed and the snapshot carries their
	// predecessors from the previously published snapshot instead.
	Partial     bool     `json:"partial,omitempty"`
	FailedUnits []string `json:"failed_units,omitempty"`
}

// Age returns how long ago the snapshot was computed.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.ComputedAt)
}

// Stale reports whether the snapshot exceeds the staleness threshold.
func (s *Snapshot) Stale(now time.Time, threshold time.Duration) bool {
	return threshold > 0 && s.Age(now) > threshold
}
