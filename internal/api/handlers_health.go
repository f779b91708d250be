// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package api

import (
	"net/http"
	"time"

	"github.com/metricus/metricus/internal/logging"
)

// HealthLive answers liveness probes: the process is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// HealthReady answers readiness probes: the store must be reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.st.Ping(r.Context()); err != nil {
		logging.Warn().Err(err).Msg("Readiness check failed")
		rw.ServiceUnavailable("Store unreachable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// HealthDetail is the full health report.
type HealthDetail struct {
	Status   string                `json:"status"`
	Store    HealthStoreDetail     `json:"store"`
	Realtime HealthRealtimeDetail  `json:"realtime"`
	Snapshot *HealthSnapshotDetail `json:"snapshot,omitempty"`
}

type HealthStoreDetail struct {
	Reachable bool  `json:"reachable"`
	Users     int64 `json:"users"`
	Events    int64 `json:"events"`
	Orders    int64 `json:"orders"`
}

type HealthRealtimeDetail struct {
	Enabled   bool `json:"enabled"`
	Reachable bool `json:"reachable"`
}

type HealthSnapshotDetail struct {
	ComputedAt time.Time `json:"computed_at"`
	AgeSeconds float64   `json:"age_seconds"`
	Stale      bool      `json:"stale"`
	Partial    bool      `json:"partial"`
}

// Health reports the component states in one response. Degraded
// components drop the overall status to "degraded" but the endpoint
// still answers 200; readiness is the gate, not this report.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()
	detail := HealthDetail{Status: "ok"}

	users, events, orders, err := h.st.Counts(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Health store check failed")
		detail.Status = "degraded"
	} else {
		detail.Store = HealthStoreDetail{Reachable: true, Users: users, Events: events, Orders: orders}
	}

	detail.Realtime.Enabled = h.counters.Enabled()
	if h.counters.Enabled() {
		if err := h.counters.Ping(ctx); err != nil {
			logging.Warn().Err(err).Msg("Health realtime check failed")
			detail.Status = "degraded"
		} else {
			detail.Realtime.Reachable = true
		}
	}

	if snap := h.coord.Snapshot(); snap != nil {
		now := time.Now().UTC()
		detail.Snapshot = &HealthSnapshotDetail{
			ComputedAt: snap.ComputedAt,
			AgeSeconds: snap.Age(now).Seconds(),
			Stale:      snap.Stale(now, h.cfg.Refresh.StaleAfter),
			Partial:    snap.Partial,
		}
		if detail.Snapshot.Stale {
			detail.Status = "degraded"
		}
	}

	rw.Success(detail)
}
