// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package api

import (
	"net/http"
	"time"

	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/models"
)

// DashboardData is the composite payload behind the main dashboard view.
type DashboardData struct {
	ComputedAt      time.Time                 `json:"computed_at"`
	Partial         bool                      `json:"partial"`
	FailedUnits     []string                  `json:"failed_units,omitempty"`
	SessionOverview models.SessionOverview    `json:"session_overview"`
	Funnel          []models.FunnelStepStat   `json:"funnel"`
	RevenueDaily    []models.RevenueRollupRow `json:"revenue_daily"`
	Anomalies       []models.AnomalyRow       `json:"anomalies"`
	TopProducts     []models.TopProduct       `json:"top_products"`
	Realtime        *models.RealtimeMetrics   `json:"realtime,omitempty"`
}

// dashboardRevenueDays bounds the revenue series on the dashboard; the
// full series stays available on the revenue endpoint.
const dashboardRevenueDays = 30

// Dashboard returns the composite dashboard payload from the published
// snapshot.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}

	revenue := snap.RevenueDaily
	if len(revenue) > dashboardRevenueDays {
		revenue = revenue[len(revenue)-dashboardRevenueDays:]
	}

	data := DashboardData{
		ComputedAt:      snap.ComputedAt,
		Partial:         snap.Partial,
		FailedUnits:     snap.FailedUnits,
		SessionOverview: snap.SessionOverview,
		Funnel:          snap.Funnel,
		RevenueDaily:    revenue,
		Anomalies:       snap.Anomalies,
		TopProducts:     snap.TopProducts,
	}

	if h.counters.Enabled() {
		m, err := h.counters.Metrics(r.Context())
		if err != nil {
			// Live counters are advisory; the dashboard still renders.
			logging.Warn().Err(err).Msg("Failed to read realtime counters")
		} else {
			data.Realtime = &m
		}
	}
	rw.Success(data)
}

// Sessions returns the sessionized view, newest window first per the
// snapshot's ordering, paginated.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}
	p, ok := h.page(rw, r)
	if !ok {
		return
	}

	sessions := snap.Sessions
	if source := r.URL.Query().Get("source"); source != "" {
		filtered := make([]models.Session, 0, len(sessions))
		for _, s := range sessions {
			if s.Source == source {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	window, meta := paginate(sessions, p)
	rw.SuccessWithPagination(window, meta)
}

// SessionOverview returns the aggregated session statistics.
func (h *Handler) SessionOverview(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}
	rw.Success(snap.SessionOverview)
}

// Funnel returns the four-step conversion funnel.
func (h *Handler) Funnel(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}
	rw.Success(snap.Funnel)
}

// Cohorts returns retention cohorts; ?by_source=true selects the
// source-split variant.
func (h *Handler) Cohorts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}
	if r.URL.Query().Get("by_source") == "true" {
		rw.Success(snap.CohortsBySource)
		return
	}
	rw.Success(snap.Cohorts)
}

// RFM returns the customer value scoring, optionally filtered by segment,
// paginated.
func (h *Handler) RFM(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}
	p, ok := h.page(rw, r)
	if !ok {
		return
	}

	records := snap.RFM
	if segment := r.URL.Query().Get("segment"); segment != "" {
		filtered := make([]models.RFMRecord, 0, len(records))
		for _, rec := range records {
			if rec.Segment == segment {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	window, meta := paginate(records, p)
	rw.SuccessWithPagination(window, meta)
}

// Rollups returns the periodic event rollup, optionally scoped to one
// event type via ?event_type=.
func (h *Handler) Rollups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}

	rows := snap.Rollups
	if eventType, present := r.URL.Query()["event_type"]; present {
		want := ""
		if len(eventType) > 0 {
			want = eventType[0]
		}
		filtered := make([]models.RollupRow, 0, len(rows))
		for _, row := range rows {
			if row.EventType == want {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	rw.Success(rows)
}

// Revenue returns the daily revenue series.
func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}
	rw.Success(snap.RevenueDaily)
}

// Anomalies returns the evaluated buckets, optionally filtered by status
// via ?status=ANOMALY.
func (h *Handler) Anomalies(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}

	rows := snap.Anomalies
	if status := r.URL.Query().Get("status"); status != "" {
		switch status {
		case models.AnomalyStatusNormal, models.AnomalyStatusWarning, models.AnomalyStatusAnomaly:
		default:
			rw.BadRequest("status must be NORMAL, WARNING or ANOMALY")
			return
		}
		filtered := make([]models.AnomalyRow, 0, len(rows))
		for _, row := range rows {
			if row.Status == status {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	rw.Success(rows)
}

// TopProducts returns the completed-order product leaderboard.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	snap := h.currentSnapshot(rw)
	if snap == nil {
		return
	}
	rw.Success(snap.TopProducts)
}

// RealtimeData is the live-counter payload.
type RealtimeData struct {
	Enabled bool                   `json:"enabled"`
	Metrics models.RealtimeMetrics `json:"metrics"`
}

// Realtime returns the Redis-backed live counters. With realtime disabled
// the metrics are zeroes and Enabled is false.
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	m, err := h.counters.Metrics(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read realtime counters")
		rw.ServiceUnavailable("Realtime counters unavailable")
		return
	}
	rw.Success(RealtimeData{Enabled: h.counters.Enabled(), Metrics: m})
}
