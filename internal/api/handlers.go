// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package api

import (
	"net/http"

	"github.com/metricus/metricus/internal/config"
	"github.com/metricus/metricus/internal/ingest"
	"github.com/metricus/metricus/internal/realtime"
	"github.com/metricus/metricus/internal/refresh"
	"github.com/metricus/metricus/internal/snapshot"
	"github.com/metricus/metricus/internal/store"
	ws "github.com/metricus/metricus/internal/websocket"
)

// Handler carries the dependencies of every endpoint. Analytics reads go
// through the coordinator's published snapshot; writes go through the
// intake; only health and order transitions touch the store directly.
type Handler struct {
	cfg      *config.Config
	coord    *refresh.Coordinator
	st       *store.Store
	intake   *ingest.Intake
	counters *realtime.Counters
	wsHub    *ws.Hub
}

// NewHandler wires the handler set.
func NewHandler(cfg *config.Config, coord *refresh.Coordinator, st *store.Store, intake *ingest.Intake, counters *realtime.Counters, hub *ws.Hub) *Handler {
	return &Handler{
		cfg:      cfg,
		coord:    coord,
		st:       st,
		intake:   intake,
		counters: counters,
		wsHub:    hub,
	}
}

// currentSnapshot fetches the published snapshot, writing a 503 when no
// refresh cycle has completed yet.
func (h *Handler) currentSnapshot(rw *ResponseWriter) *snapshot.Snapshot {
	snap := h.coord.Snapshot()
	if snap == nil {
		rw.ServiceUnavailable("No analytics snapshot available yet")
	}
	return snap
}

// page parses the request's pagination window against the API config.
func (h *Handler) page(rw *ResponseWriter, r *http.Request) (pageParams, bool) {
	p, err := parsePageParams(r, h.cfg.API.DefaultPageSize, h.cfg.API.MaxPageSize)
	if err != nil {
		rw.BadRequest(err.Error())
		return p, false
	}
	return p, true
}
