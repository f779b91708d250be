// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package api

import (
	"errors"
	"net/http"

	"github.com/metricus/metricus/internal/refresh"
)

// RefreshTriggerResult is the response body of a manual refresh: one
// status per requested structure plus the coordinator report.
type RefreshTriggerResult struct {
	Units  map[string]string    `json:"units"`
	Status refresh.StatusReport `json:"status"`
}

// TriggerRefresh recomputes the derived structures named by the repeated
// `structure` query parameter, or all of them when none is given. Per-
// structure outcomes ("published", "failed:<reason>", "in-progress") are
// returned even when some units fail; only an unknown structure name, an
// exhausted trigger budget or a fully busy coordinator map to error
// responses.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	structures := r.URL.Query()["structure"]
	results, err := h.coord.TriggerManual(r.Context(), structures...)
	switch {
	case errors.Is(err, refresh.ErrRateLimited):
		rw.TooManyRequests("Manual refresh budget exhausted, retry later")
	case errors.Is(err, refresh.ErrUnknownUnit):
		rw.BadRequest(err.Error())
	case errors.Is(err, refresh.ErrRefreshInProgress):
		rw.Conflict("Requested structures are already refreshing")
	default:
		rw.Success(RefreshTriggerResult{Units: results, Status: h.coord.Status()})
	}
}

// RefreshStatus reports the coordinator state and published snapshot age.
func (h *Handler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.coord.Status())
}
