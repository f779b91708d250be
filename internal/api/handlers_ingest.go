// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/metricus/metricus/internal/store"
	"github.com/metricus/metricus/internal/validation"
)

// IngestEvent accepts one behavioral event and queues it for
// persistence. The 202 carries the event ID the pipeline will store.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return
	}
	ev, err := req.ToModel()
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if err := h.intake.PublishEvent(ev); err != nil {
		rw.InternalError("Failed to queue event")
		return
	}
	rw.Accepted(map[string]any{"id": ev.ID})
}

// IngestOrder accepts one order and queues it for persistence.
func (h *Handler) IngestOrder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return
	}
	o, err := req.ToModel()
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if err := h.intake.PublishOrder(o); err != nil {
		rw.InternalError("Failed to queue order")
		return
	}
	rw.Accepted(map[string]any{"id": o.ID})
}

// TransitionOrder applies a lifecycle transition to a stored order.
// Transitions run synchronously against the store; the completed stamp is
// set exactly once, on the pending-to-completed edge.
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		rw.BadRequest("Order ID must be a UUID")
		return
	}

	var req OrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return
	}

	err = h.st.TransitionOrder(r.Context(), orderID, req.Status, time.Now().UTC())
	switch {
	case errors.Is(err, store.ErrNotFound):
		rw.NotFound("Order not found")
	case errors.Is(err, store.ErrInvalidTransition):
		rw.Conflict(err.Error())
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(map[string]any{"id": orderID, "status": req.Status})
	}
}
