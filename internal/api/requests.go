// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/metricus/metricus/internal/models"
)

// maxBodyBytes bounds ingest payloads.
const maxBodyBytes = 1 << 20 // 1 MB

// EventRequest is the intake payload for one behavioral event.
type EventRequest struct {
	ID         string            `json:"id" validate:"omitempty,uuid"`
	UserID     string            `json:"user_id" validate:"omitempty,uuid"`
	SessionKey string            `json:"session_key" validate:"required,min=1,max=128"`
	EventType  string            `json:"event_type" validate:"required,min=1,max=64"`
	PagePath   string            `json:"page_path" validate:"max=2048"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at" validate:"required"`
}

// ToModel converts the request to the storage model, minting an ID when
// the client supplied none.
func (r *EventRequest) ToModel() (*models.Event, error) {
	ev := &models.Event{
		SessionKey: r.SessionKey,
		EventType:  r.EventType,
		PagePath:   r.PagePath,
		Metadata:   r.Metadata,
		CreatedAt:  r.CreatedAt,
	}
	if r.ID == "" {
		ev.ID = uuid.New()
	} else {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid event id: %w", err)
		}
		ev.ID = id
	}
	if r.UserID != "" {
		uid, err := uuid.Parse(r.UserID)
		if err != nil {
			return nil, fmt.Errorf("invalid user id: %w", err)
		}
		ev.UserID = &uid
	}
	return ev, nil
}

// OrderRequest is the intake payload for one order.
type OrderRequest struct {
	ID          string            `json:"id" validate:"omitempty,uuid"`
	UserID      string            `json:"user_id" validate:"required,uuid"`
	OrderNumber string            `json:"order_number" validate:"required,min=1,max=64"`
	Status      string            `json:"status" validate:"required,oneof=pending completed cancelled refunded"`
	Amount      string            `json:"amount" validate:"required"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	ItemsCount  int               `json:"items_count" validate:"gte=0"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at" validate:"required"`
}

// ToModel converts the request to the storage model. Amount travels as a
// string to keep decimal precision intact through JSON.
func (r *OrderRequest) ToModel() (*models.Order, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative", r.Amount)
	}
	o := &models.Order{
		OrderNumber: r.OrderNumber,
		Status:      r.Status,
		Amount:      amount,
		Currency:    r.Currency,
		ItemsCount:  r.ItemsCount,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
	}
	if r.ID == "" {
		o.ID = uuid.New()
	} else {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid order id: %w", err)
		}
		o.ID = id
	}
	uid, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	o.UserID = uid
	if o.Status == models.OrderStatusCompleted {
		completedAt := o.CreatedAt
		o.CompletedAt = &completedAt
	}
	return o, nil
}

// OrderStatusRequest is the payload for an order lifecycle transition.
type OrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending completed cancelled refunded"`
}

// decodeJSON reads a size-capped JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// pageParams is the validated limit/offset window of a list request.
type pageParams struct {
	Limit  int
	Offset int
}

// parsePageParams reads limit/offset query parameters, clamping limit to
// the configured maximum.
func parsePageParams(r *http.Request, defaultLimit, maxLimit int) (pageParams, error) {
	p := pageParams{Limit: defaultLimit}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return p, fmt.Errorf("limit %q must be a positive integer", raw)
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		p.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return p, fmt.Errorf("offset %q must be a non-negative integer", raw)
		}
		p.Offset = offset
	}
	return p, nil
}

// paginate slices items to the requested window and describes it.
func paginate[T any](items []T, p pageParams) ([]T, *PaginationMeta) {
	total := len(items)
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	window := items[start:end]
	return window, &PaginationMeta{
		Total:   total,
		Count:   len(window),
		Offset:  p.Offset,
		Limit:   p.Limit,
		HasMore: end < total,
	}
}
