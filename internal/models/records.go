// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order lifecycle statuses. An order is mutable only through a status
// transition; CompletedAt is set exactly once, on the transition to completed.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

// Funnel step event types. The event type vocabulary is open; only this
// fixed subset participates in funnel tracking and session conversion.
const (
	EventPageView         = "page_view"
	EventAddToCart        = "add_to_cart"
	EventCheckoutStart    = "checkout_start"
	EventPurchaseComplete = "purchase_complete"
)

// User is a tracked account, created on the first observed event that
// references it. FirstSeenAt never exceeds LastSeenAt; LastSeenAt is
// advanced by every subsequent event or order.
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	FirstSeenAt       time.Time `json:"first_seen_at"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	AcquisitionSource string    `json:"acquisition_source"`
	CountryCode       string    `json:"country_code"`
	DeviceType        string    `json:"device_type"`
}

// Event is an immutable behavioral record. UserID is nil for anonymous
// events; SessionKey correlates events emitted by the same client visit.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	UserID     *uuid.UUID        `json:"user_id,omitempty"`
	SessionKey string            `json:"session_key"`
	EventType  string            `json:"event_type"`
	PagePath   string            `json:"page_path"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Referrer returns the attribution tag carried by the event, or "" when the
// event has no referrer/campaign metadata.
func (e *Event) Referrer() string {
	if v, ok := e.Metadata["referrer"]; ok && v != "" {
		return v
	}
	if v, ok := e.Metadata["campaign"]; ok && v != "" {
		return v
	}
	return ""
}

// Order is a purchase record. Amount uses decimal arithmetic so revenue
// aggregation never accumulates binary float drift.
type Order struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	OrderNumber string            `json:"order_number"`
	Status      string            `json:"status"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	ItemsCount  int               `json:"items_count"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// IsCompleted reports whether the order has reached the completed status.
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// TimeRange bounds a query window. Both ends are inclusive on Start and
// exclusive on End, matching bucket truncation semantics.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}
