// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/metricus/metricus/internal/config"
	"github.com/metricus/metricus/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&config.StoreConfig{
		Path:                   ":memory:",
		MaxMemory:              "256MB",
		Threads:                2,
		PreserveInsertionOrder: true,
	})
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return s
}

func TestEventRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	uid := uuid.New()
	ev := models.Event{
		ID:         uuid.New(),
		UserID:     &uid,
		SessionKey: "sk-1",
		EventType:  models.EventPageView,
		PagePath:   "/products",
		Metadata:   map[string]string{"referrer": "organic"},
		CreatedAt:  now,
	}
	if err := s.AppendEvent(ctx, &ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	got, err := s.QueryEvents(ctx, models.TimeRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].ID != ev.ID || got[0].UserID == nil || *got[0].UserID != uid {
		t.Errorf("identity fields lost: %+v", got[0])
	}
	if got[0].Metadata["referrer"] != "organic" {
		t.Errorf("metadata = %v, want referrer organic", got[0].Metadata)
	}
	if !got[0].CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got[0].CreatedAt, now)
	}
}

func TestQueryEventsRangeAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	events := []models.Event{
		{ID: uuid.New(), SessionKey: "a", EventType: models.EventPageView, CreatedAt: base.Add(2 * time.Hour)},
		{ID: uuid.New(), SessionKey: "b", EventType: models.EventPageView, CreatedAt: base},
		{ID: uuid.New(), SessionKey: "c", EventType: models.EventPageView, CreatedAt: base.Add(30 * time.Hour)},
	}
	if skipped, err := s.AppendEvents(ctx, events); err != nil || skipped != 0 {
		t.Fatalf("AppendEvents skipped=%d err=%v", skipped, err)
	}

	got, err := s.QueryEvents(ctx, models.TimeRange{Start: base, End: base.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events in range, want 2", len(got))
	}
	if !got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Errorf("events not in ascending order: %v then %v", got[0].CreatedAt, got[1].CreatedAt)
	}
}

func TestAppendEventsSkipsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	events := []models.Event{
		{ID: uuid.New(), SessionKey: "ok", EventType: models.EventPageView, CreatedAt: now},
		{ID: uuid.Nil, SessionKey: "bad", EventType: models.EventPageView, CreatedAt: now},
		{ID: uuid.New(), SessionKey: "bad", EventType: "", CreatedAt: now},
	}
	skipped, err := s.AppendEvents(ctx, events)
	if err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}

	_, stored, _, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored events = %d, want 1", stored)
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	o := models.Order{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		OrderNumber: "ORD-1001",
		Status:      models.OrderStatusPending,
		Amount:      decimal.RequireFromString("149.99"),
		Currency:    "USD",
		ItemsCount:  2,
		CreatedAt:   now,
	}
	if err := s.AppendOrder(ctx, &o); err != nil {
		t.Fatalf("AppendOrder: %v", err)
	}

	completedAt := now.Add(10 * time.Minute)
	if err := s.TransitionOrder(ctx, o.ID, models.OrderStatusCompleted, completedAt); err != nil {
		t.Fatalf("TransitionOrder to completed: %v", err)
	}

	got, err := s.QueryOrders(ctx, models.TimeRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("QueryOrders: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d orders, want 1", len(got))
	}
	if got[0].Status != models.OrderStatusCompleted {
		t.Errorf("status = %q, want completed", got[0].Status)
	}
	if got[0].CompletedAt == nil || !got[0].CompletedAt.Equal(completedAt) {
		t.Errorf("completed_at = %v, want %v", got[0].CompletedAt, completedAt)
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("149.99")) {
		t.Errorf("amount = %s, want 149.99", got[0].Amount)
	}

	// Refund keeps the original completion stamp.
	if err := s.TransitionOrder(ctx, o.ID, models.OrderStatusRefunded, now.Add(time.Hour)); err != nil {
		t.Fatalf("TransitionOrder to refunded: %v", err)
	}
	got, _ = s.QueryOrders(ctx, models.TimeRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)})
	if got[0].CompletedAt == nil || !got[0].CompletedAt.Equal(completedAt) {
		t.Errorf("refund moved completed_at to %v", got[0].CompletedAt)
	}
}

func TestTransitionOrderRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	o := models.Order{
		ID: uuid.New(), UserID: uuid.New(), OrderNumber: "ORD-1002",
		Status: models.OrderStatusPending, Amount: decimal.RequireFromString("10"),
		CreatedAt: now,
	}
	if err := s.AppendOrder(ctx, &o); err != nil {
		t.Fatalf("AppendOrder: %v", err)
	}

	// pending -> refunded skips completion.
	err := s.TransitionOrder(ctx, o.ID, models.OrderStatusRefunded, now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pending->refunded error = %v, want ErrInvalidTransition", err)
	}

	err = s.TransitionOrder(ctx, uuid.New(), models.OrderStatusCompleted, now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing order error = %v, want ErrNotFound", err)
	}
}

func TestUpsertUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	u := models.User{
		ID: uuid.New(), Email: "a@example.com",
		FirstSeenAt: first, LastSeenAt: first,
		AcquisitionSource: "organic",
	}
	if err := s.UpsertUser(ctx, &u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	// A later sighting advances last_seen_at but not first_seen_at, and an
	// empty source never clobbers an existing one.
	later := u
	later.FirstSeenAt = first.Add(time.Hour)
	later.LastSeenAt = first.Add(2 * time.Hour)
	later.AcquisitionSource = ""
	if err := s.UpsertUser(ctx, &later); err != nil {
		t.Fatalf("UpsertUser update: %v", err)
	}

	users, err := s.QueryUsers(ctx)
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("got %d users, want 1", len(users))
	}
	if !users[0].FirstSeenAt.Equal(first) {
		t.Errorf("first_seen_at moved to %v", users[0].FirstSeenAt)
	}
	if !users[0].LastSeenAt.Equal(first.Add(2 * time.Hour)) {
		t.Errorf("last_seen_at = %v, want %v", users[0].LastSeenAt, first.Add(2*time.Hour))
	}
	if users[0].AcquisitionSource != "organic" {
		t.Errorf("acquisition_source = %q, want organic", users[0].AcquisitionSource)
	}
}

func TestBreakerReaderPassesThrough(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	ev := models.Event{ID: uuid.New(), SessionKey: "sk", EventType: models.EventPageView, CreatedAt: now}
	if err := s.AppendEvent(ctx, &ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	br := NewBreakerReader(s)
	got, err := br.QueryEvents(ctx, models.TimeRange{Start: now.Add(-time.Hour), End: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("QueryEvents through breaker: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d events, want 1", len(got))
	}
}
