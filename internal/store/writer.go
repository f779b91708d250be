// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/models"
)

// ErrInvalidRecord marks a record that fails storage invariants. Batch
// appends skip such records instead of aborting the batch.
var ErrInvalidRecord = errors.New("invalid record")

// ErrInvalidTransition marks an order status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound marks a lookup that matched nothing.
var ErrNotFound = errors.New("not found")

// validTransitions enumerates the order lifecycle. Completed orders can
// still be refunded; cancelled and refunded are terminal.
var validTransitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusCompleted, models.OrderStatusCancelled},
	models.OrderStatusCompleted: {models.OrderStatusRefunded},
}

func validateEvent(ev *models.Event) error {
	if ev.ID == uuid.Nil {
		return fmt.Errorf("%w: event id is nil", ErrInvalidRecord)
	}
	if ev.EventType == "" {
		return fmt.Errorf("%w: event type is empty", ErrInvalidRecord)
	}
	if ev.CreatedAt.IsZero() {
		return fmt.Errorf("%w: event created_at is zero", ErrInvalidRecord)
	}
	return nil
}

func validateOrder(o *models.Order) error {
	if o.ID == uuid.Nil || o.UserID == uuid.Nil {
		return fmt.Errorf("%w: order id or user id is nil", ErrInvalidRecord)
	}
	if o.OrderNumber == "" {
		return fmt.Errorf("%w: order number is empty", ErrInvalidRecord)
	}
	if o.Amount.IsNegative() {
		return fmt.Errorf("%w: order amount is negative", ErrInvalidRecord)
	}
	switch o.Status {
	case models.OrderStatusPending, models.OrderStatusCompleted,
		models.OrderStatusCancelled, models.OrderStatusRefunded:
	default:
		return fmt.Errorf("%w: unknown order status %q", ErrInvalidRecord, o.Status)
	}
	return nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

// AppendEvent persists one immutable event.
func (s *Store) AppendEvent(ctx context.Context, ev *models.Event) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	meta, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return err
	}
	var userID any
	if ev.UserID != nil {
		userID = *ev.UserID
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO events (id, user_id, session_key, event_type, page_path, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, userID, ev.SessionKey, ev.EventType, ev.PagePath, meta, ev.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// AppendEvents persists a batch inside one transaction, skipping invalid
// records. It returns how many records were skipped.
func (s *Store) AppendEvents(ctx context.Context, events []models.Event) (skipped int, err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Debug().Err(rbErr).Msg("Rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, user_id, session_key, event_type, page_path, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { closeQuietly(stmt) }()

	for i := range events {
		ev := &events[i]
		if vErr := validateEvent(ev); vErr != nil {
			skipped++
			logging.Warn().Err(vErr).Str("event_id", ev.ID.String()).Msg("Skipping invalid event")
			continue
		}
		meta, mErr := marshalMetadata(ev.Metadata)
		if mErr != nil {
			skipped++
			continue
		}
		var userID any
		if ev.UserID != nil {
			userID = *ev.UserID
		}
		if _, err = stmt.ExecContext(ctx, ev.ID, userID, ev.SessionKey, ev.EventType,
			ev.PagePath, meta, ev.CreatedAt.UTC()); err != nil {
			return skipped, fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return skipped, fmt.Errorf("failed to commit event batch: %w", err)
	}
	return skipped, nil
}

// AppendOrder persists a new order. CompletedAt is stored only when the
// order arrives already completed.
func (s *Store) AppendOrder(ctx context.Context, o *models.Order) error {
	if err := validateOrder(o); err != nil {
		return err
	}
	meta, err := marshalMetadata(o.Metadata)
	if err != nil {
		return err
	}
	var completedAt any
	if o.Status == models.OrderStatusCompleted {
		at := o.CreatedAt
		if o.CompletedAt != nil {
			at = *o.CompletedAt
		}
		completedAt = at.UTC()
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, order_number, status, amount, currency, items_count, metadata, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.OrderNumber, o.Status, o.Amount.StringFixed(2), o.Currency,
		o.ItemsCount, meta, o.CreatedAt.UTC(), completedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// TransitionOrder moves an order through its lifecycle. The transition to
// completed stamps CompletedAt exactly once; no later transition touches it.
func (s *Store) TransitionOrder(ctx context.Context, orderID uuid.UUID, newStatus string, now time.Time) error {
	var current string
	err := s.conn.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to load order status: %w", err)
	}

	allowed := false
	for _, next := range validTransitions[current] {
		if next == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newStatus)
	}

	if newStatus == models.OrderStatusCompleted {
		_, err = s.conn.ExecContext(ctx,
			`UPDATE orders SET status = ?, completed_at = ? WHERE id = ? AND completed_at IS NULL`,
			newStatus, now.UTC(), orderID)
	} else {
		_, err = s.conn.ExecContext(ctx,
			`UPDATE orders SET status = ? WHERE id = ?`, newStatus, orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	return nil
}

// UpsertUser creates the user on first sight or advances LastSeenAt and
// fills attribution fields that were previously empty. FirstSeenAt never
// moves forward.
func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("%w: user id is nil", ErrInvalidRecord)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, first_seen_at, last_seen_at, acquisition_source, country_code, device_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			last_seen_at = GREATEST(users.last_seen_at, excluded.last_seen_at),
			first_seen_at = LEAST(users.first_seen_at, excluded.first_seen_at),
			email = CASE WHEN users.email = '' THEN excluded.email ELSE users.email END,
			acquisition_source = CASE WHEN users.acquisition_source = '' THEN excluded.acquisition_source ELSE users.acquisition_source END,
			country_code = CASE WHEN users.country_code = '' THEN excluded.country_code ELSE users.country_code END,
			device_type = CASE WHEN users.device_type = '' THEN excluded.device_type ELSE users.device_type END`,
		u.ID, u.Email, u.FirstSeenAt.UTC(), u.LastSeenAt.UTC(),
		u.AcquisitionSource, u.CountryCode, u.DeviceType)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
