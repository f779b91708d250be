// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/models"
)

// Reader is the read side consumed by refresh cycles. All queries return
// rows in ascending creation order so downstream window computations see a
// stable sequence.
type Reader interface {
	QueryEvents(ctx context.Context, tr models.TimeRange) ([]models.Event, error)
	QueryOrders(ctx context.Context, tr models.TimeRange) ([]models.Order, error)
	QueryUsers(ctx context.Context) ([]models.User, error)
}

// QueryEvents returns events created within the range, oldest first.
func (s *Store) QueryEvents(ctx context.Context, tr models.TimeRange) ([]models.Event, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT CAST(id AS VARCHAR), CAST(user_id AS VARCHAR), session_key, event_type, page_path, CAST(metadata AS VARCHAR), created_at
		 FROM events
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`,
		tr.Start.UTC(), tr.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer closeQuietly(rows)

	var events []models.Event
	for rows.Next() {
		var (
			ev     models.Event
			id     string
			userID sql.NullString
			meta   string
		)
		if err := rows.Scan(&id, &userID, &ev.SessionKey, &ev.EventType,
			&ev.PagePath, &meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse event id %q: %w", id, err)
		}
		if userID.Valid {
			uid, pErr := uuid.Parse(userID.String)
			if pErr != nil {
				return nil, fmt.Errorf("failed to parse event user id %q: %w", userID.String, pErr)
			}
			ev.UserID = &uid
		}
		ev.Metadata = unmarshalMetadata(meta, ev.ID)
		ev.CreatedAt = ev.CreatedAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event iteration failed: %w", err)
	}
	return events, nil
}

// QueryOrders returns orders created within the range, oldest first.
func (s *Store) QueryOrders(ctx context.Context, tr models.TimeRange) ([]models.Order, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT CAST(id AS VARCHAR), CAST(user_id AS VARCHAR), order_number, status, CAST(amount AS VARCHAR), currency,
		        items_count, CAST(metadata AS VARCHAR), created_at, completed_at
		 FROM orders
		 WHERE created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`,
		tr.Start.UTC(), tr.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer closeQuietly(rows)

	var orders []models.Order
	for rows.Next() {
		var (
			o           models.Order
			id, userID  string
			amount      string
			meta        string
			completedAt sql.NullTime
		)
		if err := rows.Scan(&id, &userID, &o.OrderNumber, &o.Status, &amount,
			&o.Currency, &o.ItemsCount, &meta, &o.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if o.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse order id %q: %w", id, err)
		}
		if o.UserID, err = uuid.Parse(userID); err != nil {
			return nil, fmt.Errorf("failed to parse order user id %q: %w", userID, err)
		}
		o.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse order amount %q: %w", amount, err)
		}
		o.Metadata = unmarshalMetadata(meta, o.ID)
		o.CreatedAt = o.CreatedAt.UTC()
		if completedAt.Valid {
			at := completedAt.Time.UTC()
			o.CompletedAt = &at
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order iteration failed: %w", err)
	}
	return orders, nil
}

// QueryUsers returns all users ordered by first sight.
func (s *Store) QueryUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT CAST(id AS VARCHAR), email, first_seen_at, last_seen_at, acquisition_source, country_code, device_type
		 FROM users
		 ORDER BY first_seen_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer closeQuietly(rows)

	var users []models.User
	for rows.Next() {
		var (
			u  models.User
			id string
		)
		if err := rows.Scan(&id, &u.Email, &u.FirstSeenAt, &u.LastSeenAt,
			&u.AcquisitionSource, &u.CountryCode, &u.DeviceType); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if u.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse user id %q: %w", id, err)
		}
		u.FirstSeenAt = u.FirstSeenAt.UTC()
		u.LastSeenAt = u.LastSeenAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user iteration failed: %w", err)
	}
	return users, nil
}

// Counts reports table row counts for the health endpoint.
func (s *Store) Counts(ctx context.Context) (users, events, orders int64, err error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM events), (SELECT COUNT(*) FROM orders)`)
	if err = row.Scan(&users, &events, &orders); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return users, events, orders, nil
}

// unmarshalMetadata decodes a metadata JSON column. Corrupt metadata is
// logged and dropped rather than failing the whole query.
func unmarshalMetadata(raw string, recordID uuid.UUID) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		logging.Warn().Err(err).Str("record_id", recordID.String()).Msg("Dropping unreadable metadata")
		return nil
	}
	return m
}

var _ Reader = (*Store)(nil)

// TimeRangeSince is a convenience for lookback-style query windows.
func TimeRangeSince(now time.Time, lookback time.Duration) models.TimeRange {
	return models.TimeRange{Start: now.Add(-lookback), End: now}
}
