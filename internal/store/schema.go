// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package store

import (
	"context"
	"fmt"
	"time"
)

// Source-of-truth tables. Derived analytics never live here; they exist only
// inside published snapshots, so a schema change to a rollup costs nothing
// at the storage layer.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR NOT NULL,
		first_seen_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		acquisition_source VARCHAR DEFAULT '',
		country_code VARCHAR DEFAULT '',
		device_type VARCHAR DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		user_id UUID,
		session_key VARCHAR NOT NULL,
		event_type VARCHAR NOT NULL,
		page_path VARCHAR DEFAULT '',
		metadata JSON DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		order_number VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		amount DECIMAL(18,2) NOT NULL,
		currency VARCHAR DEFAULT 'USD',
		items_count INTEGER DEFAULT 0,
		metadata JSON DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_user_id ON events (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_session_key ON events (session_key)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_completed_at ON orders (completed_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number ON orders (order_number)`,
}

func (s *Store) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range indexStatements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
