// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package store persists the source-of-truth records (users, events,
// orders) in DuckDB and exposes the Reader side consumed by refresh
// cycles. Events are append-only; orders mutate only through lifecycle
// transitions; derived analytics are never stored here.
package store
