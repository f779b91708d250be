// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package models defines the source records (users, events, orders) and the
// derived analytics rows (sessions, funnel steps, cohorts, RFM, rollups,
// anomalies) shared across the store, analytics engine, refresh coordinator
// and API layers.
package models
