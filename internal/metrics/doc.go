// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package metrics registers the Prometheus instruments for ingest,
// refresh, store, API and WebSocket instrumentation. All collectors are
// registered once via promauto at package load.
package metrics
