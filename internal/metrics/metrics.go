// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	IngestedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metricus_ingested_records_total",
			Help: "Total records accepted for persistence",
		},
		[]string{"kind"}, // "event", "order", "user"
	)

	RejectedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metricus_rejected_records_total",
			Help: "Total records rejected at validation or persistence",
		},
		[]string{"kind", "reason"},
	)

	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metricus_ingest_queue_depth",
			Help: "Messages waiting in the ingest channel",
		},
	)

	// Refresh metrics
	RefreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metricus_refresh_cycles_total",
			Help: "Refresh cycles by outcome",
		},
		[]string{"outcome"}, // "published", "partial", "failed", "skipped"
	)

	RefreshUnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metricus_refresh_unit_duration_seconds",
			Help:    "Per-unit computation time within a refresh cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"unit"},
	)

	RefreshUnitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metricus_refresh_unit_failures_total",
			Help: "Analytics units that failed within a refresh cycle",
		},
		[]string{"unit"},
	)

	SnapshotAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metricus_snapshot_age_seconds",
			Help: "Seconds since the published snapshot was computed",
		},
	)

	// Store metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metricus_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// API metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metricus_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metricus_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metricus_websocket_connections",
			Help: "Active WebSocket subscribers",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metricus_websocket_messages_sent_total",
			Help: "Messages broadcast to WebSocket subscribers",
		},
	)
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveRefreshUnit records one analytics unit's computation time.
func ObserveRefreshUnit(unit string, elapsed time.Duration) {
	RefreshUnitDuration.WithLabelValues(unit).Observe(elapsed.Seconds())
}

// ObserveDBQuery records one store query.
func ObserveDBQuery(operation string, elapsed time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
