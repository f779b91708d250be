// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package supervisor assembles the suture supervision tree. Long-running
// services (ingest consumer, refresh scheduler, websocket hub and
// bridge, HTTP server) live under per-layer child supervisors so a
// restart loop in one layer never takes down the others.
package supervisor
