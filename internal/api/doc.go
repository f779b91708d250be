// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package api is the HTTP surface: chi routing, envelope responses,
// intake endpoints feeding the ingest pipeline, analytics endpoints
// reading the published snapshot, refresh control and health probes.
// Analytics handlers never touch the store; they serve whatever snapshot
// the refresh coordinator last published.
package api
