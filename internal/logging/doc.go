// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package logging provides centralized zerolog-based logging for Metricus.
//
// All packages log through the global logger configured here:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("structure", "rollups").Msg("snapshot published")
//
// JSON output is the production default; console output is available for
// development. Context helpers in context.go propagate request and
// correlation IDs, and slog_adapter.go bridges slog-speaking libraries
// (sutureslog) onto the same sink.
package logging
