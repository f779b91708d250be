// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package websocket pushes snapshot and realtime updates to dashboard
// clients. The Hub owns the client set and fans out broadcasts in a
// deterministic order; the Bridge feeds it from the in-process message
// bus whenever a refresh cycle publishes.
package websocket
