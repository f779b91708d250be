// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package realtime maintains the optional Redis-backed live counters:
// active users, completed orders and revenue over the last hour, and the
// current event rate. The counters are advisory; failures degrade to
// zeroes and never affect ingestion or refresh.
package realtime
