// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package refresh owns the snapshot lifecycle. The Coordinator reads
// source records once per cycle and recomputes each derived structure as
// an independent unit of work: units run concurrently, carry per-unit
// timeouts, and a failing unit leaves its previously published rows
// visible without blocking the others. Every publish is a copy-and-swap
// of a single immutable snapshot pointer. The Scheduler drives full
// cycles on a fixed interval as a suture-supervised service; manual
// triggers may name a subset of structures and are rate limited.
package refresh
