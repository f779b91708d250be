// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package ingest decouples HTTP intake from persistence with an in-process
// Watermill channel. The API layer queues validated events and orders; the
// Consumer drains them into the store, upserts users on first sight and
// feeds the optional live counters. Invalid or undecodable records are
// counted and dropped, never retried.
package ingest
