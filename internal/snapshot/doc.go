// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package snapshot defines the immutable analytics snapshot published by
// refresh cycles and its Badger-backed persistence, which lets a restarted
// process serve the last known analytics before its first cycle completes.
package snapshot
