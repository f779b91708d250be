// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package analytics implements the derivation engine: sessionization,
// funnel statistics, cohort retention, RFM scoring, time-bucketed rollups
// and z-score anomaly detection.
//
// Every computation in this package is a pure function of its inputs plus
// an explicit reference time where one is needed. Nothing here touches the
// store, the clock or any global state, which is what makes refresh cycles
// reproducible: the same records always produce the same snapshot.
package analytics
