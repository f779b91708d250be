// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"math"
	"time"
)

// Period granularities accepted by bucketed computations.
const (
	GranularityHour = "hour"
	GranularityDay  = "day"
	GranularityWeek = "week"
)

// Pct returns num/den*100, or nil when den is zero. This is the NULLIF
// discipline for every ratio in the engine: degenerate divisors yield an
// absent value, never a fault, NaN or Inf.
func Pct(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := round2(num / den * 100)
	return &v
}

// GrowthPct returns (current-previous)/previous*100, nil when previous is 0.
func GrowthPct(current, previous float64) *float64 {
	return Pct(current-previous, previous)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func float64Ptr(v float64) *float64 {
	return &v
}

// mean returns the arithmetic mean of vals, 0 for an empty slice.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// rollingStats carries the running state for a trailing row-based window:
// sum and sum of squares over at most the window's worth of values.
// Recomputing mean/stddev from these two accumulators keeps each series a
// single O(n) pass instead of re-scanning the window per bucket.
type rollingStats struct {
	window []float64
	size   int
	sum    float64
	sumSq  float64
}

func newRollingStats(size int) *rollingStats {
	return &rollingStats{size: size}
}

// Push adds a value, evicting the oldest once the window is full.
func (r *rollingStats) Push(v float64) {
	if len(r.window) == r.size {
		old := r.window[0]
		r.window = r.window[1:]
		r.sum -= old
		r.sumSq -= old * old
	}
	r.window = append(r.window, v)
	r.sum += v
	r.sumSq += v * v
}

// Len returns the number of values currently in the window.
func (r *rollingStats) Len() int {
	return len(r.window)
}

// Mean returns the window mean, 0 when empty.
func (r *rollingStats) Mean() float64 {
	if len(r.window) == 0 {
		return 0
	}
	return r.sum / float64(len(r.window))
}

// StdDev returns the sample standard deviation of the window, 0 when the
// window holds fewer than two values. Accumulated floating error can push
// the variance fractionally below zero; it is clamped.
func (r *rollingStats) StdDev() float64 {
	n := float64(len(r.window))
	if n < 2 {
		return 0
	}
	variance := (r.sumSq - r.sum*r.sum/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// truncatePeriod truncates t (in UTC) to the start of its hour, day or ISO
// week (Monday). Unknown granularities fall back to day.
func truncatePeriod(t time.Time, granularity string) time.Time {
	t = t.UTC()
	switch granularity {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		weekday := int(day.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday belongs to the preceding Monday-based week
		}
		return day.AddDate(0, 0, -(weekday - 1))
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// periodsBetween returns the whole number of granularity periods separating
// two already-truncated instants. Both operands must come from
// truncatePeriod with the same granularity.
func periodsBetween(from, to time.Time, granularity string) int {
	diff := to.Sub(from)
	switch granularity {
	case GranularityHour:
		return int(diff / time.Hour)
	case GranularityWeek:
		return int(diff / (7 * 24 * time.Hour))
	default:
		return int(diff / (24 * time.Hour))
	}
}

// ntile5 assigns 1-based quintile bands over n ranked items the way SQL
// NTILE(5) does: the first n%5 bands take one extra member.
func ntile5(idx, n int) int {
	if n <= 0 {
		return 1
	}
	base := n / 5
	remainder := n % 5
	if idx < remainder*(base+1) {
		return idx/(base+1) + 1
	}
	if base == 0 {
		return remainder
	}
	return remainder + (idx-remainder*(base+1))/base + 1
}
