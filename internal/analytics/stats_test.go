// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"math"
	"testing"
	"time"
)

func TestPct(t *testing.T) {
	if got := Pct(40, 100); got == nil || *got != 40.0 {
		t.Fatalf("Pct(40, 100) = %v, want 40.0", got)
	}
	if got := Pct(1, 3); got == nil || *got != 33.33 {
		t.Fatalf("Pct(1, 3) = %v, want 33.33", got)
	}
	if got := Pct(5, 0); got != nil {
		t.Fatalf("Pct(5, 0) = %v, want nil", *got)
	}
}

func TestGrowthPct(t *testing.T) {
	if got := GrowthPct(150, 100); got == nil || *got != 50.0 {
		t.Fatalf("GrowthPct(150, 100) = %v, want 50.0", got)
	}
	if got := GrowthPct(50, 100); got == nil || *got != -50.0 {
		t.Fatalf("GrowthPct(50, 100) = %v, want -50.0", got)
	}
	if got := GrowthPct(10, 0); got != nil {
		t.Fatalf("GrowthPct(10, 0) = %v, want nil", *got)
	}
}

func TestRollingStatsWindowEviction(t *testing.T) {
	r := newRollingStats(3)
	for _, v := range []float64{1, 2, 3, 4} {
		r.Push(v)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	if got := r.Mean(); got != 3 {
		t.Errorf("Mean = %v, want 3 (window should be 2,3,4)", got)
	}
	if got := r.StdDev(); math.Abs(got-1) > 1e-9 {
		t.Errorf("StdDev = %v, want 1", got)
	}
}

func TestRollingStatsConstantSeries(t *testing.T) {
	r := newRollingStats(5)
	for i := 0; i < 5; i++ {
		r.Push(10)
	}
	if got := r.StdDev(); got != 0 {
		t.Fatalf("StdDev of constant series = %v, want 0", got)
	}
}

func TestTruncatePeriod(t *testing.T) {
	ts := time.Date(2026, 3, 11, 14, 37, 22, 0, time.UTC) // a Wednesday

	if got := truncatePeriod(ts, GranularityHour); !got.Equal(time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("hour truncation = %v", got)
	}
	if got := truncatePeriod(ts, GranularityDay); !got.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day truncation = %v", got)
	}
	if got := truncatePeriod(ts, GranularityWeek); !got.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week truncation = %v, want Monday 2026-03-09", got)
	}

	// Sunday belongs to the preceding Monday-based week.
	sunday := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	if got := truncatePeriod(sunday, GranularityWeek); !got.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Sunday week truncation = %v, want Monday 2026-03-09", got)
	}
}

func TestPeriodsBetween(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := periodsBetween(from, from.AddDate(0, 0, 3), GranularityDay); got != 3 {
		t.Errorf("day offset = %d, want 3", got)
	}
	if got := periodsBetween(from, from.Add(5*time.Hour), GranularityHour); got != 5 {
		t.Errorf("hour offset = %d, want 5", got)
	}
	if got := periodsBetween(from, from.AddDate(0, 0, 14), GranularityWeek); got != 2 {
		t.Errorf("week offset = %d, want 2", got)
	}
}

func TestNtile5(t *testing.T) {
	// 7 ranked items: NTILE(5) puts one extra member in the first two bands.
	want := []int{1, 1, 2, 2, 3, 4, 5}
	for idx, band := range want {
		if got := ntile5(idx, 7); got != band {
			t.Errorf("ntile5(%d, 7) = %d, want %d", idx, got, band)
		}
	}

	// Fewer items than bands: one band per item.
	for idx := 0; idx < 3; idx++ {
		if got := ntile5(idx, 3); got != idx+1 {
			t.Errorf("ntile5(%d, 3) = %d, want %d", idx, got, idx+1)
		}
	}

	// Exact multiple: bands of equal size.
	for idx := 0; idx < 10; idx++ {
		if got, want := ntile5(idx, 10), idx/2+1; got != want {
			t.Errorf("ntile5(%d, 10) = %d, want %d", idx, got, want)
		}
	}
}
