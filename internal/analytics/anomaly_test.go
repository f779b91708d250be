// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/metricus/metricus/internal/models"
)

// steadyThenSpike yields baseline+1 hourly buckets alternating 9/11 events
// with a final bucket of spikeCount.
func steadyThenSpike(start time.Time, baseline, spikeCount int) []models.Event {
	var events []models.Event
	for i := 0; i < baseline; i++ {
		n := 9
		if i%2 == 1 {
			n = 11
		}
		events = append(events, hourlyEvents(start.Add(time.Duration(i)*time.Hour), n)...)
	}
	events = append(events, hourlyEvents(start.Add(time.Duration(baseline)*time.Hour), spikeCount)...)
	return events
}

func TestDetectAnomaliesSpike(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events := steadyThenSpike(start, 24, 40)

	rows := DetectAnomalies(events, DefaultAnomalyConfig())
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (warm-up buckets excluded)", len(rows))
	}
	row := rows[0]
	if row.ObservedCount != 40 {
		t.Errorf("observed = %d, want 40", row.ObservedCount)
	}
	if row.Mean != 10 {
		t.Errorf("mean = %v, want 10", row.Mean)
	}
	if row.ZScore == nil {
		t.Fatal("z-score nil for spike over varying baseline")
	}
	if *row.ZScore <= 3 {
		t.Errorf("z = %v, want > 3 for a 4x spike", *row.ZScore)
	}
	if row.Status != models.AnomalyStatusAnomaly {
		t.Errorf("status = %q, want ANOMALY", row.Status)
	}
}

func TestDetectAnomaliesWarningBand(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	// Baseline mean 10, sample stddev ~1.02; 12.5 sits between 2 and 3 sigma.
	// Counts are integral, so use 12 against a tighter threshold pair.
	events := steadyThenSpike(start, 24, 12)

	cfg := DefaultAnomalyConfig()
	cfg.WarningZ = 1.5
	cfg.AnomalyZ = 3
	rows := DetectAnomalies(events, cfg)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Status != models.AnomalyStatusWarning {
		t.Errorf("status = %q (z=%v), want WARNING", rows[0].Status, rows[0].ZScore)
	}
}

func TestDetectAnomaliesDroughtIsSymmetric(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events := steadyThenSpike(start, 24, 1)

	rows := DetectAnomalies(events, DefaultAnomalyConfig())
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].ZScore == nil || *rows[0].ZScore >= 0 {
		t.Fatalf("z = %v, want negative for a drought", rows[0].ZScore)
	}
	if math.Abs(*rows[0].ZScore) <= 3 || rows[0].Status != models.AnomalyStatusAnomaly {
		t.Errorf("drought |z| = %v status %q, want > 3 and ANOMALY", math.Abs(*rows[0].ZScore), rows[0].Status)
	}
}

func TestDetectAnomaliesZeroStdDev(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var events []models.Event
	// Perfectly flat baseline, then a spike: stddev 0 means no z-score.
	for i := 0; i < 24; i++ {
		events = append(events, hourlyEvents(start.Add(time.Duration(i)*time.Hour), 10)...)
	}
	events = append(events, hourlyEvents(start.Add(24*time.Hour), 100)...)

	rows := DetectAnomalies(events, DefaultAnomalyConfig())
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].ZScore != nil {
		t.Errorf("z = %v, want nil with zero baseline stddev", *rows[0].ZScore)
	}
	if rows[0].Status != models.AnomalyStatusNormal {
		t.Errorf("status = %q, want NORMAL when z is undefined", rows[0].Status)
	}
}

func TestDetectAnomaliesWarmUpYieldsNothing(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var events []models.Event
	for i := 0; i < 10; i++ {
		events = append(events, hourlyEvents(start.Add(time.Duration(i)*time.Hour), 10)...)
	}
	if rows := DetectAnomalies(events, DefaultAnomalyConfig()); len(rows) != 0 {
		t.Fatalf("got %d rows from a series shorter than the baseline, want 0", len(rows))
	}
}

func TestDetectAnomaliesLimitKeepsMostRecent(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var events []models.Event
	for i := 0; i < 30; i++ {
		n := 9
		if i%2 == 1 {
			n = 11
		}
		events = append(events, hourlyEvents(start.Add(time.Duration(i)*time.Hour), n)...)
	}

	cfg := DefaultAnomalyConfig()
	cfg.Limit = 3
	rows := DetectAnomalies(events, cfg)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	wantLast := start.Add(29 * time.Hour)
	if !rows[2].Bucket.Equal(wantLast) {
		t.Errorf("last bucket = %v, want %v", rows[2].Bucket, wantLast)
	}
}
