// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/metricus/metricus/internal/models"
)

// AnomalyConfig configures z-score classification of event volume.
type AnomalyConfig struct {
	// Granularity buckets events before scoring. Default: hour.
	Granularity string

	// Baseline is the number of trailing buckets, current excluded, used as
	// the comparison window. Default: 24.
	Baseline int

	// WarningZ and AnomalyZ are the |z| classification thresholds.
	// Defaults: 2 and 3.
	WarningZ float64
	AnomalyZ float64

	// Limit caps the emitted rows, keeping the most recent. Zero means no
	// cap.
	Limit int
}

// DefaultAnomalyConfig returns the production defaults.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		Granularity: GranularityHour,
		Baseline:    24,
		WarningZ:    2,
		AnomalyZ:    3,
		Limit:       48,
	}
}

// DetectAnomalies scores each bucket's event count against the mean and
// sample standard deviation of the preceding Baseline buckets. The current
// bucket is never part of its own baseline. Buckets within the warm-up
// prefix (fewer than Baseline predecessors) are not emitted at all, so a
// short series yields no rows rather than unstable scores.
//
// When the baseline standard deviation is zero the z-score is undefined:
// ZScore is nil and the bucket reads NORMAL regardless of its count.
// Classification is symmetric, spikes and droughts alike: |z| above
// AnomalyZ is ANOMALY, above WarningZ is WARNING, otherwise NORMAL.
func DetectAnomalies(events []models.Event, cfg AnomalyConfig) []models.AnomalyRow {
	if cfg.Granularity == "" {
		cfg.Granularity = GranularityHour
	}
	if cfg.Baseline <= 0 {
		cfg.Baseline = 24
	}
	if cfg.WarningZ <= 0 {
		cfg.WarningZ = 2
	}
	if cfg.AnomalyZ <= 0 {
		cfg.AnomalyZ = 3
	}

	counts := make(map[time.Time]int)
	for i := range events {
		counts[truncatePeriod(events[i].CreatedAt, cfg.Granularity)]++
	}
	buckets := make([]time.Time, 0, len(counts))
	for b := range counts {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	rows := make([]models.AnomalyRow, 0, len(buckets))
	baseline := newRollingStats(cfg.Baseline)
	for _, b := range buckets {
		observed := counts[b]
		if baseline.Len() == cfg.Baseline {
			row := models.AnomalyRow{
				Bucket:        b,
				ObservedCount: observed,
				Mean:          round2(baseline.Mean()),
				StdDev:        round2(baseline.StdDev()),
				Status:        models.AnomalyStatusNormal,
			}
			if sd := baseline.StdDev(); sd > 0 {
				z := round2((float64(observed) - baseline.Mean()) / sd)
				row.ZScore = &z
				switch {
				case math.Abs(z) > cfg.AnomalyZ:
					row.Status = models.AnomalyStatusAnomaly
				case math.Abs(z) > cfg.WarningZ:
					row.Status = models.AnomalyStatusWarning
				}
			}
			rows = append(rows, row)
		}
		baseline.Push(float64(observed))
	}

	if cfg.Limit > 0 && len(rows) > cfg.Limit {
		rows = rows[len(rows)-cfg.Limit:]
	}
	return rows
}
