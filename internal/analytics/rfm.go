// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/metricus/metricus/internal/models"
)

// RFMConfig configures customer scoring.
type RFMConfig struct {
	// Lookback limits orders to those completed within this window before
	// the reference time. Default: 365 days.
	Lookback time.Duration

	// TopN caps the returned records after sorting by total score. Zero
	// means no cap.
	TopN int
}

// DefaultRFMConfig returns the production defaults.
func DefaultRFMConfig() RFMConfig {
	return RFMConfig{Lookback: 365 * 24 * time.Hour, TopN: 1000}
}

// ComputeRFM scores customers on recency, frequency and monetary value over
// completed orders only. Recency is whole days since the most recent
// completed order relative to now; frequency is the order count; monetary is
// the summed amount. Each dimension is banded into quintiles 1..5 with 5
// best, so recency ranks ascending (fewest days first) while frequency and
// monetary rank descending. Ties are broken by user ID so rescoring the same
// data always yields the same bands.
//
// Customers with zero completed orders in the window are excluded entirely.
func ComputeRFM(orders []models.Order, now time.Time, cfg RFMConfig) []models.RFMRecord {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 365 * 24 * time.Hour
	}
	cutoff := now.Add(-cfg.Lookback)

	type agg struct {
		lastOrder time.Time
		frequency int
		monetary  decimal.Decimal
	}
	byUser := make(map[uuid.UUID]*agg)
	for i := range orders {
		o := &orders[i]
		if !o.IsCompleted() || o.CompletedAt == nil {
			continue
		}
		if o.CompletedAt.Before(cutoff) || o.CompletedAt.After(now) {
			continue
		}
		a := byUser[o.UserID]
		if a == nil {
			a = &agg{}
			byUser[o.UserID] = a
		}
		if o.CompletedAt.After(a.lastOrder) {
			a.lastOrder = *o.CompletedAt
		}
		a.frequency++
		a.monetary = a.monetary.Add(o.Amount)
	}
	if len(byUser) == 0 {
		return []models.RFMRecord{}
	}

	records := make([]models.RFMRecord, 0, len(byUser))
	for id, a := range byUser {
		records = append(records, models.RFMRecord{
			UserID:      id,
			RecencyDays: int(now.Sub(a.lastOrder).Hours() / 24),
			Frequency:   a.frequency,
			Monetary:    a.monetary,
		})
	}

	n := len(records)
	assignBand := func(less func(i, j int) bool, set func(rec *models.RFMRecord, band int)) {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			if less(order[a], order[b]) {
				return true
			}
			if less(order[b], order[a]) {
				return false
			}
			return records[order[a]].UserID.String() < records[order[b]].UserID.String()
		})
		for rank, idx := range order {
			set(&records[idx], ntile5(rank, n))
		}
	}

	// Rank so that the FIRST quintile is the worst band (score 1) and the
	// last is the best (score 5), matching NTILE over an ascending-quality
	// ordering.
	assignBand(
		func(i, j int) bool { return records[i].RecencyDays > records[j].RecencyDays },
		func(rec *models.RFMRecord, band int) { rec.RecencyScore = band },
	)
	assignBand(
		func(i, j int) bool { return records[i].Frequency < records[j].Frequency },
		func(rec *models.RFMRecord, band int) { rec.FrequencyScore = band },
	)
	assignBand(
		func(i, j int) bool { return records[i].Monetary.LessThan(records[j].Monetary) },
		func(rec *models.RFMRecord, band int) { rec.MonetaryScore = band },
	)

	for i := range records {
		records[i].Total = records[i].RecencyScore + records[i].FrequencyScore + records[i].MonetaryScore
		records[i].Segment = segmentFor(&records[i])
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Total != records[j].Total {
			return records[i].Total > records[j].Total
		}
		return records[i].UserID.String() < records[j].UserID.String()
	})
	if cfg.TopN > 0 && len(records) > cfg.TopN {
		records = records[:cfg.TopN]
	}
	return records
}

// segmentFor maps band scores to a named segment. Rules apply in priority
// order; the first match wins.
func segmentFor(r *models.RFMRecord) string {
	switch {
	case r.RecencyScore >= 4 && r.FrequencyScore >= 4 && r.MonetaryScore >= 4:
		return models.SegmentChampions
	case r.RecencyScore >= 3 && r.FrequencyScore >= 3 && r.MonetaryScore >= 3:
		return models.SegmentLoyal
	case r.RecencyScore >= 4 && r.FrequencyScore <= 2:
		return models.SegmentNew
	case r.RecencyScore <= 2 && r.FrequencyScore >= 3:
		return models.SegmentAtRisk
	case r.RecencyScore <= 2 && r.FrequencyScore <= 2 && r.MonetaryScore >= 3:
		return models.SegmentCannotLose
	default:
		return models.SegmentOther
	}
}
