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

// RollupConfig configures bucketed event aggregation.
type RollupConfig struct {
	// Granularity buckets events by hour, day or week. Default: hour.
	Granularity string

	// RollingWindow is the trailing bucket count for the rolling average,
	// current bucket included. Default: 24.
	RollingWindow int

	// PriorPeriodLag is the row offset used for the prior-period comparison
	// (24 pairs each hourly bucket with the same hour one day earlier).
	// Default: 24.
	PriorPeriodLag int

	// PerEventType additionally emits one series per event type alongside
	// the all-types series.
	PerEventType bool
}

// DefaultRollupConfig returns the production defaults for hourly rollups.
func DefaultRollupConfig() RollupConfig {
	return RollupConfig{
		Granularity:    GranularityHour,
		RollingWindow:  24,
		PriorPeriodLag: 24,
		PerEventType:   true,
	}
}

type rollupAgg struct {
	eventCount int
	users      map[uuid.UUID]struct{}
	sessions   map[string]struct{}
	revenue    decimal.Decimal
	orderCount int
}

func newRollupAgg() *rollupAgg {
	return &rollupAgg{
		users:    make(map[uuid.UUID]struct{}),
		sessions: make(map[string]struct{}),
	}
}

// ComputeRollups aggregates events and completed orders into time-bucketed
// rows with derived window columns. Buckets with no events are absent, and
// the window columns are row-based over the buckets that exist: an absent
// bucket neither appears as a zero row nor participates in any window.
//
// Revenue columns attribute each completed order to the bucket of its
// CompletedAt; when PerEventType is set the per-type rows of a bucket all
// carry that bucket's revenue figures, mirroring the all-types row.
//
// Window columns per series, in bucket order:
//
//	RollingAvg      mean EventCount over the trailing RollingWindow rows
//	PrevPeriodCount EventCount PriorPeriodLag rows earlier, nil before that
//	GrowthPct       change vs PrevPeriodCount, nil when absent or zero
//	Cumulative      running EventCount sum from the series start
func ComputeRollups(events []models.Event, orders []models.Order, cfg RollupConfig) []models.RollupRow {
	if cfg.Granularity == "" {
		cfg.Granularity = GranularityHour
	}
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = 24
	}
	if cfg.PriorPeriodLag <= 0 {
		cfg.PriorPeriodLag = 24
	}

	type seriesKey struct {
		bucket    time.Time
		eventType string
	}
	aggs := make(map[seriesKey]*rollupAgg)

	record := func(key seriesKey, ev *models.Event) {
		a := aggs[key]
		if a == nil {
			a = newRollupAgg()
			aggs[key] = a
		}
		a.eventCount++
		if ev.UserID != nil {
			a.users[*ev.UserID] = struct{}{}
		}
		if ev.SessionKey != "" {
			a.sessions[ev.SessionKey] = struct{}{}
		}
	}

	for i := range events {
		bucket := truncatePeriod(events[i].CreatedAt, cfg.Granularity)
		record(seriesKey{bucket: bucket}, &events[i])
		if cfg.PerEventType {
			record(seriesKey{bucket: bucket, eventType: events[i].EventType}, &events[i])
		}
	}

	// Per-bucket revenue, shared across every series row of that bucket.
	type revAgg struct {
		revenue decimal.Decimal
		orders  int
	}
	revenue := make(map[time.Time]*revAgg)
	for i := range orders {
		o := &orders[i]
		if !o.IsCompleted() || o.CompletedAt == nil {
			continue
		}
		bucket := truncatePeriod(*o.CompletedAt, cfg.Granularity)
		r := revenue[bucket]
		if r == nil {
			r = &revAgg{}
			revenue[bucket] = r
		}
		r.revenue = r.revenue.Add(o.Amount)
		r.orders++
	}

	rows := make([]models.RollupRow, 0, len(aggs))
	for key, a := range aggs {
		row := models.RollupRow{
			Bucket:         key.bucket,
			EventType:      key.eventType,
			EventCount:     a.eventCount,
			UniqueUsers:    len(a.users),
			UniqueSessions: len(a.sessions),
		}
		if r, ok := revenue[key.bucket]; ok {
			row.Revenue = r.revenue
			row.OrderCount = r.orders
			if r.orders > 0 {
				row.AvgOrderValue = r.revenue.DivRound(decimal.NewFromInt(int64(r.orders)), 2)
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Bucket.Equal(rows[j].Bucket) {
			return rows[i].Bucket.Before(rows[j].Bucket)
		}
		return rows[i].EventType < rows[j].EventType
	})

	// Window columns run independently per event-type series.
	type seriesState struct {
		rolling    *rollingStats
		counts     []int
		cumulative int
	}
	states := make(map[string]*seriesState)
	for i := range rows {
		st := states[rows[i].EventType]
		if st == nil {
			st = &seriesState{rolling: newRollingStats(cfg.RollingWindow)}
			states[rows[i].EventType] = st
		}
		st.rolling.Push(float64(rows[i].EventCount))
		rows[i].RollingAvg = float64Ptr(round2(st.rolling.Mean()))

		if len(st.counts) >= cfg.PriorPeriodLag {
			prev := st.counts[len(st.counts)-cfg.PriorPeriodLag]
			rows[i].PrevPeriodCount = &prev
			rows[i].GrowthPct = GrowthPct(float64(rows[i].EventCount), float64(prev))
		}
		st.counts = append(st.counts, rows[i].EventCount)

		st.cumulative += rows[i].EventCount
		rows[i].Cumulative = st.cumulative
	}
	return rows
}

// ComputeRevenueRollups builds the daily revenue series from completed
// orders: per-day totals with a 7-day rolling average, day-over-day growth
// and running cumulative revenue. Days with no completed orders are absent
// and do not participate in the windows.
func ComputeRevenueRollups(orders []models.Order) []models.RevenueRollupRow {
	type dayAgg struct {
		revenue decimal.Decimal
		orders  int
		users   map[uuid.UUID]struct{}
	}
	days := make(map[time.Time]*dayAgg)
	for i := range orders {
		o := &orders[i]
		if !o.IsCompleted() || o.CompletedAt == nil {
			continue
		}
		bucket := truncatePeriod(*o.CompletedAt, GranularityDay)
		d := days[bucket]
		if d == nil {
			d = &dayAgg{users: make(map[uuid.UUID]struct{})}
			days[bucket] = d
		}
		d.revenue = d.revenue.Add(o.Amount)
		d.orders++
		d.users[o.UserID] = struct{}{}
	}

	buckets := make([]time.Time, 0, len(days))
	for b := range days {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	rows := make([]models.RevenueRollupRow, 0, len(buckets))
	rolling := newRollingStats(7)
	var cumulative decimal.Decimal
	var prevRevenue *float64
	for _, b := range buckets {
		d := days[b]
		rev, _ := d.revenue.Float64()
		rolling.Push(rev)
		cumulative = cumulative.Add(d.revenue)

		row := models.RevenueRollupRow{
			Bucket:            b,
			Revenue:           d.revenue,
			Orders:            d.orders,
			UniqueCustomers:   len(d.users),
			RollingAvg:        float64Ptr(round2(rolling.Mean())),
			CumulativeRevenue: cumulative,
		}
		if prevRevenue != nil {
			row.GrowthPct = GrowthPct(rev, *prevRevenue)
		}
		prevRevenue = &rev
		rows = append(rows, row)
	}
	return rows
}

// ComputeTopProducts ranks products by purchase count over completed orders,
// keyed by the order metadata product_id tag. Orders without the tag are
// skipped. Ties break by revenue, then product ID.
func ComputeTopProducts(orders []models.Order, limit int) []models.TopProduct {
	type prodAgg struct {
		purchases int
		revenue   decimal.Decimal
	}
	products := make(map[string]*prodAgg)
	for i := range orders {
		o := &orders[i]
		if !o.IsCompleted() {
			continue
		}
		id := o.Metadata["product_id"]
		if id == "" {
			continue
		}
		p := products[id]
		if p == nil {
			p = &prodAgg{}
			products[id] = p
		}
		p.purchases++
		p.revenue = p.revenue.Add(o.Amount)
	}

	rows := make([]models.TopProduct, 0, len(products))
	for id, p := range products {
		rows = append(rows, models.TopProduct{
			ProductID:      id,
			TimesPurchased: p.purchases,
			TotalRevenue:   p.revenue,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TimesPurchased != rows[j].TimesPurchased {
			return rows[i].TimesPurchased > rows[j].TimesPurchased
		}
		if !rows[i].TotalRevenue.Equal(rows[j].TotalRevenue) {
			return rows[i].TotalRevenue.GreaterThan(rows[j].TotalRevenue)
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
