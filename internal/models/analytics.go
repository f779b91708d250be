// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Derived analytics rows. Every structure in this file is produced by a
// refresh cycle as part of an immutable snapshot; none is ever mutated in
// place after publication. Ratios that can be degenerate (zero divisor)
// are *float64 and nil when undefined, never NaN or Inf.

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session is a derived run of one visitor's events with no internal gap
// exceeding the inactivity threshold. Recomputed from events each refresh
// cycle, never persisted incrementally.
type Session struct {
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	SessionKey      string     `json:"session_key"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes float64    `json:"duration_minutes"`
	EventCount      int        `json:"event_count"`
	UniquePages     int        `json:"unique_pages"`
	Converted       bool       `json:"converted"`
	Source          string     `json:"source,omitempty"`
}

// SessionSourceStat aggregates sessions by attribution source.
type SessionSourceStat struct {
	Source            string   `json:"source"`
	Sessions          int      `json:"sessions"`
	Converted         int      `json:"converted"`
	ConversionRatePct *float64 `json:"conversion_rate_pct"`
}

// SessionOverview summarizes a full sessionization pass for the dashboard.
type SessionOverview struct {
	TotalSessions      int                 `json:"total_sessions"`
	ConvertedSessions  int                 `json:"converted_sessions"`
	ConversionRatePct  *float64            `json:"conversion_rate_pct"`
	AvgDurationMinutes float64             `json:"avg_duration_minutes"`
	AvgEventsPerSess   float64             `json:"avg_events_per_session"`
	Sources            []SessionSourceStat `json:"sources"`
}

// FunnelStepStat describes one step of the conversion funnel.
// AvgTransitionMinutes and StepConversionPct are nil when no session
// supplies the corresponding denominator.
type FunnelStepStat struct {
	StepNumber           int      `json:"step_number"`
	StepName             string   `json:"step_name"`
	TotalEntries         int      `json:"total_entries"`
	Progressed           int      `json:"progressed"`
	AvgTransitionMinutes *float64 `json:"avg_time_minutes"`
	DropOffPct           float64  `json:"drop_off_pct"`
	StepConversionPct    *float64 `json:"step_conversion_pct"`
}

// CohortCell is one offset column of a cohort row. RetentionPct is nil
// when the cohort's base (offset 0) population is zero.
type CohortCell struct {
	Offset       int      `json:"offset"`
	ActiveUsers  int      `json:"active_users"`
	RetentionPct *float64 `json:"retention_pct"`
}

// CohortRow is the retention series for one (cohort period, source) group.
type CohortRow struct {
	CohortPeriod time.Time    `json:"cohort_period"`
	Source       string       `json:"acquisition_source"`
	InitialUsers int          `json:"initial_users"`
	Cells        []CohortCell `json:"cells"`
}

// RFMRecord is one customer's recency/frequency/monetary scoring.
// Band scores are quintiles in 1..5 with 5 best; Total is their sum (3..15).
type RFMRecord struct {
	UserID         uuid.UUID       `json:"user_id"`
	RecencyDays    int             `json:"recency_days"`
	Frequency      int             `json:"frequency"`
	Monetary       decimal.Decimal `json:"monetary_value"`
	RecencyScore   int             `json:"r_score"`
	FrequencyScore int             `json:"f_score"`
	MonetaryScore  int             `json:"m_score"`
	Total          int             `json:"rfm_total"`
	Segment        string          `json:"segment"`
}

// RFM segment names, in rule priority order.
const (
	SegmentChampions  = "Champions"
	SegmentLoyal      = "Loyal Customers"
	SegmentNew        = "New Customers"
	SegmentAtRisk     = "At Risk"
	SegmentCannotLose = "Cannot Lose Them"
	SegmentOther      = "Others"
)

// RollupRow is one time bucket of the event/revenue rollup, optionally
// scoped to a single event type (EventType == "" means all types).
//
// RollingAvg is the trailing-window average of EventCount including the
// current bucket. PrevPeriodCount is the EventCount at the same offset one
// period earlier (nil when the series has no such bucket). GrowthPct
// compares against PrevPeriodCount and is nil when that value is 0 or
// absent. Cumulative is the running EventCount sum from the series start.
type RollupRow struct {
	Bucket          time.Time       `json:"bucket"`
	EventType       string          `json:"event_type,omitempty"`
	EventCount      int             `json:"event_count"`
	UniqueUsers     int             `json:"unique_users"`
	UniqueSessions  int             `json:"unique_sessions"`
	Revenue         decimal.Decimal `json:"revenue"`
	OrderCount      int             `json:"order_count"`
	AvgOrderValue   decimal.Decimal `json:"avg_order_value"`
	RollingAvg      *float64        `json:"rolling_avg"`
	PrevPeriodCount *int            `json:"prev_period_count"`
	GrowthPct       *float64        `json:"growth_pct"`
	Cumulative      int             `json:"cumulative"`
}

// RevenueRollupRow is one daily bucket of the revenue series with a 7-day
// rolling average, day-over-day growth and running cumulative revenue.
type RevenueRollupRow struct {
	Bucket            time.Time       `json:"date"`
	Revenue           decimal.Decimal `json:"revenue"`
	Orders            int             `json:"orders"`
	UniqueCustomers   int             `json:"unique_customers"`
	RollingAvg        *float64        `json:"rolling_7d_avg"`
	GrowthPct         *float64        `json:"daily_growth_pct"`
	CumulativeRevenue decimal.Decimal `json:"cumulative_revenue"`
}

// Anomaly classification statuses.
const (
	AnomalyStatusNormal  = "NORMAL"
	AnomalyStatusWarning = "WARNING"
	AnomalyStatusAnomaly = "ANOMALY"
)

// AnomalyRow is one evaluated bucket of the anomaly detector. Buckets
// without a full trailing baseline window are never emitted, so Mean and
// StdDev are always populated; ZScore is nil when StdDev is zero.
type AnomalyRow struct {
	Bucket        time.Time `json:"bucket"`
	ObservedCount int       `json:"observed_count"`
	Mean          float64   `json:"rolling_mean"`
	StdDev        float64   `json:"rolling_stddev"`
	ZScore        *float64  `json:"z_score"`
	Status        string    `json:"status"`
}

// TopProduct is one row of the completed-order product leaderboard,
// keyed by the order metadata product_id tag.
type TopProduct struct {
	ProductID      string          `json:"product_id"`
	TimesPurchased int             `json:"times_purchased"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
}

// RealtimeMetrics mirrors the live counters maintained on ingest.
type RealtimeMetrics struct {
	ActiveUsersNow  int64   `json:"active_users_now"`
	OrdersLastHour  int64   `json:"orders_last_hour"`
	RevenueLastHour float64 `json:"revenue_last_hour"`
	EventsPerSecond float64 `json:"events_per_second"`
}
