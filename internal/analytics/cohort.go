// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/metricus/metricus/internal/models"
)

// CohortConfig configures retention computation.
type CohortConfig struct {
	// Granularity is the cohort period: hour, day or week. Default: day.
	Granularity string

	// MaxOffset caps the emitted offsets per cohort row. Zero means no cap.
	MaxOffset int

	// BySource additionally partitions cohorts by acquisition source.
	BySource bool
}

// ComputeCohorts builds retention rows from users and their activity events.
// A user's cohort is the truncated period of FirstSeenAt; each activity
// event contributes the user once to the cell at offset
// periodsBetween(cohort, truncate(event time)). Activity before the cohort
// period is ignored. Offset 0 is the cohort's base population for retention
// percentages; cells with no active users are simply absent.
//
// With BySource set, rows are further split by the user's acquisition
// source (empty source reported as "unknown").
func ComputeCohorts(users []models.User, events []models.Event, cfg CohortConfig) []models.CohortRow {
	if cfg.Granularity == "" {
		cfg.Granularity = GranularityDay
	}

	type cohortKey struct {
		period time.Time
		source string
	}

	userCohort := make(map[uuid.UUID]cohortKey, len(users))
	initial := make(map[cohortKey]int)
	for i := range users {
		key := cohortKey{period: truncatePeriod(users[i].FirstSeenAt, cfg.Granularity)}
		if cfg.BySource {
			key.source = users[i].AcquisitionSource
			if key.source == "" {
				key.source = "unknown"
			}
		}
		userCohort[users[i].ID] = key
		initial[key]++
	}

	// active[key][offset] is the set of distinct users of that cohort seen
	// active at that offset.
	active := make(map[cohortKey]map[int]map[uuid.UUID]struct{})
	for i := range events {
		if events[i].UserID == nil {
			continue
		}
		key, ok := userCohort[*events[i].UserID]
		if !ok {
			continue
		}
		bucket := truncatePeriod(events[i].CreatedAt, cfg.Granularity)
		if bucket.Before(key.period) {
			continue
		}
		offset := periodsBetween(key.period, bucket, cfg.Granularity)
		if cfg.MaxOffset > 0 && offset > cfg.MaxOffset {
			continue
		}
		offsets := active[key]
		if offsets == nil {
			offsets = make(map[int]map[uuid.UUID]struct{})
			active[key] = offsets
		}
		set := offsets[offset]
		if set == nil {
			set = make(map[uuid.UUID]struct{})
			offsets[offset] = set
		}
		set[*events[i].UserID] = struct{}{}
	}

	rows := make([]models.CohortRow, 0, len(initial))
	for key, initialUsers := range initial {
		row := models.CohortRow{
			CohortPeriod: key.period,
			Source:       key.source,
			InitialUsers: initialUsers,
		}

		base := 0
		if set, ok := active[key][0]; ok {
			base = len(set)
		}

		offsets := make([]int, 0, len(active[key]))
		for off := range active[key] {
			offsets = append(offsets, off)
		}
		sort.Ints(offsets)
		for _, off := range offsets {
			count := len(active[key][off])
			row.Cells = append(row.Cells, models.CohortCell{
				Offset:       off,
				ActiveUsers:  count,
				RetentionPct: Pct(float64(count), float64(base)),
			})
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CohortPeriod.Equal(rows[j].CohortPeriod) {
			return rows[i].CohortPeriod.Before(rows[j].CohortPeriod)
		}
		return rows[i].Source < rows[j].Source
	})
	return rows
}
