// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"time"

	"github.com/metricus/metricus/internal/models"
)

// FunnelSteps is the ordered conversion funnel vocabulary. Events outside
// this set never affect funnel statistics.
var FunnelSteps = []string{
	models.EventPageView,
	models.EventAddToCart,
	models.EventCheckoutStart,
	models.EventPurchaseComplete,
}

// ComputeFunnel derives per-step funnel statistics from raw events. The unit
// of progression is the session (same grouping and gap rule as the
// sessionizer): a session enters a step when it contains at least one event
// of that step's type, and progresses when it also reached the next step.
// Only the first occurrence of each step within a session contributes to
// transition timing; out-of-order occurrences count for reach but a session
// whose first next-step event precedes its first current-step event adds no
// transition time sample.
//
// DropOffPct is 0 for a step with no entries. For the final step it reads
// 100 when any session reached it (there is nothing to progress to). The
// whole computation is a pure function of the input events.
func ComputeFunnel(events []models.Event, cfg SessionizerConfig) []models.FunnelStepStat {
	if cfg.InactivityGap <= 0 {
		cfg.InactivityGap = DefaultInactivityGap
	}

	stepIndex := make(map[string]int, len(FunnelSteps))
	for i, name := range FunnelSteps {
		stepIndex[name] = i
	}

	// firstReach[s] holds, per session, the timestamp of the first event of
	// step s observed in that session.
	type sessionReach [4]*time.Time
	var reaches []sessionReach

	sessions := groupSessionEvents(events, cfg)
	for _, run := range sessions {
		var reach sessionReach
		for i := range run {
			idx, ok := stepIndex[run[i].EventType]
			if !ok {
				continue
			}
			if reach[idx] == nil {
				ts := run[i].CreatedAt
				reach[idx] = &ts
			}
		}
		reaches = append(reaches, reach)
	}

	stats := make([]models.FunnelStepStat, len(FunnelSteps))
	for i, name := range FunnelSteps {
		stats[i] = models.FunnelStepStat{StepNumber: i + 1, StepName: name}
	}

	transitionSums := make([]float64, len(FunnelSteps))
	transitionCounts := make([]int, len(FunnelSteps))
	for _, reach := range reaches {
		for i := range FunnelSteps {
			if reach[i] == nil {
				continue
			}
			stats[i].TotalEntries++
			if i+1 < len(FunnelSteps) && reach[i+1] != nil {
				stats[i].Progressed++
				if !reach[i+1].Before(*reach[i]) {
					transitionSums[i] += reach[i+1].Sub(*reach[i]).Minutes()
					transitionCounts[i]++
				}
			}
		}
	}

	for i := range stats {
		entries := stats[i].TotalEntries
		if entries == 0 {
			continue
		}
		if i == len(stats)-1 {
			// Terminal step: everyone who arrives stays.
			stats[i].DropOffPct = 100
		} else {
			stats[i].DropOffPct = round2(float64(entries-stats[i].Progressed) / float64(entries) * 100)
		}
		if transitionCounts[i] > 0 {
			stats[i].AvgTransitionMinutes = float64Ptr(round2(transitionSums[i] / float64(transitionCounts[i])))
		}
		if i > 0 {
			// Conversion into this step counts sessions that progressed
			// from the previous step, not raw entries: a session reaching
			// this step without the previous one does not convert.
			stats[i].StepConversionPct = Pct(float64(stats[i-1].Progressed), float64(stats[i-1].TotalEntries))
		}
	}
	return stats
}

// groupSessionEvents splits events into chronological per-session runs using
// the same visitor grouping and inactivity gap as Sessionize, but keeps the
// raw event runs instead of folding them into Session summaries.
func groupSessionEvents(events []models.Event, cfg SessionizerConfig) [][]models.Event {
	groups := make(map[string][]models.Event)
	for _, ev := range events {
		key := visitorKey(&ev)
		groups[key] = append(groups[key], ev)
	}

	var runs [][]models.Event
	for _, run := range groups {
		sortEventsByTime(run)
		var current []models.Event
		for i := range run {
			if len(current) > 0 && run[i].CreatedAt.Sub(current[len(current)-1].CreatedAt) > cfg.InactivityGap {
				runs = append(runs, current)
				current = nil
			}
			current = append(current, run[i])
		}
		if len(current) > 0 {
			runs = append(runs, current)
		}
	}
	return runs
}
