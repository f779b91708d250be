// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"sort"
	"time"

	"github.com/metricus/metricus/internal/models"
)

// DefaultInactivityGap is the idle interval that closes a session.
const DefaultInactivityGap = 30 * time.Minute

// SessionizerConfig configures session derivation.
type SessionizerConfig struct {
	// InactivityGap splits two consecutive events of the same visitor into
	// separate sessions when exceeded. Default: 30 minutes.
	InactivityGap time.Duration

	// ConversionEvent marks a session converted when any of its events has
	// this type. Default: purchase_complete.
	ConversionEvent string
}

// DefaultSessionizerConfig returns the production defaults.
func DefaultSessionizerConfig() SessionizerConfig {
	return SessionizerConfig{
		InactivityGap:   DefaultInactivityGap,
		ConversionEvent: models.EventPurchaseComplete,
	}
}

// Sessionize groups events into sessions per visitor using the
// inactivity-gap rule. Events are grouped by user when one is attached,
// otherwise by their client session key, then scanned chronologically: a
// gap greater than the threshold starts a new session, anything else
// accumulates into the current one. A single isolated event still forms a
// one-event session.
//
// The result is deterministic for a given input set: groups are scanned in
// sorted key order and events in timestamp order, so recomputation always
// yields identical sessions.
func Sessionize(events []models.Event, cfg SessionizerConfig) []models.Session {
	if cfg.InactivityGap <= 0 {
		cfg.InactivityGap = DefaultInactivityGap
	}
	if cfg.ConversionEvent == "" {
		cfg.ConversionEvent = models.EventPurchaseComplete
	}

	groups := make(map[string][]models.Event)
	for _, ev := range events {
		groups[visitorKey(&ev)] = append(groups[visitorKey(&ev)], ev)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sessions []models.Session
	for _, key := range keys {
		run := groups[key]
		sortEventsByTime(run)

		var current []models.Event
		for i := range run {
			if len(current) > 0 && run[i].CreatedAt.Sub(current[len(current)-1].CreatedAt) > cfg.InactivityGap {
				sessions = append(sessions, buildSession(current, cfg))
				current = nil
			}
			current = append(current, run[i])
		}
		if len(current) > 0 {
			sessions = append(sessions, buildSession(current, cfg))
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].Start.Equal(sessions[j].Start) {
			return sessions[i].Start.Before(sessions[j].Start)
		}
		return sessions[i].SessionKey < sessions[j].SessionKey
	})
	return sessions
}

func sortEventsByTime(run []models.Event) {
	sort.SliceStable(run, func(i, j int) bool {
		return run[i].CreatedAt.Before(run[j].CreatedAt)
	})
}

// visitorKey identifies the stream a session belongs to: the owning user
// when known, otherwise the anonymous client session key.
func visitorKey(ev *models.Event) string {
	if ev.UserID != nil {
		return "user:" + ev.UserID.String()
	}
	return "anon:" + ev.SessionKey
}

// buildSession folds a chronological event run into a derived session.
// Attribution comes from the first event carrying a non-empty
// referrer/campaign tag.
func buildSession(run []models.Event, cfg SessionizerConfig) models.Session {
	first, last := run[0], run[len(run)-1]

	pages := make(map[string]struct{})
	converted := false
	source := ""
	for i := range run {
		if run[i].PagePath != "" {
			pages[run[i].PagePath] = struct{}{}
		}
		if run[i].EventType == cfg.ConversionEvent {
			converted = true
		}
		if source == "" {
			source = run[i].Referrer()
		}
	}

	return models.Session{
		UserID:          first.UserID,
		SessionKey:      first.SessionKey,
		Start:           first.CreatedAt,
		End:             last.CreatedAt,
		DurationMinutes: last.CreatedAt.Sub(first.CreatedAt).Minutes(),
		EventCount:      len(run),
		UniquePages:     len(pages),
		Converted:       converted,
		Source:          source,
	}
}

// BuildSessionOverview aggregates a sessionization pass for the dashboard:
// totals, conversion rate and a per-source breakdown sorted by volume.
func BuildSessionOverview(sessions []models.Session) models.SessionOverview {
	overview := models.SessionOverview{TotalSessions: len(sessions)}
	if len(sessions) == 0 {
		overview.Sources = []models.SessionSourceStat{}
		return overview
	}

	var totalDuration, totalEvents float64
	type sourceAgg struct {
		sessions  int
		converted int
	}
	bySource := make(map[string]*sourceAgg)

	for i := range sessions {
		s := &sessions[i]
		totalDuration += s.DurationMinutes
		totalEvents += float64(s.EventCount)
		if s.Converted {
			overview.ConvertedSessions++
		}

		src := s.Source
		if src == "" {
			src = "direct"
		}
		agg := bySource[src]
		if agg == nil {
			agg = &sourceAgg{}
			bySource[src] = agg
		}
		agg.sessions++
		if s.Converted {
			agg.converted++
		}
	}

	overview.ConversionRatePct = Pct(float64(overview.ConvertedSessions), float64(overview.TotalSessions))
	overview.AvgDurationMinutes = round2(totalDuration / float64(len(sessions)))
	overview.AvgEventsPerSess = round2(totalEvents / float64(len(sessions)))

	overview.Sources = make([]models.SessionSourceStat, 0, len(bySource))
	for src, agg := range bySource {
		overview.Sources = append(overview.Sources, models.SessionSourceStat{
			Source:            src,
			Sessions:          agg.sessions,
			Converted:         agg.converted,
			ConversionRatePct: Pct(float64(agg.converted), float64(agg.sessions)),
		})
	}
	sort.Slice(overview.Sources, func(i, j int) bool {
		if overview.Sources[i].Sessions != overview.Sources[j].Sessions {
			return overview.Sources[i].Sessions > overview.Sources[j].Sessions
		}
		return overview.Sources[i].Source < overview.Sources[j].Source
	})
	return overview
}
