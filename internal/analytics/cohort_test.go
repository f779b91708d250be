// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/metricus/metricus/internal/models"
)

func cohortUser(firstSeen time.Time, source string) models.User {
	return models.User{
		ID:                uuid.New(),
		FirstSeenAt:       firstSeen,
		LastSeenAt:        firstSeen,
		AcquisitionSource: source,
	}
}

func activityAt(userID uuid.UUID, at time.Time) models.Event {
	return models.Event{
		ID:        uuid.New(),
		UserID:    &userID,
		EventType: models.EventPageView,
		CreatedAt: at,
	}
}

func TestComputeCohortsRetention(t *testing.T) {
	day0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// 5 users join on day 0; all active that day, 2 return on day 3.
	users := make([]models.User, 5)
	var events []models.Event
	for i := range users {
		users[i] = cohortUser(day0.Add(9*time.Hour), "organic")
		events = append(events, activityAt(users[i].ID, day0.Add(9*time.Hour)))
	}
	events = append(events,
		activityAt(users[0].ID, day0.AddDate(0, 0, 3).Add(14*time.Hour)),
		activityAt(users[1].ID, day0.AddDate(0, 0, 3).Add(20*time.Hour)),
	)

	rows := ComputeCohorts(users, events, CohortConfig{Granularity: GranularityDay})
	if len(rows) != 1 {
		t.Fatalf("got %d cohort rows, want 1", len(rows))
	}
	row := rows[0]
	if !row.CohortPeriod.Equal(day0) {
		t.Errorf("cohort period = %v, want %v", row.CohortPeriod, day0)
	}
	if row.InitialUsers != 5 {
		t.Errorf("initial users = %d, want 5", row.InitialUsers)
	}
	if len(row.Cells) != 2 {
		t.Fatalf("got %d cells, want 2 (day 0 and day 3; silent days absent)", len(row.Cells))
	}

	base := row.Cells[0]
	if base.Offset != 0 || base.ActiveUsers != 5 {
		t.Fatalf("base cell = %+v, want offset 0 with 5 active", base)
	}
	if base.RetentionPct == nil || *base.RetentionPct != 100 {
		t.Errorf("base retention = %v, want 100", base.RetentionPct)
	}

	day3 := row.Cells[1]
	if day3.Offset != 3 || day3.ActiveUsers != 2 {
		t.Fatalf("day 3 cell = %+v, want offset 3 with 2 active", day3)
	}
	if day3.RetentionPct == nil || *day3.RetentionPct != 40 {
		t.Errorf("day 3 retention = %v, want 40", day3.RetentionPct)
	}
}

func TestComputeCohortsUserCountedOncePerOffset(t *testing.T) {
	day0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	u := cohortUser(day0, "organic")
	events := []models.Event{
		activityAt(u.ID, day0.AddDate(0, 0, 1).Add(8*time.Hour)),
		activityAt(u.ID, day0.AddDate(0, 0, 1).Add(17*time.Hour)),
	}

	rows := ComputeCohorts([]models.User{u}, events, CohortConfig{Granularity: GranularityDay})
	if len(rows) != 1 || len(rows[0].Cells) != 1 {
		t.Fatalf("rows = %+v, want one row with one cell", rows)
	}
	if rows[0].Cells[0].ActiveUsers != 1 {
		t.Errorf("active users = %d, want 1 (distinct per offset)", rows[0].Cells[0].ActiveUsers)
	}
}

func TestComputeCohortsZeroBaseNilRetention(t *testing.T) {
	day0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	u := cohortUser(day0, "organic")
	// Only a day 2 event: no offset-0 cell exists, so the base is zero.
	events := []models.Event{activityAt(u.ID, day0.AddDate(0, 0, 2))}

	rows := ComputeCohorts([]models.User{u}, events, CohortConfig{Granularity: GranularityDay})
	if len(rows) != 1 || len(rows[0].Cells) != 1 {
		t.Fatalf("rows = %+v, want one row with one cell", rows)
	}
	if rows[0].Cells[0].RetentionPct != nil {
		t.Errorf("retention with zero base = %v, want nil", *rows[0].Cells[0].RetentionPct)
	}
}

func TestComputeCohortsBySource(t *testing.T) {
	day0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	organic := cohortUser(day0, "organic")
	unattributed := cohortUser(day0, "")
	events := []models.Event{
		activityAt(organic.ID, day0),
		activityAt(unattributed.ID, day0),
	}

	rows := ComputeCohorts([]models.User{organic, unattributed}, events,
		CohortConfig{Granularity: GranularityDay, BySource: true})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (split by source)", len(rows))
	}
	if rows[0].Source != "organic" || rows[1].Source != "unknown" {
		t.Errorf("sources = %q, %q, want organic, unknown", rows[0].Source, rows[1].Source)
	}
}

func TestComputeCohortsWeekGranularity(t *testing.T) {
	// Monday of one week; activity the following Wednesday lands at offset 1.
	monday := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	u := cohortUser(monday.Add(10*time.Hour), "organic")
	events := []models.Event{
		activityAt(u.ID, monday.Add(10*time.Hour)),
		activityAt(u.ID, monday.AddDate(0, 0, 9)),
	}

	rows := ComputeCohorts([]models.User{u}, events, CohortConfig{Granularity: GranularityWeek})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if !rows[0].CohortPeriod.Equal(monday) {
		t.Errorf("cohort period = %v, want %v", rows[0].CohortPeriod, monday)
	}
	if len(rows[0].Cells) != 2 || rows[0].Cells[1].Offset != 1 {
		t.Fatalf("cells = %+v, want offsets 0 and 1", rows[0].Cells)
	}
}
