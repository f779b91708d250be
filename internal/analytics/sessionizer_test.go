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

var sessTestBase = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func testEvent(userID *uuid.UUID, sessionKey, eventType string, at time.Time) models.Event {
	return models.Event{
		ID:         uuid.New(),
		UserID:     userID,
		SessionKey: sessionKey,
		EventType:  eventType,
		PagePath:   "/",
		CreatedAt:  at,
	}
}

func TestSessionizeGapSplitsSessions(t *testing.T) {
	uid := uuid.New()
	events := []models.Event{
		testEvent(&uid, "sk1", models.EventPageView, sessTestBase),
		testEvent(&uid, "sk1", models.EventPageView, sessTestBase.Add(10*time.Minute)),
		// 45 minutes of silence exceeds the 30-minute gap.
		testEvent(&uid, "sk1", models.EventPageView, sessTestBase.Add(55*time.Minute)),
	}

	sessions := Sessionize(events, DefaultSessionizerConfig())
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].EventCount != 2 || sessions[1].EventCount != 1 {
		t.Errorf("event counts = %d, %d, want 2, 1", sessions[0].EventCount, sessions[1].EventCount)
	}
	if sessions[0].DurationMinutes != 10 {
		t.Errorf("first session duration = %v, want 10", sessions[0].DurationMinutes)
	}
	if sessions[1].DurationMinutes != 0 {
		t.Errorf("isolated event duration = %v, want 0", sessions[1].DurationMinutes)
	}
}

func TestSessionizeGapAtThresholdDoesNotSplit(t *testing.T) {
	uid := uuid.New()
	events := []models.Event{
		testEvent(&uid, "sk1", models.EventPageView, sessTestBase),
		testEvent(&uid, "sk1", models.EventPageView, sessTestBase.Add(30*time.Minute)),
	}
	sessions := Sessionize(events, DefaultSessionizerConfig())
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1 (gap equal to threshold stays open)", len(sessions))
	}
}

func TestSessionizeAnonymousGroupsBySessionKey(t *testing.T) {
	events := []models.Event{
		testEvent(nil, "anonA", models.EventPageView, sessTestBase),
		testEvent(nil, "anonB", models.EventPageView, sessTestBase.Add(time.Minute)),
		testEvent(nil, "anonA", models.EventPageView, sessTestBase.Add(2*time.Minute)),
	}
	sessions := Sessionize(events, DefaultSessionizerConfig())
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2 (one per anonymous key)", len(sessions))
	}
}

func TestSessionizeConversionAndAttribution(t *testing.T) {
	uid := uuid.New()
	first := testEvent(&uid, "sk1", models.EventPageView, sessTestBase)
	first.Metadata = map[string]string{"referrer": "paid_search"}
	events := []models.Event{
		first,
		testEvent(&uid, "sk1", models.EventAddToCart, sessTestBase.Add(5*time.Minute)),
		testEvent(&uid, "sk1", models.EventPurchaseComplete, sessTestBase.Add(9*time.Minute)),
	}

	sessions := Sessionize(events, DefaultSessionizerConfig())
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if !sessions[0].Converted {
		t.Error("session with purchase_complete should be converted")
	}
	if sessions[0].Source != "paid_search" {
		t.Errorf("source = %q, want paid_search", sessions[0].Source)
	}
}

func TestSessionizeIdempotent(t *testing.T) {
	uid := uuid.New()
	events := []models.Event{
		testEvent(&uid, "sk1", models.EventPageView, sessTestBase),
		testEvent(nil, "anonA", models.EventPageView, sessTestBase.Add(time.Minute)),
		testEvent(&uid, "sk1", models.EventAddToCart, sessTestBase.Add(40*time.Minute)),
	}
	a := Sessionize(events, DefaultSessionizerConfig())
	b := Sessionize(events, DefaultSessionizerConfig())
	if len(a) != len(b) {
		t.Fatalf("recomputation changed session count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("session %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestBuildSessionOverview(t *testing.T) {
	uid := uuid.New()
	sessions := []models.Session{
		{UserID: &uid, SessionKey: "a", DurationMinutes: 10, EventCount: 4, Converted: true, Source: "organic"},
		{SessionKey: "b", DurationMinutes: 2, EventCount: 1, Source: "organic"},
		{SessionKey: "c", DurationMinutes: 6, EventCount: 3},
	}

	ov := BuildSessionOverview(sessions)
	if ov.TotalSessions != 3 || ov.ConvertedSessions != 1 {
		t.Fatalf("totals = %d/%d, want 3/1", ov.TotalSessions, ov.ConvertedSessions)
	}
	if ov.ConversionRatePct == nil || *ov.ConversionRatePct != 33.33 {
		t.Errorf("conversion rate = %v, want 33.33", ov.ConversionRatePct)
	}
	if ov.AvgDurationMinutes != 6 {
		t.Errorf("avg duration = %v, want 6", ov.AvgDurationMinutes)
	}
	if len(ov.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(ov.Sources))
	}
	if ov.Sources[0].Source != "organic" || ov.Sources[0].Sessions != 2 {
		t.Errorf("top source = %+v, want organic with 2 sessions", ov.Sources[0])
	}
	if ov.Sources[1].Source != "direct" {
		t.Errorf("empty source should report as direct, got %q", ov.Sources[1].Source)
	}
}

func TestBuildSessionOverviewEmpty(t *testing.T) {
	ov := BuildSessionOverview(nil)
	if ov.TotalSessions != 0 || ov.ConversionRatePct != nil {
		t.Fatalf("empty overview = %+v, want zeroes and nil rate", ov)
	}
}
