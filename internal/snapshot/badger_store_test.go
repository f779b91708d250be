// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/metricus/metricus/internal/models"
)

func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	b, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return b
}

func TestSaveAndLoadLatest(t *testing.T) {
	b := newTestBadger(t)

	snap := &Snapshot{
		ComputedAt: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:    340 * time.Millisecond,
		SessionOverview: models.SessionOverview{
			TotalSessions:     12,
			ConvertedSessions: 3,
		},
		Funnel: []models.FunnelStepStat{
			{StepNumber: 1, StepName: models.EventPageView, TotalEntries: 100},
		},
	}
	if err := b.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := b.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if !got.ComputedAt.Equal(snap.ComputedAt) {
		t.Errorf("computed_at = %v, want %v", got.ComputedAt, snap.ComputedAt)
	}
	if got.SessionOverview.TotalSessions != 12 {
		t.Errorf("total sessions = %d, want 12", got.SessionOverview.TotalSessions)
	}
	if len(got.Funnel) != 1 || got.Funnel[0].TotalEntries != 100 {
		t.Errorf("funnel = %+v, want one step with 100 entries", got.Funnel)
	}
}

func TestLoadLatestOverwrites(t *testing.T) {
	b := newTestBadger(t)

	older := &Snapshot{ComputedAt: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)}
	newer := &Snapshot{ComputedAt: time.Date(2026, 7, 1, 12, 5, 0, 0, time.UTC)}
	if err := b.Save(older); err != nil {
		t.Fatalf("Save older: %v", err)
	}
	if err := b.Save(newer); err != nil {
		t.Fatalf("Save newer: %v", err)
	}

	got, err := b.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if !got.ComputedAt.Equal(newer.ComputedAt) {
		t.Errorf("latest = %v, want %v", got.ComputedAt, newer.ComputedAt)
	}
}

func TestLoadLatestEmpty(t *testing.T) {
	b := newTestBadger(t)
	if _, err := b.LoadLatest(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("error = %v, want ErrNoSnapshot", err)
	}
}

func TestSnapshotStaleness(t *testing.T) {
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	snap := &Snapshot{ComputedAt: at}

	if snap.Stale(at.Add(5*time.Minute), 15*time.Minute) {
		t.Error("snapshot stale at 5m with 15m threshold")
	}
	if !snap.Stale(at.Add(20*time.Minute), 15*time.Minute) {
		t.Error("snapshot not stale at 20m with 15m threshold")
	}
	if snap.Stale(at.Add(time.Hour), 0) {
		t.Error("zero threshold must disable staleness")
	}
}
