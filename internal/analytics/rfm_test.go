// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/metricus/metricus/internal/models"
)

func completedOrder(userID uuid.UUID, amount string, completedAt time.Time) models.Order {
	return models.Order{
		ID:          uuid.New(),
		UserID:      userID,
		OrderNumber: fmt.Sprintf("ORD-%s", uuid.NewString()[:8]),
		Status:      models.OrderStatusCompleted,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		ItemsCount:  1,
		CreatedAt:   completedAt.Add(-time.Hour),
		CompletedAt: &completedAt,
	}
}

func TestComputeRFMScoresAndBounds(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// 5 customers with strictly increasing engagement on every dimension.
	var orders []models.Order
	users := make([]uuid.UUID, 5)
	for i := range users {
		users[i] = uuid.New()
		// Customer i: last order (50-10*i) days ago, i+1 orders, $100*(i+1) each.
		for j := 0; j <= i; j++ {
			at := now.AddDate(0, 0, -(50 - 10*i + j))
			orders = append(orders, completedOrder(users[i], fmt.Sprintf("%d", 100*(i+1)), at))
		}
	}

	records := ComputeRFM(orders, now, DefaultRFMConfig())
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	for _, r := range records {
		if r.Total < 3 || r.Total > 15 {
			t.Errorf("user %s total = %d, outside 3..15", r.UserID, r.Total)
		}
		for _, band := range []int{r.RecencyScore, r.FrequencyScore, r.MonetaryScore} {
			if band < 1 || band > 5 {
				t.Errorf("user %s band = %d, outside 1..5", r.UserID, band)
			}
		}
	}

	// Output sorts best first; the most engaged customer leads with 15.
	if records[0].UserID != users[4] || records[0].Total != 15 {
		t.Errorf("top record = %s total %d, want %s with 15", records[0].UserID, records[0].Total, users[4])
	}
	if records[4].UserID != users[0] || records[4].Total != 3 {
		t.Errorf("bottom record = %s total %d, want %s with 3", records[4].UserID, records[4].Total, users[0])
	}
	if records[0].Segment != models.SegmentChampions {
		t.Errorf("top segment = %q, want Champions", records[0].Segment)
	}
}

func TestComputeRFMExcludesNonCompleted(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	uid := uuid.New()
	at := now.AddDate(0, 0, -5)
	pending := models.Order{ID: uuid.New(), UserID: uid, Status: models.OrderStatusPending,
		Amount: decimal.RequireFromString("500"), CreatedAt: at}
	refunded := completedOrder(uid, "250", at)
	refunded.Status = models.OrderStatusRefunded

	records := ComputeRFM([]models.Order{pending, refunded}, now, DefaultRFMConfig())
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0 (only completed orders score)", len(records))
	}
}

func TestComputeRFMLookbackWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	inside := uuid.New()
	outside := uuid.New()
	orders := []models.Order{
		completedOrder(inside, "100", now.AddDate(0, 0, -30)),
		completedOrder(outside, "100", now.AddDate(-2, 0, 0)),
	}

	records := ComputeRFM(orders, now, DefaultRFMConfig())
	if len(records) != 1 || records[0].UserID != inside {
		t.Fatalf("records = %+v, want only the in-window customer", records)
	}
	if records[0].RecencyDays != 30 {
		t.Errorf("recency = %d days, want 30", records[0].RecencyDays)
	}
	if records[0].Frequency != 1 {
		t.Errorf("frequency = %d, want 1", records[0].Frequency)
	}
	if !records[0].Monetary.Equal(decimal.RequireFromString("100")) {
		t.Errorf("monetary = %s, want 100", records[0].Monetary)
	}
}

func TestComputeRFMDeterministic(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var orders []models.Order
	for i := 0; i < 10; i++ {
		// Identical customers force quintile tie-breaks.
		orders = append(orders, completedOrder(uuid.New(), "100", now.AddDate(0, 0, -10)))
	}

	a := ComputeRFM(orders, now, DefaultRFMConfig())
	b := ComputeRFM(orders, now, DefaultRFMConfig())
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].UserID != b[i].UserID || a[i].Total != b[i].Total {
			t.Errorf("record %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestComputeRFMTopNCap(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var orders []models.Order
	for i := 0; i < 8; i++ {
		orders = append(orders, completedOrder(uuid.New(), "100", now.AddDate(0, 0, -10)))
	}
	records := ComputeRFM(orders, now, RFMConfig{Lookback: 365 * 24 * time.Hour, TopN: 3})
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (TopN cap)", len(records))
	}
}

func TestSegmentFor(t *testing.T) {
	cases := []struct {
		r, f, m int
		want    string
	}{
		{5, 5, 5, models.SegmentChampions},
		{3, 3, 3, models.SegmentLoyal}, // all bands >= 3, but not all >= 4
		{3, 4, 4, models.SegmentLoyal},
		{5, 1, 1, models.SegmentNew},
		{5, 2, 5, models.SegmentNew},
		{2, 3, 2, models.SegmentAtRisk},
		{1, 4, 1, models.SegmentAtRisk}, // high frequency alone is not loyal
		{1, 1, 5, models.SegmentCannotLose},
		{1, 1, 3, models.SegmentCannotLose},
		{2, 3, 1, models.SegmentAtRisk}, // at-risk outranks cannot-lose
		{3, 5, 2, models.SegmentOther},  // monetary band too low for loyal
		{1, 1, 2, models.SegmentOther},
		{3, 2, 5, models.SegmentOther},
	}
	for _, tc := range cases {
		rec := models.RFMRecord{RecencyScore: tc.r, FrequencyScore: tc.f, MonetaryScore: tc.m}
		if got := segmentFor(&rec); got != tc.want {
			t.Errorf("segmentFor(%d,%d,%d) = %q, want %q", tc.r, tc.f, tc.m, got, tc.want)
		}
	}
}
