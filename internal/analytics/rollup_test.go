// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/metricus/metricus/internal/models"
)

func hourlyEvents(hour time.Time, n int) []models.Event {
	events := make([]models.Event, n)
	for i := range events {
		uid := uuid.New()
		events[i] = testEvent(&uid, "sk-"+uid.String(), models.EventPageView, hour.Add(time.Duration(i)*time.Second))
	}
	return events
}

func TestComputeRollupsBasicColumns(t *testing.T) {
	h0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	events := append(hourlyEvents(h0, 3), hourlyEvents(h0.Add(time.Hour), 5)...)

	rows := ComputeRollups(events, nil, RollupConfig{Granularity: GranularityHour, RollingWindow: 24, PriorPeriodLag: 24})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].EventCount != 3 || rows[1].EventCount != 5 {
		t.Errorf("counts = %d, %d, want 3, 5", rows[0].EventCount, rows[1].EventCount)
	}
	if rows[0].UniqueUsers != 3 || rows[0].UniqueSessions != 3 {
		t.Errorf("uniques = %d users / %d sessions, want 3/3", rows[0].UniqueUsers, rows[0].UniqueSessions)
	}
	if rows[0].Cumulative != 3 || rows[1].Cumulative != 8 {
		t.Errorf("cumulative = %d, %d, want 3, 8", rows[0].Cumulative, rows[1].Cumulative)
	}
	if rows[1].RollingAvg == nil || *rows[1].RollingAvg != 4 {
		t.Errorf("rolling avg = %v, want 4 (mean of 3 and 5)", rows[1].RollingAvg)
	}
	// The series is only two rows deep; no prior-period pair exists yet.
	if rows[1].PrevPeriodCount != nil || rows[1].GrowthPct != nil {
		t.Errorf("prior-period columns populated too early: %+v", rows[1])
	}
}

func TestComputeRollupsAbsentBucketsStayAbsent(t *testing.T) {
	h0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	// Events at 10:00 and 13:00; 11:00 and 12:00 are silent.
	events := append(hourlyEvents(h0, 2), hourlyEvents(h0.Add(3*time.Hour), 4)...)

	rows := ComputeRollups(events, nil, RollupConfig{Granularity: GranularityHour, RollingWindow: 2, PriorPeriodLag: 24})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (silent hours are not zero rows)", len(rows))
	}
	// The rolling window is row-based: the 13:00 row averages with 10:00,
	// not with the absent hours in between.
	if rows[1].RollingAvg == nil || *rows[1].RollingAvg != 3 {
		t.Errorf("rolling avg = %v, want 3 (rows 2 and 4)", rows[1].RollingAvg)
	}
}

func TestComputeRollupsPriorPeriodComparison(t *testing.T) {
	h0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var events []models.Event
	// 25 consecutive hours, 10 events each except the last with 15.
	for i := 0; i < 25; i++ {
		n := 10
		if i == 24 {
			n = 15
		}
		events = append(events, hourlyEvents(h0.Add(time.Duration(i)*time.Hour), n)...)
	}

	rows := ComputeRollups(events, nil, RollupConfig{Granularity: GranularityHour, RollingWindow: 24, PriorPeriodLag: 24})
	last := rows[len(rows)-1]
	if last.PrevPeriodCount == nil || *last.PrevPeriodCount != 10 {
		t.Fatalf("prev period count = %v, want 10", last.PrevPeriodCount)
	}
	if last.GrowthPct == nil || *last.GrowthPct != 50 {
		t.Errorf("growth = %v, want 50", last.GrowthPct)
	}
}

func TestComputeRollupsPerEventTypeSeries(t *testing.T) {
	h0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	uid := uuid.New()
	events := []models.Event{
		testEvent(&uid, "sk", models.EventPageView, h0),
		testEvent(&uid, "sk", models.EventPageView, h0.Add(time.Minute)),
		testEvent(&uid, "sk", models.EventAddToCart, h0.Add(2*time.Minute)),
	}

	rows := ComputeRollups(events, nil, DefaultRollupConfig())
	// One all-types row plus one row per event type.
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	byType := make(map[string]models.RollupRow)
	for _, r := range rows {
		byType[r.EventType] = r
	}
	if byType[""].EventCount != 3 {
		t.Errorf("all-types count = %d, want 3", byType[""].EventCount)
	}
	if byType[models.EventPageView].EventCount != 2 || byType[models.EventAddToCart].EventCount != 1 {
		t.Errorf("per-type counts = %d, %d, want 2, 1",
			byType[models.EventPageView].EventCount, byType[models.EventAddToCart].EventCount)
	}
}

func TestComputeRollupsRevenueAttribution(t *testing.T) {
	h0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	events := hourlyEvents(h0, 2)
	uid := uuid.New()
	orders := []models.Order{
		completedOrder(uid, "80.00", h0.Add(10*time.Minute)),
		completedOrder(uid, "40.00", h0.Add(20*time.Minute)),
	}
	// Pending orders never contribute revenue.
	pending := completedOrder(uid, "999.00", h0.Add(30*time.Minute))
	pending.Status = models.OrderStatusPending
	orders = append(orders, pending)

	rows := ComputeRollups(events, orders, RollupConfig{Granularity: GranularityHour})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if !rows[0].Revenue.Equal(decimal.RequireFromString("120.00")) {
		t.Errorf("revenue = %s, want 120.00", rows[0].Revenue)
	}
	if rows[0].OrderCount != 2 {
		t.Errorf("order count = %d, want 2", rows[0].OrderCount)
	}
	if !rows[0].AvgOrderValue.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("avg order value = %s, want 60.00", rows[0].AvgOrderValue)
	}
}

func TestComputeRevenueRollups(t *testing.T) {
	d0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	u1, u2 := uuid.New(), uuid.New()
	orders := []models.Order{
		completedOrder(u1, "100.00", d0.Add(9*time.Hour)),
		completedOrder(u2, "50.00", d0.Add(15*time.Hour)),
		completedOrder(u1, "300.00", d0.AddDate(0, 0, 1).Add(11*time.Hour)),
	}

	rows := ComputeRevenueRollups(orders)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	day1 := rows[0]
	if !day1.Revenue.Equal(decimal.RequireFromString("150.00")) || day1.Orders != 2 || day1.UniqueCustomers != 2 {
		t.Errorf("day 1 = %+v, want 150.00 revenue / 2 orders / 2 customers", day1)
	}
	if day1.GrowthPct != nil {
		t.Errorf("first day growth = %v, want nil", *day1.GrowthPct)
	}

	day2 := rows[1]
	if day2.GrowthPct == nil || *day2.GrowthPct != 100 {
		t.Errorf("day 2 growth = %v, want 100", day2.GrowthPct)
	}
	if day2.RollingAvg == nil || *day2.RollingAvg != 225 {
		t.Errorf("day 2 rolling avg = %v, want 225", day2.RollingAvg)
	}
	if !day2.CumulativeRevenue.Equal(decimal.RequireFromString("450.00")) {
		t.Errorf("cumulative = %s, want 450.00", day2.CumulativeRevenue)
	}
}

func TestComputeRollupsRecomputationInvariant(t *testing.T) {
	h0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var events []models.Event
	var orders []models.Order
	// 30 hours of uneven traffic so rolling averages, prior-period pairs,
	// growth and cumulative sums are all populated.
	for i := 0; i < 30; i++ {
		hour := h0.Add(time.Duration(i) * time.Hour)
		events = append(events, hourlyEvents(hour, 1+i%7)...)
		if i%3 == 0 {
			orders = append(orders, completedOrder(uuid.New(), "25.50", hour.Add(10*time.Minute)))
		}
	}
	cfg := RollupConfig{Granularity: GranularityHour, RollingWindow: 24, PriorPeriodLag: 24}

	first := ComputeRollups(events, orders, cfg)
	second := ComputeRollups(events, orders, cfg)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("recomputing rollups from the same source changed the rows:\n%+v\nvs\n%+v", first, second)
	}

	revFirst := ComputeRevenueRollups(orders)
	revSecond := ComputeRevenueRollups(orders)
	if !reflect.DeepEqual(revFirst, revSecond) {
		t.Errorf("recomputing revenue rollups from the same source changed the rows:\n%+v\nvs\n%+v", revFirst, revSecond)
	}
}

func TestComputeTopProducts(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	uid := uuid.New()
	withProduct := func(amount, productID string) models.Order {
		o := completedOrder(uid, amount, now)
		o.Metadata = map[string]string{"product_id": productID}
		return o
	}
	orders := []models.Order{
		withProduct("10.00", "sku-a"),
		withProduct("20.00", "sku-a"),
		withProduct("500.00", "sku-b"),
		completedOrder(uid, "99.00", now), // no product tag
	}

	top := ComputeTopProducts(orders, 10)
	if len(top) != 2 {
		t.Fatalf("got %d products, want 2", len(top))
	}
	if top[0].ProductID != "sku-a" || top[0].TimesPurchased != 2 {
		t.Errorf("top product = %+v, want sku-a purchased twice", top[0])
	}
	if !top[0].TotalRevenue.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("sku-a revenue = %s, want 30.00", top[0].TotalRevenue)
	}

	if capped := ComputeTopProducts(orders, 1); len(capped) != 1 {
		t.Errorf("limit 1 returned %d products", len(capped))
	}
}
