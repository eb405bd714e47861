package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maisoong/exchange_backend/utils"
)

func TestAggregateRateStats(t *testing.T) {
	at := func(day, hour int) time.Time {
		return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
	}
	rows := []RateHistory{
		{RateType: RateTypeSell, ExchangeRate: dec("0.0080"), RecordedAt: at(2, 3)},
		{RateType: RateTypeBuy, ExchangeRate: dec("0.0078"), RecordedAt: at(2, 4)},
		{RateType: RateTypeBuy, ExchangeRate: dec("0.0082"), RecordedAt: at(2, 5)},
		// 2024-01-01 18:00 UTC is already 2024-01-02 in Bangkok
		{RateType: RateTypeBuy, ExchangeRate: dec("0.0080"), RecordedAt: at(1, 18)},
		{RateType: RateTypeBuy, ExchangeRate: dec("0.0070"), RecordedAt: at(1, 3)},
	}

	stats := aggregateRateStats(rows)
	if len(stats) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(stats))
	}

	order := []struct {
		date     string
		rateType RateType
	}{
		{"2024-01-02", RateTypeBuy},
		{"2024-01-02", RateTypeSell},
		{"2024-01-01", RateTypeBuy},
	}
	for i, want := range order {
		if stats[i].Date != want.date || stats[i].RateType != want.rateType {
			t.Fatalf("bucket %d: expected %s/%s, got %s/%s", i, want.date, want.rateType, stats[i].Date, stats[i].RateType)
		}
	}

	buy := stats[0]
	if buy.Count != 3 {
		t.Fatalf("expected 3 buy observations on 2024-01-02, got %d", buy.Count)
	}
	assertDecimal(t, "avg_rate", "0.008", buy.AvgRate)
	assertDecimal(t, "min_rate", "0.0078", buy.MinRate)
	assertDecimal(t, "max_rate", "0.0082", buy.MaxRate)

	if stats[1].Count != 1 || !stats[1].MinRate.Equal(stats[1].MaxRate) {
		t.Fatalf("expected a single sell observation, got %+v", stats[1])
	}
}

func TestAggregateRateStats_Empty(t *testing.T) {
	if stats := aggregateRateStats(nil); len(stats) != 0 {
		t.Fatalf("expected no buckets, got %d", len(stats))
	}
}

func TestRateStats_TrailingDays(t *testing.T) {
	l, clock := newTestLedger(t)
	s := mustSupplier(t, l, "Counter A")
	ctx := context.Background()

	clock.Set(time.Date(2023, 12, 25, 3, 0, 0, 0, time.UTC))
	mustPurchase(t, l, s.ID, "100", "0.0075")
	clock.Set(testNow)
	mustPurchase(t, l, s.ID, "100", "0.0079")
	mustSale(t, l, s.ID, "50", "0.0081")

	week, err := l.RateStats(ctx, &s.ID, 0)
	if err != nil {
		t.Fatalf("RateStats: %v", err)
	}
	if len(week) != 2 {
		t.Fatalf("expected today's buy and sell only, got %d buckets", len(week))
	}
	for _, stat := range week {
		if stat.Date != "2024-01-02" {
			t.Fatalf("expected only 2024-01-02 in the default window, got %s", stat.Date)
		}
	}

	longer, err := l.RateStats(ctx, &s.ID, 10)
	if err != nil {
		t.Fatalf("RateStats: %v", err)
	}
	if len(longer) != 3 || longer[2].Date != "2023-12-25" {
		t.Fatalf("expected the 2023-12-25 bucket last, got %+v", longer)
	}

	other := mustSupplier(t, l, "Counter B")
	none, err := l.RateStats(ctx, &other.ID, 7)
	if err != nil {
		t.Fatalf("RateStats: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no stats for an idle supplier, got %d", len(none))
	}
}

func TestListRateHistory_Filters(t *testing.T) {
	l, clock := newTestLedger(t)
	s := mustSupplier(t, l, "Counter A")
	ctx := context.Background()

	mustPurchase(t, l, s.ID, "100", "0.0079")
	mustSale(t, l, s.ID, "50", "0.0081")
	clock.Advance(24 * time.Hour)
	mustPurchase(t, l, s.ID, "100", "0.0080")

	sell := RateTypeSell
	sells, err := l.ListRateHistory(ctx, RateFilter{RateType: &sell})
	if err != nil {
		t.Fatalf("ListRateHistory: %v", err)
	}
	if len(sells) != 1 || sells[0].RateType != RateTypeSell {
		t.Fatalf("expected one sell rate, got %+v", sells)
	}

	jan2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	firstDay, err := l.ListRateHistory(ctx, RateFilter{StartDate: &jan2, EndDate: &jan2})
	if err != nil {
		t.Fatalf("ListRateHistory: %v", err)
	}
	if len(firstDay) != 2 {
		t.Fatalf("expected 2 rates on 2024-01-02, got %d", len(firstDay))
	}

	latest, err := l.ListRateHistory(ctx, RateFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListRateHistory: %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(latest))
	}
	assertDecimal(t, "newest rate", "0.008", latest[0].ExchangeRate)

	bogus := RateType("hold")
	if _, err := l.ListRateHistory(ctx, RateFilter{RateType: &bogus}); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected validation error for unknown rate type, got %v", err)
	}
}

func TestRecordRate_RejectsUnknownType(t *testing.T) {
	l, _ := newTestLedger(t)
	s := mustSupplier(t, l, "Counter A")
	_, err := l.RecordRate(context.Background(), s.ID, RateType("hold"), dec("0.008"), dec("100"), dec("0.8"))
	if !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
