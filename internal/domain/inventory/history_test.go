package inventory

import (
	"testing"
	"time"
)

func historyFixture() ([]InventoryBatch, []StockMovement) {
	p := amoxProfile()
	batches := []InventoryBatch{
		{ID: "batch-a", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength,
			Quantity: 50, ExpiryDate: date(2025, 1, 1)},
		{ID: "batch-b", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength,
			Quantity: 30, ExpiryDate: date(2025, 6, 1)},
		{ID: "other", GenericName: "Ibuprofen", BrandName: "Advil", Strength: "200mg",
			Quantity: 10, ExpiryDate: date(2025, 2, 1)},
	}
	day := func(d int, h int) time.Time {
		return time.Date(2024, 11, d, h, 0, 0, 0, time.UTC)
	}
	movements := []StockMovement{
		{InventoryItemID: "batch-a", Type: MovementOut, Quantity: 4, Date: day(1, 9)},
		{InventoryItemID: "batch-a", Type: MovementOut, Quantity: 2, Date: day(1, 15)},
		{InventoryItemID: "batch-b", Type: MovementOut, Quantity: 5, Date: day(2, 10)},
		{InventoryItemID: "batch-a", Type: MovementIn, Quantity: 100, Date: day(2, 11)},
		{InventoryItemID: "other", Type: MovementOut, Quantity: 7, Date: day(2, 12)},
		{InventoryItemID: "batch-b", Type: MovementOut, Quantity: 1, Date: day(4, 8)},
	}
	return batches, movements
}

func TestBuildDailySeriesAggregation(t *testing.T) {
	batches, movements := historyFixture()
	series := BuildDailySeries(movements, batches, amoxProfile())

	if len(series) != 3 {
		t.Fatalf("expected 3 days, got %d", len(series))
	}

	// Day one merges two OUT movements across batches; IN movements and the
	// other profile's dispensing are excluded.
	if series[0].StockOutVolume != 6 {
		t.Errorf("day one volume: got %v, want 6", series[0].StockOutVolume)
	}
	if series[1].StockOutVolume != 5 || series[2].StockOutVolume != 1 {
		t.Errorf("unexpected volumes: %v, %v", series[1].StockOutVolume, series[2].StockOutVolume)
	}

	total := 0.0
	for _, p := range series {
		total += p.StockOutVolume
	}
	if total != 12 {
		t.Errorf("series total %v does not equal profile OUT total 12", total)
	}

	for i := 1; i < len(series); i++ {
		if !series[i-1].Date.Before(series[i].Date) {
			t.Error("series not sorted ascending by date")
		}
	}
}

func TestBuildDailySeriesShelfLifeUsesLatestExpiry(t *testing.T) {
	batches, movements := historyFixture()
	series := BuildDailySeries(movements, batches, amoxProfile())

	// Reference is batch-b (2025-06-01), the latest-expiring holding, not the
	// soonest-expiring one.
	wantDayOne := int(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).
		Sub(time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)).Hours() / 24)
	if series[0].RemainingShelfLife != wantDayOne {
		t.Errorf("day one shelf life: got %d, want %d", series[0].RemainingShelfLife, wantDayOne)
	}
}

func TestBuildDailySeriesNoBatches(t *testing.T) {
	_, movements := historyFixture()
	series := BuildDailySeries(movements, nil, amoxProfile())
	if len(series) != 0 {
		t.Errorf("expected empty series without matching batches, got %d points", len(series))
	}
}

func TestBuildDailySeriesUndatedDefaultShelfLife(t *testing.T) {
	p := amoxProfile()
	batches := []InventoryBatch{
		{ID: "undated", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength, Quantity: 10},
	}
	movements := []StockMovement{
		{InventoryItemID: "undated", Type: MovementOut, Quantity: 2,
			Date: time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)},
	}

	series := BuildDailySeries(movements, batches, p)
	if len(series) != 1 {
		t.Fatalf("expected 1 point, got %d", len(series))
	}
	if series[0].RemainingShelfLife != defaultShelfLifeDays {
		t.Errorf("expected %d-day default shelf life, got %d", defaultShelfLifeDays, series[0].RemainingShelfLife)
	}
}

func TestShelfLifeFloorsAtZero(t *testing.T) {
	expired := date(2024, 1, 1)
	if got := ShelfLifeDaysAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), expired); got != 0 {
		t.Errorf("expected 0 for expired reference, got %d", got)
	}
}
