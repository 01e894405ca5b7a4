package inventory

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func amoxProfile() DrugProfile {
	return DrugProfile{GenericName: "Amoxicillin", BrandName: "Amoxil", Strength: "500mg"}
}

func amoxBatches() []InventoryBatch {
	p := amoxProfile()
	return []InventoryBatch{
		{ID: "batch-a", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength,
			BatchNumber: "A-001", Quantity: 50, ExpiryDate: date(2025, 1, 1)},
		{ID: "batch-b", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength,
			BatchNumber: "B-002", Quantity: 30, ExpiryDate: date(2025, 6, 1)},
	}
}

func TestAllocateFEFOPrefersEarliestExpiry(t *testing.T) {
	allocations, err := AllocateFEFO(amoxBatches(), amoxProfile(), 60)
	if err != nil {
		t.Fatalf("allocation failed: %v", err)
	}

	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].InventoryItemID != "batch-a" || allocations[0].Quantity != 50 {
		t.Errorf("first allocation should exhaust batch-a with 50, got %s/%d",
			allocations[0].InventoryItemID, allocations[0].Quantity)
	}
	if allocations[1].InventoryItemID != "batch-b" || allocations[1].Quantity != 10 {
		t.Errorf("second allocation should draw 10 from batch-b, got %s/%d",
			allocations[1].InventoryItemID, allocations[1].Quantity)
	}
}

func TestAllocateFEFOConservation(t *testing.T) {
	for _, requested := range []int{1, 30, 50, 79, 80} {
		allocations, err := AllocateFEFO(amoxBatches(), amoxProfile(), requested)
		if err != nil {
			t.Fatalf("request %d failed: %v", requested, err)
		}
		total := 0
		for _, a := range allocations {
			total += a.Quantity
		}
		if total != requested {
			t.Errorf("request %d: allocations sum to %d", requested, total)
		}
	}
}

func TestAllocateFEFOOrdering(t *testing.T) {
	allocations, err := AllocateFEFO(amoxBatches(), amoxProfile(), 80)
	if err != nil {
		t.Fatalf("allocation failed: %v", err)
	}
	for i := 1; i < len(allocations); i++ {
		prev, cur := allocations[i-1].ExpiryDate, allocations[i].ExpiryDate
		if prev != nil && cur != nil && cur.Before(*prev) {
			t.Errorf("allocation %d expires before allocation %d", i, i-1)
		}
	}
	// Every batch except the last must be fully exhausted.
	batches := amoxBatches()
	for i := 0; i < len(allocations)-1; i++ {
		for _, b := range batches {
			if b.ID == allocations[i].InventoryItemID && allocations[i].Quantity != b.Quantity {
				t.Errorf("batch %s drawn partially before later expiry used", b.ID)
			}
		}
	}
}

func TestAllocateFEFOInsufficientStock(t *testing.T) {
	allocations, err := AllocateFEFO(amoxBatches(), amoxProfile(), 81)
	if allocations != nil {
		t.Error("expected no allocations on failure")
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var detail *InsufficientStockError
	if !errors.As(err, &detail) {
		t.Fatal("expected typed insufficient stock error")
	}
	if detail.Available != 80 || detail.Requested != 81 {
		t.Errorf("unexpected detail: available %d requested %d", detail.Available, detail.Requested)
	}
}

func TestAllocateFEFOZeroRequest(t *testing.T) {
	allocations, err := AllocateFEFO(amoxBatches(), amoxProfile(), 0)
	if err != nil {
		t.Fatalf("zero request failed: %v", err)
	}
	if len(allocations) != 0 {
		t.Errorf("expected no allocations for zero request, got %d", len(allocations))
	}
}

func TestAllocateFEFOSkipsEmptyAndUndatedLast(t *testing.T) {
	p := amoxProfile()
	batches := []InventoryBatch{
		{ID: "undated", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength, Quantity: 100},
		{ID: "empty", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength, Quantity: 0, ExpiryDate: date(2024, 1, 1)},
		{ID: "dated", GenericName: p.GenericName, BrandName: p.BrandName, Strength: p.Strength, Quantity: 10, ExpiryDate: date(2025, 3, 1)},
	}

	allocations, err := AllocateFEFO(batches, p, 15)
	if err != nil {
		t.Fatalf("allocation failed: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].InventoryItemID != "dated" || allocations[0].Quantity != 10 {
		t.Errorf("dated batch must be exhausted first, got %+v", allocations[0])
	}
	if allocations[1].InventoryItemID != "undated" || allocations[1].Quantity != 5 {
		t.Errorf("undated batch should top up last, got %+v", allocations[1])
	}
}

func TestAllocateBatch(t *testing.T) {
	allocation, err := AllocateBatch(amoxBatches(), "batch-b", 30)
	if err != nil {
		t.Fatalf("specific batch allocation failed: %v", err)
	}
	if allocation.InventoryItemID != "batch-b" || allocation.Quantity != 30 {
		t.Errorf("unexpected allocation: %+v", allocation)
	}
}

func TestAllocateBatchInsufficient(t *testing.T) {
	_, err := AllocateBatch(amoxBatches(), "batch-b", 31)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	var detail *InsufficientStockError
	if !errors.As(err, &detail) || detail.BatchID != "batch-b" {
		t.Errorf("expected batch-scoped detail, got %v", err)
	}
}

func TestAllocateBatchUnknownID(t *testing.T) {
	_, err := AllocateBatch(amoxBatches(), "missing", 1)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for unknown batch, got %v", err)
	}
}
