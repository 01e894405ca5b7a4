package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/codisol/dripstock/internal/domain/inventory"
)

func TestZScore(t *testing.T) {
	if zScore(0.95) != 1.65 || zScore(0.99) != 1.65 {
		t.Error("service level >= 0.95 should use 1.65")
	}
	if zScore(0.90) != 1.28 {
		t.Error("service level < 0.95 should use 1.28")
	}
}

func TestSafetyStockFormula(t *testing.T) {
	cfg := DefaultConfig()
	// stddev({2,4}) = 1, so ceil(1.65 * 1 * sqrt(7) * 1.5) = 7.
	want := int(math.Ceil(1.65 * math.Sqrt(7) * 1.5))
	if got := safetyStock([]float64{2, 4}, cfg); got != want {
		t.Errorf("safety stock = %d, want %d", got, want)
	}
}

func TestSafetyStockFlatForecast(t *testing.T) {
	if got := safetyStock([]float64{3, 3, 3}, DefaultConfig()); got != 0 {
		t.Errorf("zero-variance forecast should need no safety stock, got %d", got)
	}
}

func TestReorderPoint(t *testing.T) {
	// avg of first 7 = 3; ceil(3*7 + 5) = 26.
	predicted := []float64{3, 3, 3, 3, 3, 3, 3, 100, 100}
	if got := reorderPoint(predicted, 5); got != 26 {
		t.Errorf("reorder point = %d, want 26", got)
	}
}

func TestExpiryWarningsWindow(t *testing.T) {
	asOf := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	p := inventory.DrugProfile{GenericName: "Amoxicillin", BrandName: "Amoxil", Strength: "500mg"}
	mk := func(id string, days int) inventory.InventoryBatch {
		exp := asOf.AddDate(0, 0, days)
		return inventory.InventoryBatch{ID: id, GenericName: p.GenericName, BrandName: p.BrandName,
			Strength: p.Strength, BatchNumber: id, Quantity: 10, ExpiryDate: &exp}
	}

	batches := []inventory.InventoryBatch{
		mk("expired", -5),
		mk("soon", 20),
		mk("later", 85),
		mk("safe", 120),
		mk("mid", 45),
	}

	warnings := expiryWarnings(batches, p, asOf)
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d", len(warnings))
	}
	got := []string{warnings[0].BatchNumber, warnings[1].BatchNumber, warnings[2].BatchNumber}
	want := []string{"soon", "mid", "later"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("warnings out of order: got %v, want %v", got, want)
		}
	}
}

func TestClassifyRiskPrecedence(t *testing.T) {
	flat := func(stock float64, days int) []Prediction {
		preds := make([]Prediction, days)
		for i := range preds {
			preds[i] = Prediction{StockLevel: stock}
		}
		return preds
	}
	warn := func(days int) []ExpiryWarning {
		return []ExpiryWarning{{DaysRemaining: days}}
	}

	tests := []struct {
		name         string
		currentStock int
		reorder      int
		predictions  []Prediction
		warnings     []ExpiryWarning
		want         RiskLevel
	}{
		{"stock below reorder is critical regardless of expiry", 5, 20, flat(100, 30), nil, RiskCritical},
		{"expiry under 30 days is critical", 100, 20, flat(100, 30), warn(29), RiskCritical},
		{"reorder hit within 7 days is high", 100, 20, flat(15, 30), nil, RiskHigh},
		{"expiry under 60 days is high", 100, 20, flat(100, 30), warn(45), RiskHigh},
		{"reorder hit within 14 days is medium", 100, 20, append(flat(100, 10), flat(15, 20)...), nil, RiskMedium},
		{"otherwise low", 100, 20, flat(100, 30), warn(80), RiskLow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRisk(tc.currentStock, tc.reorder, tc.predictions, tc.warnings)
			if got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNextRestockDate(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 12, d, 0, 0, 0, 0, time.UTC) }
	predictions := []Prediction{
		{Date: day(1), StockLevel: 50},
		{Date: day(2), StockLevel: 21},
		{Date: day(3), StockLevel: 20},
		{Date: day(4), StockLevel: 10},
	}

	got := nextRestockDate(predictions, 20)
	if got == nil || !got.Equal(day(3)) {
		t.Errorf("expected restock on day 3, got %v", got)
	}

	if nextRestockDate(predictions, 5) != nil {
		t.Error("expected no restock date when stock never reaches reorder point")
	}
}
