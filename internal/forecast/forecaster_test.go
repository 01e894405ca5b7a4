package forecast

import (
	"errors"
	"testing"
	"time"

	"github.com/codisol/dripstock/internal/domain/inventory"
)

var testProfile = inventory.DrugProfile{GenericName: "Amoxicillin", BrandName: "Amoxil", Strength: "500mg"}

func testAsOf() time.Time {
	return time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
}

func testBatches() []inventory.InventoryBatch {
	exp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []inventory.InventoryBatch{
		{ID: "batch-a", GenericName: testProfile.GenericName, BrandName: testProfile.BrandName,
			Strength: testProfile.Strength, BatchNumber: "A-001", Quantity: 120, ExpiryDate: &exp},
	}
}

// dailyMovements fabricates one OUT movement per day for the given volumes,
// ending the day before asOf.
func dailyMovements(volumes []float64) []inventory.StockMovement {
	start := testAsOf().AddDate(0, 0, -len(volumes))
	movements := make([]inventory.StockMovement, len(volumes))
	for i, v := range volumes {
		movements[i] = inventory.StockMovement{
			InventoryItemID: "batch-a",
			Type:            inventory.MovementOut,
			Quantity:        int(v),
			Date:            start.AddDate(0, 0, i),
		}
	}
	return movements
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AsOf = testAsOf()
	return cfg
}

func TestGenerateNoMatchingDrug(t *testing.T) {
	in := Input{Profile: inventory.DrugProfile{GenericName: "Nothing", BrandName: "Here", Strength: "0mg"}}
	result, err := Generate(in, testConfig())
	if result != nil {
		t.Error("expected nil result")
	}
	if !errors.Is(err, ErrNoMatchingDrug) {
		t.Fatalf("expected ErrNoMatchingDrug, got %v", err)
	}
}

func TestGenerateFallbackNoHistory(t *testing.T) {
	in := Input{Batches: testBatches(), Profile: testProfile}
	result, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}

	if result.ModelConfidence != 30 {
		t.Errorf("fallback confidence = %v, want 30", result.ModelConfidence)
	}
	if result.Model != nil {
		t.Error("fallback path should not return a reservoir model")
	}
	if len(result.Predictions) != DefaultConfig().ForecastHorizon {
		t.Fatalf("expected %d predictions, got %d", DefaultConfig().ForecastHorizon, len(result.Predictions))
	}
	for _, p := range result.Predictions {
		if p.PredictedDemand != 1 {
			t.Fatalf("mean-of-empty history must default to flat demand 1, got %v", p.PredictedDemand)
		}
		if p.ConfidenceLower != 0.5 || p.ConfidenceUpper != 1.5 {
			t.Fatalf("fallback band should be ±50%%, got [%v, %v]", p.ConfidenceLower, p.ConfidenceUpper)
		}
	}
	if result.MarkovState.Current != RegimeLowActivity {
		t.Errorf("empty history should classify low_activity, got %s", result.MarkovState.Current)
	}
}

func TestGenerateFallbackSparseHistory(t *testing.T) {
	in := Input{
		Batches:   testBatches(),
		Movements: dailyMovements([]float64{4, 6}),
		Profile:   testProfile,
	}
	result, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	if result.ModelConfidence != 30 {
		t.Errorf("two history days must use the fallback, confidence %v", result.ModelConfidence)
	}
	for _, p := range result.Predictions {
		if p.PredictedDemand != 5 {
			t.Fatalf("expected flat mean demand 5, got %v", p.PredictedDemand)
		}
	}
}

func TestGenerateReservoirPath(t *testing.T) {
	volumes := []float64{3, 5, 4, 6, 5, 4, 7, 5, 6, 4}
	in := Input{Batches: testBatches(), Movements: dailyMovements(volumes), Profile: testProfile}
	result, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}

	if result.Model == nil {
		t.Fatal("reservoir path must return the trained model")
	}
	if len(result.Predictions) != DefaultConfig().ForecastHorizon {
		t.Fatalf("expected %d predictions, got %d", DefaultConfig().ForecastHorizon, len(result.Predictions))
	}

	wantConfidence := float64(len(volumes)) / 30 * 100
	if result.ModelConfidence != wantConfidence {
		t.Errorf("confidence = %v, want %v", result.ModelConfidence, wantConfidence)
	}

	prev := testAsOf()
	for i, p := range result.Predictions {
		if p.PredictedDemand < 0 || p.StockLevel < 0 || p.ConfidenceLower < 0 {
			t.Fatalf("prediction %d has negative values: %+v", i, p)
		}
		if !p.Date.Equal(prev.AddDate(0, 0, 1)) {
			t.Fatalf("prediction %d date %v not one day after %v", i, p.Date, prev)
		}
		prev = p.Date
		if p.ConfidenceUpper < p.ConfidenceLower {
			t.Fatalf("prediction %d band inverted", i)
		}
	}

	// Stock level never increases: demand only depletes.
	for i := 1; i < len(result.Predictions); i++ {
		if result.Predictions[i].StockLevel > result.Predictions[i-1].StockLevel {
			t.Fatal("stock level must be non-increasing over the horizon")
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	volumes := []float64{3, 5, 4, 6, 5, 4, 7, 5, 6, 4}
	in := Input{Batches: testBatches(), Movements: dailyMovements(volumes), Profile: testProfile}

	a, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	b, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	for i := range a.Predictions {
		if a.Predictions[i] != b.Predictions[i] {
			t.Fatalf("prediction %d differs between identical runs", i)
		}
	}
}

func TestGenerateConfidenceGrowsWithHistory(t *testing.T) {
	run := func(days int) float64 {
		volumes := make([]float64, days)
		for i := range volumes {
			volumes[i] = float64(3 + i%4)
		}
		in := Input{Batches: testBatches(), Movements: dailyMovements(volumes), Profile: testProfile}
		result, err := Generate(in, testConfig())
		if err != nil {
			t.Fatalf("forecast with %d days failed: %v", days, err)
		}
		return result.ModelConfidence
	}

	c5, c15, c29, c60 := run(5), run(15), run(29), run(60)
	if !(c5 < c15 && c15 < c29) {
		t.Errorf("confidence must strictly increase with history below the cap: %v %v %v", c5, c15, c29)
	}
	if c60 != 100 {
		t.Errorf("confidence must cap at 100, got %v", c60)
	}
}

func TestGenerateStoredModelReuse(t *testing.T) {
	volumes := []float64{3, 5, 4, 6, 5, 4, 7, 5, 6, 4}
	in := Input{Batches: testBatches(), Movements: dailyMovements(volumes), Profile: testProfile}

	first, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	in.StoredModel = first.Model
	second, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("stored-model run failed: %v", err)
	}

	for i := range first.Predictions {
		if first.Predictions[i] != second.Predictions[i] {
			t.Fatalf("stored model must reproduce the forecast, prediction %d differs", i)
		}
	}
}

func TestGenerateStoredModelSizeMismatch(t *testing.T) {
	volumes := []float64{3, 5, 4, 6, 5, 4, 7, 5, 6, 4}
	smallCfg := testConfig()
	smallCfg.ReservoirSize = 10
	in := Input{Batches: testBatches(), Movements: dailyMovements(volumes), Profile: testProfile}

	small, err := Generate(in, smallCfg)
	if err != nil {
		t.Fatalf("small model run failed: %v", err)
	}

	// Passing a 10-neuron model under a 50-neuron config must rebuild.
	in.StoredModel = small.Model
	result, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("mismatched-model run failed: %v", err)
	}
	if result.Model.Size != DefaultConfig().ReservoirSize {
		t.Errorf("expected rebuilt model of size %d, got %d", DefaultConfig().ReservoirSize, result.Model.Size)
	}
}

func TestGenerateExpiryWarningsInResult(t *testing.T) {
	exp := testAsOf().AddDate(0, 0, 25)
	batches := append(testBatches(), inventory.InventoryBatch{
		ID: "near-expiry", GenericName: testProfile.GenericName, BrandName: testProfile.BrandName,
		Strength: testProfile.Strength, BatchNumber: "N-001", Quantity: 10, ExpiryDate: &exp,
	})

	in := Input{Batches: batches, Profile: testProfile}
	result, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}

	if len(result.ExpiryWarnings) != 1 || result.ExpiryWarnings[0].InventoryItemID != "near-expiry" {
		t.Fatalf("expected one warning for the near-expiry batch, got %+v", result.ExpiryWarnings)
	}
	// 25 days remaining is inside the critical window.
	if result.RiskLevel != RiskCritical {
		t.Errorf("expiry under 30 days must be critical, got %s", result.RiskLevel)
	}
}

func TestGenerateCriticalWhenStockBelowReorder(t *testing.T) {
	// Heavy steady demand against thin stock: reorder point far exceeds
	// current stock, so risk is critical regardless of expiry data.
	batches := testBatches()
	batches[0].Quantity = 5
	volumes := []float64{9, 11, 10, 12, 10, 9, 11, 10, 12, 10}
	in := Input{Batches: batches, Movements: dailyMovements(volumes), Profile: testProfile}

	result, err := Generate(in, testConfig())
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	if result.CurrentStock != 5 {
		t.Fatalf("current stock = %d, want 5", result.CurrentStock)
	}
	if result.ReorderPoint <= result.CurrentStock {
		t.Skipf("fixture did not push reorder point above stock: %d", result.ReorderPoint)
	}
	if result.RiskLevel != RiskCritical {
		t.Errorf("stock below reorder point must be critical, got %s", result.RiskLevel)
	}
}
