package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/codisol/dripstock/internal/domain/inventory"
)

// RiskLevel is the ordinal depletion/expiry risk for a drug profile.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Expiry warning and risk windows, in days.
const (
	expiryWarningWindow  = 90
	expiryCriticalWindow = 30
	expiryHighWindow     = 60
)

// ExpiryWarning flags a batch approaching its expiry date.
type ExpiryWarning struct {
	InventoryItemID string    `json:"inventory_item_id"`
	BatchNumber     string    `json:"batch_number"`
	Quantity        int       `json:"quantity"`
	ExpiryDate      time.Time `json:"expiry_date"`
	DaysRemaining   int       `json:"days_remaining"`
}

// zScore maps the configured service level to the safety-stock z factor.
func zScore(serviceLevel float64) float64 {
	if serviceLevel >= 0.95 {
		return 1.65
	}
	return 1.28
}

// safetyStock derives buffer inventory from forecast variability:
// ceil(z * stddev(predicted) * sqrt(leadTime) * multiplier).
func safetyStock(predicted []float64, cfg Config) int {
	sd := stdDev(predicted)
	return int(math.Ceil(zScore(cfg.ServiceLevel) * sd * math.Sqrt(float64(cfg.LeadTimeDays)) * cfg.SafetyStockMultiplier))
}

// reorderPoint covers one week of forecast demand plus safety stock.
func reorderPoint(predicted []float64, safety int) int {
	window := predicted
	if len(window) > 7 {
		window = window[:7]
	}
	avg := 0.0
	if len(window) > 0 {
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		avg = sum / float64(len(window))
	}
	return int(math.Ceil(avg*7 + float64(safety)))
}

// expiryWarnings collects the profile's batches with fewer than 90 days of
// shelf life left (already-expired batches are excluded), ascending by days
// remaining.
func expiryWarnings(batches []inventory.InventoryBatch, profile inventory.DrugProfile, asOf time.Time) []ExpiryWarning {
	var warnings []ExpiryWarning
	for _, b := range batches {
		if b.Profile() != profile || b.ExpiryDate == nil {
			continue
		}
		days := inventory.ShelfLifeDaysAt(asOf, b.ExpiryDate)
		if days <= 0 || days >= expiryWarningWindow {
			continue
		}
		warnings = append(warnings, ExpiryWarning{
			InventoryItemID: b.ID,
			BatchNumber:     b.BatchNumber,
			Quantity:        b.Quantity,
			ExpiryDate:      *b.ExpiryDate,
			DaysRemaining:   days,
		})
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].DaysRemaining < warnings[j].DaysRemaining
	})
	return warnings
}

// nextRestockDate finds the first predicted day whose rolled-forward stock
// level is at or below the reorder point.
func nextRestockDate(predictions []Prediction, reorder int) *time.Time {
	for _, p := range predictions {
		if p.StockLevel <= float64(reorder) {
			d := p.Date
			return &d
		}
	}
	return nil
}

// classifyRisk evaluates the risk ladder in strict precedence order:
// critical, then high, then medium, then low.
func classifyRisk(currentStock, reorder int, predictions []Prediction, warnings []ExpiryWarning) RiskLevel {
	minExpiryDays := math.MaxInt
	for _, w := range warnings {
		if w.DaysRemaining < minExpiryDays {
			minExpiryDays = w.DaysRemaining
		}
	}

	if currentStock < reorder || minExpiryDays < expiryCriticalWindow {
		return RiskCritical
	}
	if hitsReorderWithin(predictions, reorder, 7) || minExpiryDays < expiryHighWindow {
		return RiskHigh
	}
	if hitsReorderWithin(predictions, reorder, 14) {
		return RiskMedium
	}
	return RiskLow
}

func hitsReorderWithin(predictions []Prediction, reorder, days int) bool {
	for i, p := range predictions {
		if i >= days {
			break
		}
		if p.StockLevel <= float64(reorder) {
			return true
		}
	}
	return false
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}
