package inventory

import (
	"sort"
	"time"
)

// HistoricalDemandPoint is one calendar day of outbound volume for a drug
// profile, summed across all of the profile's batches.
type HistoricalDemandPoint struct {
	Date               time.Time `json:"date"`
	StockOutVolume     float64   `json:"stock_out_volume"`
	RemainingShelfLife int       `json:"remaining_shelf_life"`
}

// BuildDailySeries converts raw stock movements into a daily OUT-volume time
// series for one drug profile, ascending by date.
//
// RemainingShelfLife on each point counts days from that date to the
// latest-expiring batch currently held for the profile, floored at zero. The
// latest expiry is used as an optimistic reference: it assumes the freshest
// stock is what ultimately gets consumed. A profile with only undated batches
// gets the 365-day default.
//
// If no batches match the profile the series is empty regardless of movements.
func BuildDailySeries(movements []StockMovement, batches []InventoryBatch, profile DrugProfile) []HistoricalDemandPoint {
	owned := filterByProfile(batches, profile)
	if len(owned) == 0 {
		return nil
	}

	memberIDs := make(map[string]bool, len(owned))
	for _, b := range owned {
		memberIDs[b.ID] = true
	}

	byDay := make(map[time.Time]float64)
	for _, m := range movements {
		if m.Type != MovementOut || !memberIDs[m.InventoryItemID] {
			continue
		}
		day := truncateDay(m.Date)
		byDay[day] += float64(m.Quantity)
	}

	reference := latestExpiry(owned)

	series := make([]HistoricalDemandPoint, 0, len(byDay))
	for day, volume := range byDay {
		series = append(series, HistoricalDemandPoint{
			Date:               day,
			StockOutVolume:     volume,
			RemainingShelfLife: shelfLifeDays(day, reference),
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}

// LatestExpiry exposes the profile's optimistic shelf-life reference: the
// expiry of the latest-expiring dated batch, or nil when all batches are
// undated or none match.
func LatestExpiry(batches []InventoryBatch, profile DrugProfile) *time.Time {
	return latestExpiry(filterByProfile(batches, profile))
}

func latestExpiry(batches []InventoryBatch) *time.Time {
	var latest *time.Time
	for _, b := range batches {
		if b.ExpiryDate == nil {
			continue
		}
		if latest == nil || b.ExpiryDate.After(*latest) {
			latest = b.ExpiryDate
		}
	}
	return latest
}

// shelfLifeDays counts whole days from a given day to the reference expiry,
// floored at zero. A nil reference yields the 365-day default.
func shelfLifeDays(day time.Time, reference *time.Time) int {
	if reference == nil {
		return defaultShelfLifeDays
	}
	days := int(truncateDay(*reference).Sub(truncateDay(day)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ShelfLifeDaysAt is shelfLifeDays for callers outside the package.
func ShelfLifeDaysAt(day time.Time, reference *time.Time) int {
	return shelfLifeDays(day, reference)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
