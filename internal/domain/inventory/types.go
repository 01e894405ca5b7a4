// Package inventory implements the pharmaceutical batch model, drug profile
// grouping, FEFO allocation, and historical demand aggregation. Everything in
// this package is a pure computation over caller-supplied slices: no I/O, no
// logging, no shared state between calls.
package inventory

import (
	"sort"
	"time"
)

// farFuture is the sort key for batches without an expiry date. Undated stock
// always loses a FEFO comparison against dated stock.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// defaultShelfLifeDays is the assumed remaining shelf life when a profile has
// no dated batches at all.
const defaultShelfLifeDays = 365

// DefaultReorderLevel applies when a batch carries no explicit reorder level.
const DefaultReorderLevel = 10

// DrugProfile identifies a medicine across all of its physical batches.
// Two batches belong to the same profile only on an exact match of all three
// fields.
type DrugProfile struct {
	GenericName string `json:"generic_name"`
	BrandName   string `json:"brand_name"`
	Strength    string `json:"strength"`
}

// Key returns the canonical grouping key for the profile.
func (p DrugProfile) Key() string {
	return p.GenericName + "|" + p.BrandName + "|" + p.Strength
}

// MovementType distinguishes stock receipts from dispensing.
type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

// InventoryBatch is a physical lot of one drug profile. Owned by the caller's
// inventory collection; this package only reads it. A nil ExpiryDate means
// the lot is undated: it sorts after all dated lots and contributes a
// 365-day default shelf life to forecasting.
type InventoryBatch struct {
	ID           string       `json:"id"`
	GenericName  string       `json:"generic_name"`
	BrandName    string       `json:"brand_name"`
	Strength     string       `json:"strength"`
	BatchNumber  string       `json:"batch_number"`
	Quantity     int          `json:"quantity"`
	ExpiryDate   *time.Time   `json:"expiry_date,omitempty"`
	DateReceived time.Time    `json:"date_received"`
	ReorderLevel int          `json:"reorder_level"`
}

// Profile returns the batch's drug profile.
func (b InventoryBatch) Profile() DrugProfile {
	return DrugProfile{GenericName: b.GenericName, BrandName: b.BrandName, Strength: b.Strength}
}

// EffectiveReorderLevel returns the batch reorder level, defaulted when unset.
func (b InventoryBatch) EffectiveReorderLevel() int {
	if b.ReorderLevel <= 0 {
		return DefaultReorderLevel
	}
	return b.ReorderLevel
}

// expiryOrFarFuture is the FEFO sort key.
func (b InventoryBatch) expiryOrFarFuture() time.Time {
	if b.ExpiryDate == nil {
		return farFuture
	}
	return *b.ExpiryDate
}

// StockMovement is an immutable historical stock fact for one batch.
type StockMovement struct {
	ID              string       `json:"id,omitempty"`
	InventoryItemID string       `json:"inventory_item_id"`
	Type            MovementType `json:"type"`
	Quantity        int          `json:"quantity"`
	Date            time.Time    `json:"date"`
}

// BatchSummary is the per-batch view held inside a DrugGroup.
type BatchSummary struct {
	ID          string     `json:"id"`
	BatchNumber string     `json:"batch_number"`
	Quantity    int        `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// DrugGroup aggregates all batches of one drug profile. Batches are always
// ordered by ascending expiry date; undated batches sort last.
type DrugGroup struct {
	Profile       DrugProfile    `json:"profile"`
	TotalQuantity int            `json:"total_quantity"`
	Batches       []BatchSummary `json:"batches"`
}

// GroupByProfile partitions a flat batch list into per-profile groups in FEFO
// order. An empty input yields an empty group list. Group order follows first
// appearance in the input so output is deterministic.
func GroupByProfile(batches []InventoryBatch) []DrugGroup {
	index := make(map[string]int)
	var groups []DrugGroup

	for _, b := range batches {
		key := b.Profile().Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DrugGroup{Profile: b.Profile()})
		}
		groups[i].TotalQuantity += b.Quantity
		groups[i].Batches = append(groups[i].Batches, BatchSummary{
			ID:          b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    b.Quantity,
			ExpiryDate:  b.ExpiryDate,
		})
	}

	for i := range groups {
		summaries := groups[i].Batches
		sort.SliceStable(summaries, func(a, b int) bool {
			return summaryExpiry(summaries[a]).Before(summaryExpiry(summaries[b]))
		})
	}

	return groups
}

func summaryExpiry(s BatchSummary) time.Time {
	if s.ExpiryDate == nil {
		return farFuture
	}
	return *s.ExpiryDate
}

// filterByProfile returns the batches matching a profile, preserving order.
func filterByProfile(batches []InventoryBatch, profile DrugProfile) []InventoryBatch {
	var out []InventoryBatch
	for _, b := range batches {
		if b.Profile() == profile {
			out = append(out, b)
		}
	}
	return out
}

// sortFEFO orders batches ascending by expiry, undated last. Stable so equal
// expiries keep input order.
func sortFEFO(batches []InventoryBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].expiryOrFarFuture().Before(batches[j].expiryOrFarFuture())
	})
}
