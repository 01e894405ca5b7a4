package inventory

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientStock is the sentinel for allocation failures. Callers use
// errors.Is against it and errors.As for the typed detail.
var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError reports an allocation request that exceeds available
// quantity, either across a profile or within one named batch. No partial
// allocation is ever returned alongside it.
type InsufficientStockError struct {
	Profile   DrugProfile
	BatchID   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.BatchID != "" {
		return fmt.Sprintf("insufficient stock in batch %s: requested %d, available %d",
			e.BatchID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Profile.Key(), e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// BatchAllocation records a quantity drawn from one physical batch to satisfy
// part of a dispensing request.
type BatchAllocation struct {
	InventoryItemID string      `json:"inventory_item_id"`
	BatchNumber     string      `json:"batch_number"`
	Profile         DrugProfile `json:"profile"`
	Quantity        int         `json:"quantity"`
	ExpiryDate      *time.Time  `json:"expiry_date,omitempty"`
}

// AllocateFEFO allocates a requested quantity across the profile's batches,
// earliest expiry first. A batch with a later expiry is only drawn from once
// every earlier-expiring batch is exhausted. On success the returned
// allocation quantities sum exactly to the request; on failure no allocations
// are returned. A zero request succeeds with no allocations.
func AllocateFEFO(batches []InventoryBatch, profile DrugProfile, requested int) ([]BatchAllocation, error) {
	if requested < 0 {
		requested = 0
	}

	var stocked []InventoryBatch
	available := 0
	for _, b := range filterByProfile(batches, profile) {
		if b.Quantity > 0 {
			stocked = append(stocked, b)
			available += b.Quantity
		}
	}

	if available < requested {
		return nil, &InsufficientStockError{Profile: profile, Requested: requested, Available: available}
	}
	if requested == 0 {
		return []BatchAllocation{}, nil
	}

	sortFEFO(stocked)

	var allocations []BatchAllocation
	remaining := requested
	for _, b := range stocked {
		if remaining == 0 {
			break
		}
		draw := b.Quantity
		if draw > remaining {
			draw = remaining
		}
		allocations = append(allocations, BatchAllocation{
			InventoryItemID: b.ID,
			BatchNumber:     b.BatchNumber,
			Profile:         profile,
			Quantity:        draw,
			ExpiryDate:      b.ExpiryDate,
		})
		remaining -= draw
	}

	return allocations, nil
}

// AllocateBatch draws the full quantity from one named batch, bypassing FEFO.
// It succeeds only if that batch alone holds enough stock; a caller choosing
// this path owns the policy consequences.
func AllocateBatch(batches []InventoryBatch, batchID string, requested int) (*BatchAllocation, error) {
	if requested < 0 {
		requested = 0
	}

	for _, b := range batches {
		if b.ID != batchID {
			continue
		}
		if b.Quantity < requested {
			return nil, &InsufficientStockError{
				Profile:   b.Profile(),
				BatchID:   batchID,
				Requested: requested,
				Available: b.Quantity,
			}
		}
		return &BatchAllocation{
			InventoryItemID: b.ID,
			BatchNumber:     b.BatchNumber,
			Profile:         b.Profile(),
			Quantity:        requested,
			ExpiryDate:      b.ExpiryDate,
		}, nil
	}

	return nil, &InsufficientStockError{BatchID: batchID, Requested: requested, Available: 0}
}
