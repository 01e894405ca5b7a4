// Package handlers provides HTTP handlers for the inventory API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/codisol/dripstock/internal/api/middleware"
	"github.com/codisol/dripstock/internal/domain/inventory"
	"github.com/codisol/dripstock/internal/infrastructure/postgres"
	"github.com/codisol/dripstock/internal/observability/metrics"
)

// InventoryHandler handles allocation, grouping and movement endpoints
type InventoryHandler struct {
	store   *postgres.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewInventoryHandler creates a new handler
func NewInventoryHandler(store *postgres.Store, m *metrics.Metrics, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{store: store, metrics: m, logger: logger}
}

// AllocateRequest is the request body for a FEFO allocation
type AllocateRequest struct {
	GenericName string `json:"generic_name"`
	BrandName   string `json:"brand_name"`
	Strength    string `json:"strength"`
	Quantity    int    `json:"quantity"`
}

// AllocateResponse reports the batches an allocation drew from
type AllocateResponse struct {
	Profile     inventory.DrugProfile       `json:"profile"`
	Requested   int                         `json:"requested"`
	Allocations []inventory.BatchAllocation `json:"allocations"`
	AllocatedAt time.Time                   `json:"allocated_at"`
}

// Allocate handles POST /allocations
func (h *InventoryHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("inventory-handler")
	ctx, span := tracer.Start(ctx, "allocate_stock")
	defer span.End()

	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity < 0 {
		h.jsonError(w, "quantity must not be negative", http.StatusBadRequest)
		return
	}

	profile := inventory.DrugProfile{
		GenericName: req.GenericName,
		BrandName:   req.BrandName,
		Strength:    req.Strength,
	}
	span.SetAttributes(
		attribute.String("profile", profile.Key()),
		attribute.Int("requested", req.Quantity),
	)

	batches, err := h.store.ListBatchesByProfile(ctx, profile)
	if err != nil {
		h.logger.Error("list batches failed", zap.Error(err))
		h.jsonError(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}

	allocations, err := inventory.AllocateFEFO(batches, profile, req.Quantity)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	if err := h.store.ApplyAllocations(ctx, profile, req.Quantity, allocations); err != nil {
		if errors.Is(err, postgres.ErrStaleStock) {
			h.jsonError(w, "stock changed concurrently, retry", http.StatusConflict)
			return
		}
		h.logger.Error("apply allocations failed", zap.Error(err))
		h.jsonError(w, "failed to persist allocation", http.StatusInternalServerError)
		return
	}

	h.metrics.AllocationsTotal.Inc()
	h.checkLowStock(ctx, profile, batches, req.Quantity)

	h.logger.Info("stock allocated",
		zap.String("profile", profile.Key()),
		zap.Int("requested", req.Quantity),
		zap.Int("batches", len(allocations)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.writeJSON(w, http.StatusOK, AllocateResponse{
		Profile:     profile,
		Requested:   req.Quantity,
		Allocations: allocations,
		AllocatedAt: time.Now().UTC(),
	})
}

// AllocateBatchRequest is the request body for a single-batch allocation
type AllocateBatchRequest struct {
	BatchID  string `json:"batch_id"`
	Quantity int    `json:"quantity"`
}

// AllocateBatch handles POST /allocations/batch
func (h *InventoryHandler) AllocateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("inventory-handler")
	ctx, span := tracer.Start(ctx, "allocate_batch")
	defer span.End()

	var req AllocateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BatchID == "" {
		h.jsonError(w, "batch_id is required", http.StatusBadRequest)
		return
	}
	if req.Quantity < 0 {
		h.jsonError(w, "quantity must not be negative", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("batch_id", req.BatchID))

	batches, err := h.store.ListBatches(ctx)
	if err != nil {
		h.logger.Error("list batches failed", zap.Error(err))
		h.jsonError(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}

	allocation, err := inventory.AllocateBatch(batches, req.BatchID, req.Quantity)
	if err != nil {
		h.writeAllocationError(w, err)
		return
	}

	profile := allocation.Profile
	allocations := []inventory.BatchAllocation{*allocation}

	if err := h.store.ApplyAllocations(ctx, profile, req.Quantity, allocations); err != nil {
		if errors.Is(err, postgres.ErrStaleStock) {
			h.jsonError(w, "stock changed concurrently, retry", http.StatusConflict)
			return
		}
		h.logger.Error("apply allocations failed", zap.Error(err))
		h.jsonError(w, "failed to persist allocation", http.StatusInternalServerError)
		return
	}

	h.metrics.AllocationsTotal.Inc()

	h.writeJSON(w, http.StatusOK, AllocateResponse{
		Profile:     profile,
		Requested:   req.Quantity,
		Allocations: allocations,
		AllocatedAt: time.Now().UTC(),
	})
}

// Groups handles GET /groups
func (h *InventoryHandler) Groups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batches, err := h.store.ListBatches(ctx)
	if err != nil {
		h.logger.Error("list batches failed", zap.Error(err))
		h.jsonError(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}

	groups := inventory.GroupByProfile(batches)
	h.metrics.TrackedProfiles.Set(float64(len(groups)))

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
		"count":  len(groups),
	})
}

// MovementRequest is the request body for recording a stock movement
type MovementRequest struct {
	InventoryItemID string     `json:"inventory_item_id"`
	Type            string     `json:"type"`
	Quantity        int        `json:"quantity"`
	Date            *time.Time `json:"date,omitempty"`
}

// RecordMovement handles POST /movements
func (h *InventoryHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("inventory-handler")
	ctx, span := tracer.Start(ctx, "record_movement")
	defer span.End()

	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	movementType := inventory.MovementType(req.Type)
	if movementType != inventory.MovementIn && movementType != inventory.MovementOut {
		h.jsonError(w, "type must be IN or OUT", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		h.jsonError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}

	movement := inventory.StockMovement{
		InventoryItemID: req.InventoryItemID,
		Type:            movementType,
		Quantity:        req.Quantity,
	}
	if req.Date != nil {
		movement.Date = req.Date.UTC()
	}

	if err := h.store.RecordMovement(ctx, &movement); err != nil {
		switch {
		case errors.Is(err, postgres.ErrBatchNotFound):
			h.jsonError(w, "batch not found", http.StatusNotFound)
		case errors.Is(err, postgres.ErrStaleStock):
			h.jsonError(w, "insufficient quantity for movement", http.StatusConflict)
		default:
			h.logger.Error("record movement failed", zap.Error(err))
			h.jsonError(w, "failed to record movement", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.MovementsRecorded.WithLabelValues(string(movementType)).Inc()

	h.writeJSON(w, http.StatusCreated, movement)
}

// checkLowStock queues an alert when an allocation leaves a profile at or
// below its reorder level.
func (h *InventoryHandler) checkLowStock(ctx context.Context, profile inventory.DrugProfile, batches []inventory.InventoryBatch, allocated int) {
	available := 0
	reorderLevel := 0
	for _, b := range batches {
		available += b.Quantity
		if lvl := b.EffectiveReorderLevel(); lvl > reorderLevel {
			reorderLevel = lvl
		}
	}

	remaining := available - allocated
	if remaining > reorderLevel {
		return
	}

	if err := h.store.QueueLowStockAlert(ctx, profile, remaining, reorderLevel); err != nil {
		h.logger.Error("queue low stock alert failed",
			zap.String("profile", profile.Key()),
			zap.Error(err))
	}
}

func (h *InventoryHandler) writeAllocationError(w http.ResponseWriter, err error) {
	var insufficient *inventory.InsufficientStockError
	if errors.As(err, &insufficient) {
		h.metrics.InsufficientStock.Inc()
		h.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     "insufficient stock",
			"requested": insufficient.Requested,
			"available": insufficient.Available,
		})
		return
	}
	h.jsonError(w, err.Error(), http.StatusNotFound)
}

func (h *InventoryHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *InventoryHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
