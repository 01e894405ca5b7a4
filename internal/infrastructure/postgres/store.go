package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/codisol/dripstock/internal/domain/inventory"
)

// ErrBatchNotFound indicates the referenced batch does not exist
var ErrBatchNotFound = errors.New("batch not found")

// ErrStaleStock indicates a concurrent update consumed the stock first
var ErrStaleStock = errors.New("stock changed concurrently")

// Store provides relational persistence for batches, movements, and
// forecast model snapshots.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a new store
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// ListBatches retrieves all inventory batches
func (s *Store) ListBatches(ctx context.Context) ([]inventory.InventoryBatch, error) {
	query := `
		SELECT id, generic_name, brand_name, strength, batch_number,
		       quantity, expiry_date, reorder_level
		FROM inventory_batches
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	return scanBatches(rows)
}

// ListBatchesByProfile retrieves the batches holding one drug profile
func (s *Store) ListBatchesByProfile(ctx context.Context, profile inventory.DrugProfile) ([]inventory.InventoryBatch, error) {
	query := `
		SELECT id, generic_name, brand_name, strength, batch_number,
		       quantity, expiry_date, reorder_level
		FROM inventory_batches
		WHERE generic_name = $1 AND brand_name = $2 AND strength = $3
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, profile.GenericName, profile.BrandName, profile.Strength)
	if err != nil {
		return nil, fmt.Errorf("list batches by profile: %w", err)
	}
	defer rows.Close()

	return scanBatches(rows)
}

func scanBatches(rows pgx.Rows) ([]inventory.InventoryBatch, error) {
	var batches []inventory.InventoryBatch
	for rows.Next() {
		var b inventory.InventoryBatch
		err := rows.Scan(
			&b.ID, &b.GenericName, &b.BrandName, &b.Strength,
			&b.BatchNumber, &b.Quantity, &b.ExpiryDate, &b.ReorderLevel,
		)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// ListMovements retrieves stock movements recorded at or after since
func (s *Store) ListMovements(ctx context.Context, since time.Time) ([]inventory.StockMovement, error) {
	query := `
		SELECT id, inventory_item_id, type, quantity, date
		FROM stock_movements
		WHERE date >= $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var movements []inventory.StockMovement
	for rows.Next() {
		var m inventory.StockMovement
		if err := rows.Scan(&m.ID, &m.InventoryItemID, &m.Type, &m.Quantity, &m.Date); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// RecordMovement inserts a movement, adjusts the batch quantity, and writes
// the outbox entry in one transaction.
func (s *Store) RecordMovement(ctx context.Context, m *inventory.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Date.IsZero() {
		m.Date = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	delta := m.Quantity
	if m.Type == inventory.MovementOut {
		delta = -m.Quantity
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE inventory_batches
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2 AND quantity + $1 >= 0
		RETURNING quantity
	`, delta, m.InventoryItemID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.classifyMissingBatch(ctx, m.InventoryItemID)
		}
		return fmt.Errorf("adjust batch quantity: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements (id, inventory_item_id, type, quantity, date)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.InventoryItemID, m.Type, m.Quantity, m.Date)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}

	event, err := inventory.NewEvent(m.InventoryItemID, "InventoryBatch", inventory.EventMovementRecorded,
		inventory.MovementRecordedData{
			MovementID:      m.ID,
			InventoryItemID: m.InventoryItemID,
			Type:            string(m.Type),
			Quantity:        m.Quantity,
			Date:            m.Date,
		})
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	if err := writeEventEntry(ctx, tx, event, "stock.movements"); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ApplyAllocations decrements each allocated batch, records the OUT
// movements, and queues the allocation event, all in one transaction. The
// guarded updates fail with ErrStaleStock when a concurrent writer consumed
// the quantity this allocation was computed against.
func (s *Store) ApplyAllocations(ctx context.Context, profile inventory.DrugProfile, requested int, allocations []inventory.BatchAllocation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, a := range allocations {
		tag, err := tx.Exec(ctx, `
			UPDATE inventory_batches
			SET quantity = quantity - $1, updated_at = NOW()
			WHERE id = $2 AND quantity >= $1
		`, a.Quantity, a.InventoryItemID)
		if err != nil {
			return fmt.Errorf("decrement batch %s: %w", a.InventoryItemID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("batch %s: %w", a.InventoryItemID, ErrStaleStock)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO stock_movements (id, inventory_item_id, type, quantity, date)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), a.InventoryItemID, inventory.MovementOut, a.Quantity, now)
		if err != nil {
			return fmt.Errorf("insert allocation movement: %w", err)
		}
	}

	event, err := inventory.NewEvent(profile.Key(), "DrugProfile", inventory.EventStockAllocated,
		inventory.StockAllocatedData{
			GenericName: profile.GenericName,
			BrandName:   profile.BrandName,
			Strength:    profile.Strength,
			Requested:   requested,
			Allocations: allocations,
			AllocatedAt: now,
		})
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	if err := writeEventEntry(ctx, tx, event, "stock.alerts"); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// QueueLowStockAlert writes a low stock event to the outbox
func (s *Store) QueueLowStockAlert(ctx context.Context, profile inventory.DrugProfile, currentStock, reorderLevel int) error {
	event, err := inventory.NewEvent(profile.Key(), "DrugProfile", inventory.EventLowStockDetected,
		inventory.LowStockDetectedData{
			GenericName:  profile.GenericName,
			BrandName:    profile.BrandName,
			Strength:     profile.Strength,
			CurrentStock: currentStock,
			ReorderLevel: reorderLevel,
		})
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := writeEventEntry(ctx, tx, event, "stock.alerts"); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func writeEventEntry(ctx context.Context, tx pgx.Tx, event *inventory.Event, topic string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return WriteEntry(ctx, tx, &OutboxEntry{
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     string(event.EventType),
		Payload:       payload,
		KafkaTopic:    topic,
		KafkaKey:      event.AggregateID,
	})
}

// ModelSnapshot pairs a persisted reservoir model with its regime state
type ModelSnapshot struct {
	ProfileKey  string
	Model       json.RawMessage
	MarkovState json.RawMessage
	UpdatedAt   time.Time
}

// SaveModelSnapshot upserts the forecast model state for one profile
func (s *Store) SaveModelSnapshot(ctx context.Context, snap *ModelSnapshot) error {
	query := `
		INSERT INTO forecast_models (profile_key, model, markov_state, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile_key) DO UPDATE
		SET model = $2, markov_state = $3, updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query, snap.ProfileKey, snap.Model, snap.MarkovState)
	if err != nil {
		return fmt.Errorf("save model snapshot: %w", err)
	}
	return nil
}

// LoadModelSnapshot retrieves the stored model state, or nil when absent
func (s *Store) LoadModelSnapshot(ctx context.Context, profileKey string) (*ModelSnapshot, error) {
	query := `
		SELECT profile_key, model, markov_state, updated_at
		FROM forecast_models
		WHERE profile_key = $1
	`

	snap := &ModelSnapshot{}
	err := s.pool.QueryRow(ctx, query, profileKey).Scan(
		&snap.ProfileKey, &snap.Model, &snap.MarkovState, &snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load model snapshot: %w", err)
	}
	return snap, nil
}

// classifyMissingBatch distinguishes an unknown batch from a guarded update
// that would have driven the quantity negative.
func (s *Store) classifyMissingBatch(ctx context.Context, batchID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM inventory_batches WHERE id = $1)", batchID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check batch: %w", err)
	}
	if !exists {
		return fmt.Errorf("batch %s: %w", batchID, ErrBatchNotFound)
	}
	return fmt.Errorf("batch %s: %w", batchID, ErrStaleStock)
}
