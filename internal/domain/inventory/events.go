package inventory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event
type EventType string

const (
	EventMovementRecorded  EventType = "MovementRecorded"
	EventStockAllocated    EventType = "StockAllocated"
	EventLowStockDetected  EventType = "LowStockDetected"
	EventForecastGenerated EventType = "ForecastGenerated"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewEvent creates a new event
func NewEvent(aggregateID, aggregateType string, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// MovementRecordedData contains stock movement details
type MovementRecordedData struct {
	MovementID      string    `json:"movement_id"`
	InventoryItemID string    `json:"inventory_item_id"`
	Type            string    `json:"type"`
	Quantity        int       `json:"quantity"`
	Date            time.Time `json:"date"`
}

// StockAllocatedData contains allocation details
type StockAllocatedData struct {
	GenericName string            `json:"generic_name"`
	BrandName   string            `json:"brand_name"`
	Strength    string            `json:"strength"`
	Requested   int               `json:"requested"`
	Allocations []BatchAllocation `json:"allocations"`
	AllocatedAt time.Time         `json:"allocated_at"`
}

// LowStockDetectedData contains the low stock alert details
type LowStockDetectedData struct {
	GenericName  string `json:"generic_name"`
	BrandName    string `json:"brand_name"`
	Strength     string `json:"strength"`
	CurrentStock int    `json:"current_stock"`
	ReorderLevel int    `json:"reorder_level"`
}

// ForecastGeneratedData summarizes a completed forecast for downstream consumers
type ForecastGeneratedData struct {
	GenericName     string    `json:"generic_name"`
	BrandName       string    `json:"brand_name"`
	Strength        string    `json:"strength"`
	RiskLevel       string    `json:"risk_level"`
	CurrentStock    int       `json:"current_stock"`
	ReorderPoint    int       `json:"reorder_point"`
	ModelConfidence float64   `json:"model_confidence"`
	GeneratedAt     time.Time `json:"generated_at"`
}
