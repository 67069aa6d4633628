package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventWithdrawalRecorded = "inventory.withdrawal.recorded"
	EventStockReceived      = "inventory.stock.received"
	EventLotDiscarded       = "inventory.lot.discarded"
	EventOrderDelivered     = "inventory.order.delivered"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// WithdrawalRecordedEvent is published after a withdrawal ledger entry is
// appended.
type WithdrawalRecordedEvent struct {
	WithdrawalID   string `json:"withdrawal_id"`
	ProductCode    string `json:"product_code"`
	ProductName    string `json:"product_name"`
	LotNumber      string `json:"lot_number"`
	WithdrawalType string `json:"withdrawal_type"`
	Quantity       string `json:"quantity"`
	PartsWithdrawn int    `json:"parts_withdrawn"`
	PerformedBy    string `json:"performed_by"`
}

// StockReceivedEvent is published when stock is credited to a lot.
type StockReceivedEvent struct {
	LotID       string `json:"lot_id"`
	ProductCode string `json:"product_code"`
	LotNumber   string `json:"lot_number"`
	Quantity    string `json:"quantity"`
	PerformedBy string `json:"performed_by"`
}

// LotDiscardedEvent is published when a lot is discarded.
type LotDiscardedEvent struct {
	LotID          string `json:"lot_id"`
	ProductCode    string `json:"product_code"`
	LotNumber      string `json:"lot_number"`
	StockDiscarded string `json:"stock_discarded"`
	PerformedBy    string `json:"performed_by"`
}

// OrderDeliveredEvent is published when a purchase order transitions to
// Delivered.
type OrderDeliveredEvent struct {
	OrderID       string `json:"order_id"`
	ProductCode   string `json:"product_code"`
	QuantityTotal int    `json:"quantity_total"`
	LotCount      int    `json:"lot_count"`
	CompletedBy   string `json:"completed_by"`
}
