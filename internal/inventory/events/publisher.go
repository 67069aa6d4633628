package events

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

// Publisher is the subset of messaging.Publisher the event publisher needs
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes stock ledger events. A nil publisher is
// safe to call; events are simply dropped, so the ledger keeps working when
// the broker is unavailable.
type InventoryEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// NewWithPublisher wires an existing publisher, used by tests
func NewWithPublisher(pub Publisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: pub,
		logger:    log,
	}
}

// PublishWithdrawalRecorded publishes a withdrawal recorded event
func (p *InventoryEventPublisher) PublishWithdrawalRecorded(ctx context.Context, w *repository.Withdrawal) {
	if p == nil {
		return
	}

	performedBy := ""
	if w.PerformedBy != nil {
		performedBy = *w.PerformedBy
	}

	data := messaging.WithdrawalRecordedEvent{
		WithdrawalID:   w.ID,
		ProductCode:    w.ProductCode,
		ProductName:    w.ProductName,
		LotNumber:      w.LotNumber,
		WithdrawalType: w.WithdrawalType,
		Quantity:       w.Quantity.String(),
		PartsWithdrawn: w.PartsWithdrawn,
		PerformedBy:    performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventWithdrawalRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("withdrawal_id", w.ID).Msg("failed to publish withdrawal recorded event")
	}
}

// PublishStockReceived publishes a stock received event
func (p *InventoryEventPublisher) PublishStockReceived(ctx context.Context, reg *repository.StockRegistration) {
	if p == nil {
		return
	}

	lotID := ""
	if reg.LotID != nil {
		lotID = *reg.LotID
	}

	performedBy := ""
	if reg.PerformedBy != nil {
		performedBy = *reg.PerformedBy
	}

	data := messaging.StockReceivedEvent{
		LotID:       lotID,
		ProductCode: reg.ProductCode,
		LotNumber:   reg.LotNumber,
		Quantity:    reg.Quantity.String(),
		PerformedBy: performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lotID).Msg("failed to publish stock received event")
	}
}

// PublishLotDiscarded publishes a lot discarded event
func (p *InventoryEventPublisher) PublishLotDiscarded(ctx context.Context, w *repository.Withdrawal) {
	if p == nil {
		return
	}

	lotID := ""
	if w.LotID != nil {
		lotID = *w.LotID
	}

	performedBy := ""
	if w.PerformedBy != nil {
		performedBy = *w.PerformedBy
	}

	data := messaging.LotDiscardedEvent{
		LotID:          lotID,
		ProductCode:    w.ProductCode,
		LotNumber:      w.LotNumber,
		StockDiscarded: w.Quantity.String(),
		PerformedBy:    performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotDiscarded, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lotID).Msg("failed to publish lot discarded event")
	}
}

// PublishOrderDelivered publishes an order delivered event
func (p *InventoryEventPublisher) PublishOrderDelivered(ctx context.Context, order *repository.PurchaseOrder, quantityTotal, lotCount int, completedBy string) {
	if p == nil {
		return
	}

	data := messaging.OrderDeliveredEvent{
		OrderID:       order.ID,
		ProductCode:   order.ProductCode,
		QuantityTotal: quantityTotal,
		LotCount:      lotCount,
		CompletedBy:   completedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOrderDelivered, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to publish order delivered event")
	}
}
