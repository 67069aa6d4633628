package service

import (
	"context"
	"time"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// OrderService tracks purchase orders through their Ordered, Delayed, and
// Delivered states
type OrderService struct {
	orderRepo   *repository.OrderRepository
	productRepo *repository.ProductRepository
	lotRepo     *repository.LotRepository
	retention   time.Duration
	logger      *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orderRepo *repository.OrderRepository,
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	retention time.Duration,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		lotRepo:     lotRepo,
		retention:   retention,
		logger:      log,
	}
}

// CreateOrderRequest describes a new purchase order
type CreateOrderRequest struct {
	ProductCode      string
	QuantityOrdered  int
	ExpectedDelivery time.Time
	POReference      string
	OrderedBy        *string
	OrderedByName    *string
}

// CreateOrder records a purchase order, snapshotting the product's identity
// and binding the product's soonest-expiring lot when one exists
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*repository.PurchaseOrder, error) {
	product, err := s.productRepo.GetByCode(ctx, req.ProductCode)
	if err != nil {
		return nil, err
	}

	order := &repository.PurchaseOrder{
		QuantityOrdered:  req.QuantityOrdered,
		ExpectedDelivery: req.ExpectedDelivery,
		Status:           repository.OrderStatusOrdered,
		OrderedBy:        req.OrderedBy,
		OrderedByName:    req.OrderedByName,
		ProductCode:      product.ProductCode,
		ProductName:      product.Name,
		LotNumber:        "UNKNOWN",
	}
	if req.POReference != "" {
		order.POReference = &req.POReference
	}

	if lot, err := s.lotRepo.EarliestByProduct(ctx, product.ID); err == nil {
		order.LotID = &lot.ID
		order.LotNumber = lot.LotNumber
		order.ExpiryDate = lot.ExpiryDate
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("product_code", order.ProductCode).
		Int("quantity_ordered", order.QuantityOrdered).
		Msg("purchase order recorded")

	return order, nil
}

// GetOrder gets an order by ID. Overdue Ordered orders are flipped to
// Delayed before the read so the caller always sees the derived state.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*repository.PurchaseOrder, error) {
	if _, err := s.orderRepo.MarkOverdueDelayed(ctx); err != nil {
		return nil, err
	}
	return s.orderRepo.GetByID(ctx, id)
}

// ListActive lists in-flight orders plus recently delivered ones. Orders
// past their expected delivery are flipped to Delayed first and the change
// is persisted, so subsequent reads need no recomputation.
func (s *OrderService) ListActive(ctx context.Context) ([]*repository.PurchaseOrder, error) {
	if _, err := s.orderRepo.MarkOverdueDelayed(ctx); err != nil {
		return nil, err
	}
	return s.orderRepo.ListActive(ctx, s.retention)
}

// ListCompletionLogs lists recent purchase order completion logs
func (s *OrderService) ListCompletionLogs(ctx context.Context, limit int) ([]*repository.CompletionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.orderRepo.ListCompletionLogs(ctx, limit)
}
