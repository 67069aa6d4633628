package service

import (
	"context"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// AlertService derives read-only alert views over the catalog. Every query
// recomputes its answer from current lot and order state; nothing is cached.
type AlertService struct {
	productRepo       *repository.ProductRepository
	lotRepo           *repository.LotRepository
	orderRepo         *repository.OrderRepository
	acceptanceRepo    *repository.AcceptanceRepository
	expiryWarningDays int
	logger            *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	orderRepo *repository.OrderRepository,
	acceptanceRepo *repository.AcceptanceRepository,
	expiryWarningDays int,
	log *logger.Logger,
) *AlertService {
	return &AlertService{
		productRepo:       productRepo,
		lotRepo:           lotRepo,
		orderRepo:         orderRepo,
		acceptanceRepo:    acceptanceRepo,
		expiryWarningDays: expiryWarningDays,
		logger:            log,
	}
}

// LowStockProducts lists products below their reorder threshold without an
// outstanding purchase order. A product with an Ordered or Delayed order is
// suppressed until that order is delivered.
func (s *AlertService) LowStockProducts(ctx context.Context) ([]*repository.ProductStockSummary, error) {
	return s.productRepo.ListLowStock(ctx)
}

// ExpiredLots lists lots whose expiry date has passed
func (s *AlertService) ExpiredLots(ctx context.Context) ([]*repository.LotWithProduct, error) {
	return s.lotRepo.ListExpired(ctx)
}

// ExpiringLots lists lots expiring within rangeDays. A non-positive range
// falls back to the configured warning window.
func (s *AlertService) ExpiringLots(ctx context.Context, rangeDays int) ([]*repository.LotWithProduct, error) {
	if rangeDays <= 0 {
		rangeDays = s.expiryWarningDays
	}
	return s.lotRepo.ListExpiring(ctx, rangeDays)
}

// UntestedLots lists in-stock lots with no completed acceptance test
func (s *AlertService) UntestedLots(ctx context.Context) ([]*repository.LotWithProduct, error) {
	return s.acceptanceRepo.ListUntestedLots(ctx)
}

// FailedLots lists in-stock lots whose acceptance testing recorded a failure
func (s *AlertService) FailedLots(ctx context.Context) ([]*repository.LotWithProduct, error) {
	return s.acceptanceRepo.ListFailedLots(ctx)
}

// DuplicateProductNames lists product names colliding across distinct
// product codes after normalization
func (s *AlertService) DuplicateProductNames(ctx context.Context) ([]string, error) {
	return s.productRepo.DuplicateNames(ctx)
}

// MissingThresholds lists products whose reorder threshold was never set
func (s *AlertService) MissingThresholds(ctx context.Context) ([]*repository.Product, error) {
	return s.productRepo.ListWithZeroThreshold(ctx)
}

// DashboardStats summarizes the alert state of the whole inventory
type DashboardStats struct {
	LowStockCount         int  `json:"low_stock_count"`
	ExpiredLotCount       int  `json:"expired_lot_count"`
	ExpiringLotCount      int  `json:"expiring_lot_count"`
	UntestedLotCount      int  `json:"untested_lot_count"`
	FailedLotCount        int  `json:"failed_lot_count"`
	MissingThresholdCount int  `json:"missing_threshold_count"`
	DuplicateNameCount    int  `json:"duplicate_name_count"`
	HasDelayedDeliveries  bool `json:"has_delayed_deliveries"`
}

// Dashboard derives the alert summary shown on the landing view
func (s *AlertService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	lowStock, err := s.productRepo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	stats.LowStockCount = len(lowStock)

	expired, err := s.lotRepo.ListExpired(ctx)
	if err != nil {
		return nil, err
	}
	stats.ExpiredLotCount = len(expired)

	expiring, err := s.lotRepo.ListExpiring(ctx, s.expiryWarningDays)
	if err != nil {
		return nil, err
	}
	stats.ExpiringLotCount = len(expiring)

	untested, err := s.acceptanceRepo.ListUntestedLots(ctx)
	if err != nil {
		return nil, err
	}
	stats.UntestedLotCount = len(untested)

	failed, err := s.acceptanceRepo.ListFailedLots(ctx)
	if err != nil {
		return nil, err
	}
	stats.FailedLotCount = len(failed)

	missing, err := s.productRepo.ListWithZeroThreshold(ctx)
	if err != nil {
		return nil, err
	}
	stats.MissingThresholdCount = len(missing)

	duplicates, err := s.productRepo.DuplicateNames(ctx)
	if err != nil {
		return nil, err
	}
	stats.DuplicateNameCount = len(duplicates)

	delayed, err := s.orderRepo.HasOverdueUndelivered(ctx)
	if err != nil {
		return nil, err
	}
	stats.HasDelayedDeliveries = delayed

	return stats, nil
}
