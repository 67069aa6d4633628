package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// CatalogService manages products, lots, locations, and the supporting
// quality and code-mapping records
type CatalogService struct {
	productRepo    *repository.ProductRepository
	lotRepo        *repository.LotRepository
	locationRepo   *repository.LocationRepository
	acceptanceRepo *repository.AcceptanceRepository
	mappingRepo    *repository.MappingRepository
	logger         *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	locationRepo *repository.LocationRepository,
	acceptanceRepo *repository.AcceptanceRepository,
	mappingRepo *repository.MappingRepository,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		productRepo:    productRepo,
		lotRepo:        lotRepo,
		locationRepo:   locationRepo,
		acceptanceRepo: acceptanceRepo,
		mappingRepo:    mappingRepo,
		logger:         log,
	}
}

// ProductWithLots pairs a product with its lots and aggregate stock
type ProductWithLots struct {
	*repository.Product
	Lots           []*repository.Lot `json:"lots"`
	TotalStock     decimal.Decimal   `json:"total_stock"`
	RemainingParts int               `json:"remaining_parts"`
}

// CreateProduct creates a new product
func (s *CatalogService) CreateProduct(ctx context.Context, product *repository.Product) error {
	if product.Supplier == "" {
		product.Supplier = repository.SupplierLeica
	}
	return s.productRepo.Create(ctx, product)
}

// GetProduct gets a product with its lots and aggregate stock
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*ProductWithLots, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.enrichProduct(ctx, product)
}

// ListProducts lists all products with their lots and aggregate stock
func (s *CatalogService) ListProducts(ctx context.Context) ([]*ProductWithLots, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*ProductWithLots, 0, len(products))
	for _, product := range products {
		enriched, err := s.enrichProduct(ctx, product)
		if err != nil {
			return nil, err
		}
		result = append(result, enriched)
	}
	return result, nil
}

func (s *CatalogService) enrichProduct(ctx context.Context, product *repository.Product) (*ProductWithLots, error) {
	lots, err := s.lotRepo.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}

	enriched := &ProductWithLots{Product: product, Lots: lots, TotalStock: decimal.Zero}
	for _, lot := range lots {
		enriched.TotalStock = enriched.TotalStock.Add(lot.CurrentStock)
		enriched.RemainingParts += lot.AccumulatedPartial
	}
	return enriched, nil
}

// UpdateProduct updates a product's attributes. The product code itself is
// immutable once lots reference it.
func (s *CatalogService) UpdateProduct(ctx context.Context, product *repository.Product) error {
	return s.productRepo.Update(ctx, product)
}

// DeleteProduct deletes a product and its lots
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.productRepo.Delete(ctx, id)
}

// CreateLot creates a lot, defaulting its location to the Central singleton
func (s *CatalogService) CreateLot(ctx context.Context, lot *repository.Lot) error {
	if lot.LocationID == nil {
		loc, err := s.locationRepo.GetDefault(ctx)
		if err != nil {
			return err
		}
		lot.LocationID = &loc.ID
	}
	return s.lotRepo.Create(ctx, lot)
}

// GetLot gets a lot by ID
func (s *CatalogService) GetLot(ctx context.Context, id string) (*repository.Lot, error) {
	return s.lotRepo.GetByID(ctx, id)
}

// ListLots lists lots for a product
func (s *CatalogService) ListLots(ctx context.Context, productID string) ([]*repository.Lot, error) {
	return s.lotRepo.ListByProduct(ctx, productID)
}

// UpdateLot updates a lot's descriptive fields. Changing units_per_quantity
// while parts are accumulated would corrupt the carry arithmetic, so that
// combination is rejected.
func (s *CatalogService) UpdateLot(ctx context.Context, lot *repository.Lot) error {
	existing, err := s.lotRepo.GetByID(ctx, lot.ID)
	if err != nil {
		return err
	}

	if lot.UnitsPerQuantity != existing.UnitsPerQuantity && existing.AccumulatedPartial != 0 {
		return errors.Validation(map[string]string{
			"units_per_quantity": "cannot change while partial units are accumulated; withdraw or zero the remaining parts first",
		})
	}

	return s.lotRepo.Update(ctx, lot)
}

// RecordAcceptanceTest records a quality sign-off for a lot
func (s *CatalogService) RecordAcceptanceTest(ctx context.Context, test *repository.AcceptanceTest) error {
	if _, err := s.lotRepo.GetByID(ctx, test.LotID); err != nil {
		return err
	}
	if test.Tested && test.SignedOffAt == nil {
		now := time.Now().UTC()
		test.SignedOffAt = &now
	}
	return s.acceptanceRepo.Create(ctx, test)
}

// ListAcceptanceTests lists acceptance tests for a lot
func (s *CatalogService) ListAcceptanceTests(ctx context.Context, lotID string) ([]*repository.AcceptanceTest, error) {
	return s.acceptanceRepo.ListByLot(ctx, lotID)
}

// Locations

// ListLocations lists all locations
func (s *CatalogService) ListLocations(ctx context.Context) ([]*repository.Location, error) {
	return s.locationRepo.List(ctx)
}

// CreateLocation creates a new location
func (s *CatalogService) CreateLocation(ctx context.Context, loc *repository.Location) error {
	return s.locationRepo.Create(ctx, loc)
}

// DeleteLocation removes a non-default location
func (s *CatalogService) DeleteLocation(ctx context.Context, id string) error {
	return s.locationRepo.Delete(ctx, id)
}

// Code mappings

// CreateCodeMapping creates a legacy code mapping
func (s *CatalogService) CreateCodeMapping(ctx context.Context, m *repository.CodeMapping) error {
	return s.mappingRepo.Create(ctx, m)
}

// ListCodeMappings lists code mappings
func (s *CatalogService) ListCodeMappings(ctx context.Context) ([]*repository.CodeMapping, error) {
	return s.mappingRepo.List(ctx)
}

// DeleteCodeMapping removes a code mapping
func (s *CatalogService) DeleteCodeMapping(ctx context.Context, id string) error {
	return s.mappingRepo.Delete(ctx, id)
}
