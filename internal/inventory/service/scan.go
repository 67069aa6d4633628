package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/barcode"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ScanService resolves scanned barcodes to catalog entries
type ScanService struct {
	productRepo *repository.ProductRepository
	lotRepo     *repository.LotRepository
	mappingRepo *repository.MappingRepository
	logger      *logger.Logger
}

// NewScanService creates a new scan service
func NewScanService(
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	mappingRepo *repository.MappingRepository,
	log *logger.Logger,
) *ScanService {
	return &ScanService{
		productRepo: productRepo,
		lotRepo:     lotRepo,
		mappingRepo: mappingRepo,
		logger:      log,
	}
}

// ScanResult pairs a resolved product with its most relevant lot's stock
type ScanResult struct {
	Product      *repository.Product `json:"product"`
	Label        *barcode.Label      `json:"label,omitempty"`
	CurrentStock decimal.Decimal     `json:"current_stock"`
	UnitsPer     int                 `json:"units_per_quantity"`
	Feature      string              `json:"product_feature"`
	LotNumber    string              `json:"lot_number"`
}

// Decode parses a raw scanned string into a structured label
func (s *ScanService) Decode(raw string) (*barcode.Label, error) {
	label, ok := barcode.Decode(raw)
	if !ok {
		return nil, errors.Unrecognized()
	}
	return &label, nil
}

// ResolveProduct looks up a product by code, trying the literal code first,
// then the normalized (leading-zero-stripped) form, then the legacy code
// mappings. The literal code wins when both forms exist as distinct products.
func (s *ScanService) ResolveProduct(ctx context.Context, code string) (*repository.Product, error) {
	if code == "" {
		return nil, errors.ProductNotFound(code)
	}

	product, err := s.productRepo.GetByCode(ctx, code)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if normalized := barcode.NormalizeProductCode(code); normalized != code {
		if product, err := s.productRepo.GetByCode(ctx, normalized); err == nil {
			return product, nil
		} else if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}

	mappedID, err := s.mappingRepo.ResolveProductID(ctx, code)
	if err != nil {
		return nil, err
	}
	if mappedID != "" {
		return s.productRepo.GetByID(ctx, mappedID)
	}

	return nil, errors.ProductNotFound(code)
}

// Scan decodes a raw barcode and resolves it against the catalog. Raw values
// that match no barcode format are still tried as plain product codes, so
// keyboard entry of a code behaves like a scan.
func (s *ScanService) Scan(ctx context.Context, raw string) (*ScanResult, error) {
	result := &ScanResult{}

	code := raw
	if label, ok := barcode.Decode(raw); ok {
		result.Label = &label
		code = label.ProductCode
	}

	product, err := s.ResolveProduct(ctx, code)
	if err != nil {
		return nil, err
	}
	result.Product = product

	lot, err := s.lotRepo.LatestByProduct(ctx, product.ID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// Product exists but has no lots yet; report zero stock.
			result.Feature = repository.FeatureUnit
			return result, nil
		}
		return nil, err
	}

	result.CurrentStock = lot.CurrentStock
	result.UnitsPer = lot.UnitsPerQuantity
	result.Feature = lot.ProductFeature
	result.LotNumber = lot.LotNumber
	return result, nil
}
