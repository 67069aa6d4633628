package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/barcode"
	"github.com/stockflow/stockflow-backend/internal/inventory/events"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// Withdrawal modes
const (
	WithdrawModeFull   = "full"
	WithdrawModeVolume = "volume"
	WithdrawModePart   = "part"
)

// ReconcileService applies withdrawals, receipts, and discards against lot
// stock. All stock mutations are relative updates evaluated by the database,
// and multi-lot receipts run in a single transaction, so concurrent
// operations against the same lot cannot lose updates.
type ReconcileService struct {
	db          *database.DB
	scan        *ScanService
	productRepo *repository.ProductRepository
	lotRepo     *repository.LotRepository
	ledgerRepo  *repository.LedgerRepository
	orderRepo   *repository.OrderRepository
	publisher   *events.InventoryEventPublisher
	policy      string
	logger      *logger.Logger
}

// NewReconcileService creates a new reconciliation service
func NewReconcileService(
	db *database.DB,
	scan *ScanService,
	productRepo *repository.ProductRepository,
	lotRepo *repository.LotRepository,
	ledgerRepo *repository.LedgerRepository,
	orderRepo *repository.OrderRepository,
	publisher *events.InventoryEventPublisher,
	negativePolicy string,
	log *logger.Logger,
) *ReconcileService {
	return &ReconcileService{
		db:          db,
		scan:        scan,
		productRepo: productRepo,
		lotRepo:     lotRepo,
		ledgerRepo:  ledgerRepo,
		orderRepo:   orderRepo,
		publisher:   publisher,
		policy:      negativePolicy,
		logger:      log,
	}
}

// WithdrawRequest describes a withdrawal against a lot. The lot is resolved
// from the barcode or product code plus the optional lot number and expiry
// filters; withdrawals never create lots.
type WithdrawRequest struct {
	Barcode     string
	ProductCode string
	LotNumber   string
	ExpiryDate  string
	Mode        string
	Quantity    decimal.Decimal
	Parts       int
	LocationID  *string
}

// Withdraw applies a withdrawal and appends the ledger entry
func (s *ReconcileService) Withdraw(ctx context.Context, req WithdrawRequest) (*repository.Withdrawal, error) {
	productCode := req.ProductCode
	lotNumber := req.LotNumber
	expiryRaw := req.ExpiryDate

	if req.Barcode != "" {
		if label, ok := barcode.Decode(req.Barcode); ok {
			productCode = label.ProductCode
			if lotNumber == "" {
				lotNumber = label.LotNumber
			}
			if expiryRaw == "" {
				expiryRaw = label.ExpiryDate
			}
		} else if productCode == "" {
			productCode = req.Barcode
		}
	}

	product, err := s.scan.ResolveProduct(ctx, productCode)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.LotNotFound()
		}
		return nil, err
	}

	var expiry *time.Time
	if expiryRaw != "" {
		if parsed, perr := barcode.ParseExpiry(expiryRaw); perr == nil {
			expiry = &parsed
		}
	}

	lot, err := s.lotRepo.FindForWithdrawal(ctx, product.ID, lotNumber, expiry)
	if err != nil {
		return nil, err
	}

	if req.Mode == WithdrawModePart && lot.ProductFeature == repository.FeatureVolume {
		return nil, errors.BadRequest("part withdrawals do not apply to volume-tracked lots")
	}

	w := &repository.Withdrawal{
		LotID:       &lot.ID,
		ProductCode: product.ProductCode,
		ProductName: product.Name,
		LotNumber:   lot.LotNumber,
		ExpiryDate:  lot.ExpiryDate,
		LocationID:  req.LocationID,
	}
	if w.LocationID == nil {
		w.LocationID = lot.LocationID
	}
	if req.Barcode != "" {
		w.Barcode = &req.Barcode
	}
	w.PerformedBy, w.PerformedByName = actorRefs(ctx)

	// The debit and its ledger entry commit as one unit; a withdrawal never
	// decrements stock without leaving an audit record.
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		switch {
		case lot.ProductFeature == repository.FeatureVolume || req.Mode == WithdrawModeVolume:
			if _, err := s.lotRepo.WithdrawStock(ctx, tx, lot.ID, req.Quantity, s.policy); err != nil {
				return err
			}
			w.WithdrawalType = repository.WithdrawalTypeVolume
			w.Quantity = req.Quantity

		case req.Mode == WithdrawModePart:
			res, err := s.lotRepo.ApplyPartWithdrawal(ctx, tx, lot.ID, req.Parts, s.policy)
			if err != nil {
				return err
			}
			w.WithdrawalType = repository.WithdrawalTypePart
			w.Quantity = decimal.NewFromInt(int64(res.WholeItemsWithdrawn))
			w.PartsWithdrawn = req.Parts

		default:
			if _, err := s.lotRepo.WithdrawStock(ctx, tx, lot.ID, req.Quantity, s.policy); err != nil {
				return err
			}
			w.WithdrawalType = repository.WithdrawalTypeUnit
			w.Quantity = req.Quantity
		}

		return s.ledgerRepo.CreateWithdrawal(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_code", w.ProductCode).
		Str("lot_number", w.LotNumber).
		Str("type", w.WithdrawalType).
		Str("quantity", w.Quantity.String()).
		Msg("withdrawal recorded")

	s.publisher.PublishWithdrawalRecorded(ctx, w)
	return w, nil
}

// LotBatchEntry is one (lot, expiry, quantity) triple of a receipt
type LotBatchEntry struct {
	LotNumber  string
	ExpiryDate *time.Time
	Quantity   int
}

// ReceiveRequest describes a receipt of one or more lots for a product,
// optionally completing an outstanding purchase order
type ReceiveRequest struct {
	ProductCode      string
	Entries          []LotBatchEntry
	QuantityOrdered  int
	UnitsPerQuantity int
	LocationID       *string
}

// ReceiveResult reports the lots touched by a receipt and the purchase order
// it completed, if any
type ReceiveResult struct {
	Lots          []*repository.Lot               `json:"lots"`
	Order         *repository.PurchaseOrder       `json:"order,omitempty"`
	Registrations []*repository.StockRegistration `json:"registrations"`
	TotalReceived int                             `json:"total_received"`
}

// Receive credits stock to each listed lot, creating lots on first sight of
// a (product, lot, expiry) triple. When a nonzero ordered quantity is given,
// the per-lot quantities must sum to it exactly; on mismatch nothing is
// mutated. The lot increments and the purchase order transition commit as
// one unit.
func (s *ReconcileService) Receive(ctx context.Context, req ReceiveRequest) (*ReceiveResult, error) {
	if len(req.Entries) == 0 {
		return nil, errors.BadRequest("at least one lot entry is required")
	}

	product, err := s.scan.ResolveProduct(ctx, req.ProductCode)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, entry := range req.Entries {
		total += entry.Quantity
	}
	if req.QuantityOrdered > 0 && total != req.QuantityOrdered {
		return nil, errors.QuantityMismatch(total, req.QuantityOrdered)
	}

	performedBy, performedByName := actorRefs(ctx)

	result := &ReceiveResult{TotalReceived: total}
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, entry := range req.Entries {
			lot := &repository.Lot{
				ProductID:        product.ID,
				LotNumber:        entry.LotNumber,
				ExpiryDate:       entry.ExpiryDate,
				UnitsPerQuantity: req.UnitsPerQuantity,
				LocationID:       req.LocationID,
			}
			if err := s.lotRepo.GetOrCreate(ctx, tx, lot); err != nil {
				return err
			}

			stock, err := s.lotRepo.AddStock(ctx, tx, lot.ID, decimal.NewFromInt(int64(entry.Quantity)))
			if err != nil {
				return err
			}
			lot.CurrentStock = stock

			reg := &repository.StockRegistration{
				LotID:           &lot.ID,
				Quantity:        decimal.NewFromInt(int64(entry.Quantity)),
				LocationID:      lot.LocationID,
				PerformedBy:     performedBy,
				PerformedByName: performedByName,
				ProductCode:     product.ProductCode,
				ProductName:     product.Name,
				LotNumber:       lot.LotNumber,
				ExpiryDate:      lot.ExpiryDate,
			}
			if err := s.ledgerRepo.CreateRegistration(ctx, tx, reg); err != nil {
				return err
			}

			result.Lots = append(result.Lots, lot)
			result.Registrations = append(result.Registrations, reg)
		}

		order, err := s.orderRepo.FindOutstandingByProduct(ctx, tx, product.ProductCode)
		if err != nil {
			return err
		}
		if order == nil {
			return nil
		}

		first := result.Lots[0]
		delivered, err := s.orderRepo.MarkDelivered(ctx, tx, order.ID, &first.ID)
		if err != nil {
			return err
		}
		result.Order = delivered

		remarks := "Completed via receipt"
		if len(req.Entries) > 1 {
			remarks = "Multiple lots received"
		}
		quantity := total
		if quantity == 0 {
			quantity = delivered.QuantityOrdered
		}
		log := &repository.CompletionLog{
			PurchaseOrderID: &delivered.ID,
			ProductCode:     delivered.ProductCode,
			ProductName:     delivered.ProductName,
			LotNumber:       first.LotNumber,
			ExpiryDate:      first.ExpiryDate,
			QuantityOrdered: quantity,
			OrderedBy:       delivered.OrderedBy,
			CompletedBy:     performedBy,
			OrderDate:       delivered.OrderDate,
			Remarks:         &remarks,
		}
		return s.orderRepo.CreateCompletionLog(ctx, tx, log)
	})
	if err != nil {
		return nil, err
	}

	for _, reg := range result.Registrations {
		s.publisher.PublishStockReceived(ctx, reg)
	}
	if result.Order != nil {
		completedBy := ""
		if performedBy != nil {
			completedBy = *performedBy
		}
		s.publisher.PublishOrderDelivered(ctx, result.Order, total, len(result.Lots), completedBy)
	}

	s.logger.Info().
		Str("product_code", product.ProductCode).
		Int("lots", len(result.Lots)).
		Int("total_received", total).
		Bool("order_completed", result.Order != nil).
		Msg("stock received")

	return result, nil
}

// RegisterScanRequest describes a one-unit receipt driven by a scan
type RegisterScanRequest struct {
	Barcode    string
	DeliveryAt *time.Time
	LocationID *string
}

// RegisterScan credits one unit to the lot a scanned barcode resolves to.
// Unlike Receive it never creates a lot: when the label's lot or expiry
// match nothing, the product's soonest-expiring lot is credited instead.
func (s *ReconcileService) RegisterScan(ctx context.Context, req RegisterScanRequest) (*repository.StockRegistration, error) {
	productCode := req.Barcode
	lotNumber := ""
	var expiry *time.Time

	if label, ok := barcode.Decode(req.Barcode); ok {
		productCode = label.ProductCode
		lotNumber = label.LotNumber
		if label.ExpiryDate != "" {
			if parsed, perr := barcode.ParseExpiry(label.ExpiryDate); perr == nil {
				expiry = &parsed
			}
		}
	}

	product, err := s.scan.ResolveProduct(ctx, productCode)
	if err != nil {
		return nil, err
	}

	lot, err := s.lotRepo.FindForWithdrawal(ctx, product.ID, lotNumber, expiry)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		lot, err = s.lotRepo.EarliestByProduct(ctx, product.ID)
		if err != nil {
			return nil, err
		}
	}

	reg := &repository.StockRegistration{
		LotID:       &lot.ID,
		Quantity:    decimal.NewFromInt(1),
		Barcode:     &req.Barcode,
		DeliveryAt:  req.DeliveryAt,
		LocationID:  req.LocationID,
		ProductCode: product.ProductCode,
		ProductName: product.Name,
		LotNumber:   lot.LotNumber,
		ExpiryDate:  lot.ExpiryDate,
	}
	if reg.LocationID == nil {
		reg.LocationID = lot.LocationID
	}
	reg.PerformedBy, reg.PerformedByName = actorRefs(ctx)

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.lotRepo.AddStock(ctx, tx, lot.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		return s.ledgerRepo.CreateRegistration(ctx, tx, reg)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStockReceived(ctx, reg)
	return reg, nil
}

// Discard logs a withdrawal of a lot's entire stock and deletes the lot.
// Irreversible; this is the only operation that removes a lot.
func (s *ReconcileService) Discard(ctx context.Context, lotID string) (*repository.Withdrawal, error) {
	lot, err := s.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, lot.ProductID)
	if err != nil {
		return nil, err
	}

	w := &repository.Withdrawal{
		LotID:          &lot.ID,
		Quantity:       lot.CurrentStock,
		WithdrawalType: repository.WithdrawalTypeDiscard,
		LocationID:     lot.LocationID,
		ProductCode:    product.ProductCode,
		ProductName:    product.Name,
		LotNumber:      lot.LotNumber,
		ExpiryDate:     lot.ExpiryDate,
	}
	w.PerformedBy, w.PerformedByName = actorRefs(ctx)

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.ledgerRepo.CreateWithdrawal(ctx, tx, w); err != nil {
			return err
		}
		return s.lotRepo.Delete(ctx, tx, lot.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_code", w.ProductCode).
		Str("lot_number", w.LotNumber).
		Str("stock_discarded", w.Quantity.String()).
		Msg("lot discarded")

	s.publisher.PublishLotDiscarded(ctx, w)
	return w, nil
}

// MarkOrderDelivered completes an order directly, crediting the bound lot's
// stock by the ordered quantity. Already-delivered orders are left untouched.
func (s *ReconcileService) MarkOrderDelivered(ctx context.Context, orderID string) (*repository.PurchaseOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == repository.OrderStatusDelivered {
		return order, nil
	}

	var delivered *repository.PurchaseOrder
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if order.LotID != nil {
			if _, err := s.lotRepo.AddStock(ctx, tx, *order.LotID, decimal.NewFromInt(int64(order.QuantityOrdered))); err != nil {
				return err
			}
		}
		var err error
		delivered, err = s.orderRepo.MarkDelivered(ctx, tx, order.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	completedBy := actor.IDFromContext(ctx)
	s.publisher.PublishOrderDelivered(ctx, delivered, delivered.QuantityOrdered, 1, completedBy)
	return delivered, nil
}

// actorRefs snapshots the acting user for ledger entries
func actorRefs(ctx context.Context) (id, name *string) {
	a := actor.FromContext(ctx)
	if a == nil {
		return nil, nil
	}
	return &a.ID, &a.Name
}
