package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/barcode"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// StockHandler handles withdrawal, receipt, and discard endpoints
type StockHandler struct {
	reconcile *service.ReconcileService
	ledger    *repository.LedgerRepository
	logger    *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(reconcile *service.ReconcileService, ledger *repository.LedgerRepository, log *logger.Logger) *StockHandler {
	return &StockHandler{
		reconcile: reconcile,
		ledger:    ledger,
		logger:    log,
	}
}

// Withdraw records a withdrawal against a lot
func (h *StockHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode     string          `json:"barcode"`
		ProductCode string          `json:"product_code"`
		LotNumber   string          `json:"lot_number"`
		ExpiryDate  string          `json:"expiry_date"`
		Mode        string          `json:"mode" validate:"omitempty,oneof=full volume part"`
		Quantity    decimal.Decimal `json:"quantity"`
		Parts       int             `json:"parts" validate:"gte=0"`
		LocationID  *string         `json:"location_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.Barcode == "" && req.ProductCode == "" {
		httputil.Error(w, errors.BadRequest("barcode or product_code is required"))
		return
	}
	if req.Mode == service.WithdrawModePart && req.Parts <= 0 {
		httputil.Error(w, errors.BadRequest("parts must be positive for a part withdrawal"))
		return
	}

	// A plain scan withdraws one whole quantity.
	if req.Mode != service.WithdrawModePart && req.Quantity.IsZero() {
		req.Quantity = decimal.NewFromInt(1)
	}

	withdrawal, err := h.reconcile.Withdraw(r.Context(), service.WithdrawRequest{
		Barcode:     req.Barcode,
		ProductCode: req.ProductCode,
		LotNumber:   req.LotNumber,
		ExpiryDate:  req.ExpiryDate,
		Mode:        req.Mode,
		Quantity:    req.Quantity,
		Parts:       req.Parts,
		LocationID:  req.LocationID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, withdrawal)
}

type receiveLotEntry struct {
	LotNumber  string `json:"lot_number" validate:"required"`
	ExpiryDate string `json:"expiry_date"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

// Receive credits stock across one or more lots for a product
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductCode      string            `json:"product_code" validate:"required"`
		QuantityOrdered  int               `json:"quantity_ordered" validate:"gte=0"`
		UnitsPerQuantity int               `json:"units_per_quantity" validate:"gte=0"`
		LocationID       *string           `json:"location_id"`
		Lots             []receiveLotEntry `json:"lots" validate:"required,min=1,dive"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	entries := make([]service.LotBatchEntry, 0, len(req.Lots))
	for _, lot := range req.Lots {
		entry := service.LotBatchEntry{
			LotNumber: lot.LotNumber,
			Quantity:  lot.Quantity,
		}
		if lot.ExpiryDate != "" {
			parsed, err := barcode.ParseExpiry(lot.ExpiryDate)
			if err != nil {
				httputil.Error(w, errors.BadRequest("unparseable expiry date: "+lot.ExpiryDate))
				return
			}
			entry.ExpiryDate = &parsed
		}
		entries = append(entries, entry)
	}

	result, err := h.reconcile.Receive(r.Context(), service.ReceiveRequest{
		ProductCode:      req.ProductCode,
		Entries:          entries,
		QuantityOrdered:  req.QuantityOrdered,
		UnitsPerQuantity: req.UnitsPerQuantity,
		LocationID:       req.LocationID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// RegisterScan credits one unit to the lot a scanned barcode resolves to
func (h *StockHandler) RegisterScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode    string     `json:"barcode" validate:"required"`
		DeliveryAt *time.Time `json:"delivery_at"`
		LocationID *string    `json:"location_id"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	reg, err := h.reconcile.RegisterScan(r.Context(), service.RegisterScanRequest{
		Barcode:    req.Barcode,
		DeliveryAt: req.DeliveryAt,
		LocationID: req.LocationID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, reg)
}

// DiscardLot logs a full-stock withdrawal and removes the lot
func (h *StockHandler) DiscardLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	withdrawal, err := h.reconcile.Discard(r.Context(), lotID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, withdrawal)
}

// ListWithdrawals lists recent ledger withdrawals
func (h *StockHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100)

	if code := r.URL.Query().Get("product_code"); code != "" {
		withdrawals, err := h.ledger.ListWithdrawalsByProduct(r.Context(), code, limit)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, withdrawals)
		return
	}

	withdrawals, err := h.ledger.ListWithdrawals(r.Context(), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, withdrawals)
}

// ListRegistrations lists recent stock registrations
func (h *StockHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.ledger.ListRegistrations(r.Context(), queryLimit(r, 100))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, regs)
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
