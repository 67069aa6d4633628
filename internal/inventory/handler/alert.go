package handler

import (
	"net/http"
	"strconv"

	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// AlertHandler handles alert query endpoints
type AlertHandler struct {
	alerts *service.AlertService
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: log,
	}
}

// LowStock lists products below threshold without an outstanding order
func (h *AlertHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.alerts.LowStockProducts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// Expired lists lots whose expiry date has passed
func (h *AlertHandler) Expired(w http.ResponseWriter, r *http.Request) {
	lots, err := h.alerts.ExpiredLots(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Expiring lists lots expiring within the requested window
func (h *AlertHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			days = n
		}
	}

	lots, err := h.alerts.ExpiringLots(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Untested lists in-stock lots with no completed acceptance test
func (h *AlertHandler) Untested(w http.ResponseWriter, r *http.Request) {
	lots, err := h.alerts.UntestedLots(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Failed lists in-stock lots with a failed acceptance test
func (h *AlertHandler) Failed(w http.ResponseWriter, r *http.Request) {
	lots, err := h.alerts.FailedLots(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// DuplicateNames lists product names shared across distinct product codes
func (h *AlertHandler) DuplicateNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.alerts.DuplicateProductNames(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, names)
}

// MissingThresholds lists products whose reorder threshold was never set
func (h *AlertHandler) MissingThresholds(w http.ResponseWriter, r *http.Request) {
	products, err := h.alerts.MissingThresholds(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}
