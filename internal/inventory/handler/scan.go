package handler

import (
	"net/http"

	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ScanHandler handles barcode scan endpoints
type ScanHandler struct {
	scan   *service.ScanService
	logger *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scan *service.ScanService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		scan:   scan,
		logger: log,
	}
}

// Decode decodes a raw barcode into a structured label without touching stock
func (h *ScanHandler) Decode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode string `json:"barcode" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	label, err := h.scan.Decode(req.Barcode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, label)
}

// Scan decodes a barcode and resolves it against the product catalog
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode string `json:"barcode" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.scan.Scan(r.Context(), req.Barcode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
