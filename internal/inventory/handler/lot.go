package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// LotHandler handles lot endpoints
type LotHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(catalog *service.CatalogService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		catalog: catalog,
		logger:  log,
	}
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.catalog.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Update updates a lot's descriptive fields
func (h *LotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var lot repository.Lot
	if err := httputil.DecodeJSON(r, &lot); err != nil {
		httputil.Error(w, err)
		return
	}

	lot.ID = id
	if err := h.catalog.UpdateLot(r.Context(), &lot); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// ListAcceptanceTests lists acceptance tests for a lot
func (h *LotHandler) ListAcceptanceTests(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	tests, err := h.catalog.ListAcceptanceTests(r.Context(), lotID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tests)
}

// RecordAcceptanceTest records a quality sign-off for a lot
func (h *LotHandler) RecordAcceptanceTest(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	var test repository.AcceptanceTest
	if err := httputil.DecodeJSON(r, &test); err != nil {
		httputil.Error(w, err)
		return
	}

	test.LotID = lotID
	if err := h.catalog.RecordAcceptanceTest(r.Context(), &test); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, test)
}
