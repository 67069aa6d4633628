package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// LocationHandler handles storage location endpoints
type LocationHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(catalog *service.CatalogService, log *logger.Logger) *LocationHandler {
	return &LocationHandler{
		catalog: catalog,
		logger:  log,
	}
}

// List lists all locations
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := h.catalog.ListLocations(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, locations)
}

// Create creates a new location
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var loc repository.Location
	if err := httputil.DecodeJSON(r, &loc); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&loc); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.catalog.CreateLocation(r.Context(), &loc); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, loc)
}

// Delete removes a non-default location
func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeleteLocation(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
