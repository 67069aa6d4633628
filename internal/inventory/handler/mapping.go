package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// MappingHandler handles legacy code mapping endpoints
type MappingHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(catalog *service.CatalogService, log *logger.Logger) *MappingHandler {
	return &MappingHandler{
		catalog: catalog,
		logger:  log,
	}
}

// List lists code mappings
func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.catalog.ListCodeMappings(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, mappings)
}

// Create creates a code mapping
func (h *MappingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var mapping repository.CodeMapping
	if err := httputil.DecodeJSON(r, &mapping); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&mapping); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.catalog.CreateCodeMapping(r.Context(), &mapping); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, mapping)
}

// Delete removes a code mapping
func (h *MappingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeleteCodeMapping(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
