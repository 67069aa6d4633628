package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// ProductHandler handles product catalog endpoints
type ProductHandler struct {
	catalog *service.CatalogService
	logger  *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(catalog *service.CatalogService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  log,
	}
}

// List lists all products with their lots and aggregate stock
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// Create creates a new product
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var product repository.Product
	if err := httputil.DecodeJSON(r, &product); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&product); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.catalog.CreateProduct(r.Context(), &product); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, product)
}

// Get gets a product by ID
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Update updates a product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var product repository.Product
	if err := httputil.DecodeJSON(r, &product); err != nil {
		httputil.Error(w, err)
		return
	}

	product.ID = id
	if err := h.catalog.UpdateProduct(r.Context(), &product); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, product)
}

// Delete deletes a product and its lots
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ListLots lists lots for a product
func (h *ProductHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	lots, err := h.catalog.ListLots(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// CreateLot creates a lot under a product
func (h *ProductHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var lot repository.Lot
	if err := httputil.DecodeJSON(r, &lot); err != nil {
		httputil.Error(w, err)
		return
	}

	lot.ProductID = productID
	if err := h.catalog.CreateLot(r.Context(), &lot); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}
