package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/actor"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// OrderHandler handles purchase order endpoints
type OrderHandler struct {
	orders    *service.OrderService
	reconcile *service.ReconcileService
	logger    *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *service.OrderService, reconcile *service.ReconcileService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		reconcile: reconcile,
		logger:    log,
	}
}

// Create records a new purchase order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductCode      string    `json:"product_code" validate:"required"`
		QuantityOrdered  int       `json:"quantity_ordered" validate:"required,gt=0"`
		ExpectedDelivery time.Time `json:"expected_delivery" validate:"required"`
		POReference      string    `json:"po_reference"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	createReq := service.CreateOrderRequest{
		ProductCode:      req.ProductCode,
		QuantityOrdered:  req.QuantityOrdered,
		ExpectedDelivery: req.ExpectedDelivery,
		POReference:      req.POReference,
	}
	if a := actor.FromContext(r.Context()); a != nil {
		createReq.OrderedBy = &a.ID
		createReq.OrderedByName = &a.Name
	}

	order, err := h.orders.CreateOrder(r.Context(), createReq)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, order)
}

// List lists in-flight orders plus recently delivered ones
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListActive(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, orders)
}

// Get gets an order by ID
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// MarkDelivered completes an order directly, crediting its bound lot
func (h *OrderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.reconcile.MarkOrderDelivered(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// ListCompletionLogs lists recent order completion logs
func (h *OrderHandler) ListCompletionLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.orders.ListCompletionLogs(r.Context(), queryLimit(r, 50))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, logs)
}
