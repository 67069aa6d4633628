package handler

import (
	"net/http"

	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// DashboardHandler handles the dashboard summary endpoint
type DashboardHandler struct {
	alerts *service.AlertService
	logger *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(alerts *service.AlertService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		alerts: alerts,
		logger: log,
	}
}

// GetStats returns the alert summary for the landing view
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.alerts.Dashboard(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
