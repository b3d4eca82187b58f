package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/markaz-go-api/internal/models"
	"github.com/noah-isme/markaz-go-api/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context) (*models.DashboardOverview, bool, error)
}

type systemMetricsProvider interface {
	Snapshot() models.SystemMetrics
}

// DashboardHandler serves the admin overview.
type DashboardHandler struct {
	service dashboardService
	metrics systemMetricsProvider
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc dashboardService, metrics systemMetricsProvider) *DashboardHandler {
	return &DashboardHandler{service: svc, metrics: metrics}
}

// Overview godoc
// @Summary Class statistics, level distribution and top performers
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	overview, cached, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil, map[string]interface{}{"cached": cached})
}

// System godoc
// @Summary Runtime metrics snapshot
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/system [get]
func (h *DashboardHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
