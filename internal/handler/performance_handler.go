package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/markaz-go-api/internal/service"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
	"github.com/noah-isme/markaz-go-api/pkg/response"
)

// PerformanceHandler exposes derived class and cohort statistics.
type PerformanceHandler struct {
	service *service.PerformanceService
}

// NewPerformanceHandler constructs a performance handler.
func NewPerformanceHandler(svc *service.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{service: svc}
}

// ClassResults godoc
// @Summary Ranked class roster with derived totals
// @Tags Performance
// @Produce json
// @Param class path string true "Class name"
// @Success 200 {object} response.Envelope
// @Router /performance/classes/{class} [get]
func (h *PerformanceHandler) ClassResults(c *gin.Context) {
	className := c.Param("class")
	if className == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class is required"))
		return
	}
	students, err := h.service.LoadClass(c.Request.Context(), className)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// ClassStats godoc
// @Summary Aggregated statistics for one class
// @Tags Performance
// @Produce json
// @Param class path string true "Class name"
// @Success 200 {object} response.Envelope
// @Router /performance/classes/{class}/stats [get]
func (h *PerformanceHandler) ClassStats(c *gin.Context) {
	className := c.Param("class")
	if className == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class is required"))
		return
	}
	stats, err := h.service.ClassStats(c.Request.Context(), className)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Distribution godoc
// @Summary Cohort histogram of performance levels
// @Tags Performance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /performance/distribution [get]
func (h *PerformanceHandler) Distribution(c *gin.Context) {
	entries, err := h.service.Distribution(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// TopPerformers godoc
// @Summary Best students across the cohort
// @Tags Performance
// @Produce json
// @Param limit query int false "Number of students"
// @Success 200 {object} response.Envelope
// @Router /performance/top [get]
func (h *PerformanceHandler) TopPerformers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	students, err := h.service.TopPerformers(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}
