package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/markaz-go-api/internal/service"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
	"github.com/noah-isme/markaz-go-api/pkg/response"
)

// MarksHandler handles mark entry endpoints.
type MarksHandler struct {
	service *service.MarksService
}

// NewMarksHandler constructs a marks handler.
func NewMarksHandler(svc *service.MarksService) *MarksHandler {
	return &MarksHandler{service: svc}
}

// Enter godoc
// @Summary Record one mark entry
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body service.EnterMarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /marks [post]
func (h *MarksHandler) Enter(c *gin.Context) {
	var req service.EnterMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.service.Enter(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// BulkEnter godoc
// @Summary Record a batch of marks
// @Tags Marks
// @Accept json
// @Produce json
// @Param payload body service.BulkEnterRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /marks/bulk [post]
func (h *MarksHandler) BulkEnter(c *gin.Context) {
	var req service.BulkEnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkEnter(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Remove godoc
// @Summary Delete a mark entry
// @Tags Marks
// @Produce json
// @Param studentId path string true "Student ID"
// @Param subjectId path string true "Subject ID"
// @Success 204
// @Router /marks/{studentId}/{subjectId} [delete]
func (h *MarksHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("studentId"), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
