package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/models"
	"moexboard/internal/services"
)

// FundsFlowHandler handles investor funds-flow queries.
type FundsFlowHandler struct {
	flowService services.FundsFlowServicer
}

// NewFundsFlowHandler creates a new FundsFlowHandler.
func NewFundsFlowHandler(flowService services.FundsFlowServicer) *FundsFlowHandler {
	return &FundsFlowHandler{flowService: flowService}
}

// TrendRequest represents the query parameters for the flow trend endpoint.
// An empty secid selects the market-wide aggregate rows.
type TrendRequest struct {
	SecID      string `form:"secid"`
	EntityType string `form:"entity_type" binding:"omitempty,entity_type"`
	Days       int    `form:"days" binding:"omitempty,min=1,max=365"`
}

// GetTrend returns the stored funds-flow series, oldest first.
func (h *FundsFlowHandler) GetTrend(c *gin.Context) {
	var req TrendRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.Days == 0 {
		req.Days = 30
	}

	var entityType *models.EntityType
	if req.EntityType != "" {
		et := models.EntityType(req.EntityType)
		entityType = &et
	}

	records, err := h.flowService.Trend(req.SecID, entityType, req.Days)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secid": req.SecID,
		"days":  req.Days,
		"flows": records,
	})
}
