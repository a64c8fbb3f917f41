package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/moex"
	"moexboard/internal/sync"
)

// syncRunner is the slice of the pipeline the trigger endpoints invoke.
type syncRunner interface {
	SyncSecurities(ctx context.Context, category string, limit int) (*sync.RunResult, error)
	SyncFundsFlow(ctx context.Context, date string) (*sync.RunResult, error)
	CleanupNotifications(ctx context.Context) (int64, error)
}

// SyncHandler exposes the pipeline jobs as authenticated trigger endpoints
// so operators can force a run outside the schedule.
type SyncHandler struct {
	pipeline syncRunner
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(pipeline syncRunner) *SyncHandler {
	return &SyncHandler{pipeline: pipeline}
}

// SyncSecuritiesRequest represents the optional body of a securities sync
// trigger. Limit caps how many records one run processes; 0 means no cap.
type SyncSecuritiesRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=1000"`
}

// SyncFundsFlowRequest represents the optional body of a funds-flow sync
// trigger. An empty date asks the exchange for its latest available date.
type SyncFundsFlowRequest struct {
	Date string `json:"date" binding:"omitempty,iso_date"`
}

// SyncSecurities triggers one synchronization pass for the category in the
// path (shares, futures or options).
func (h *SyncHandler) SyncSecurities(c *gin.Context) {
	category := c.Param("category")
	if _, _, ok := moex.RouteFor(category); !ok {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown category "+category))
		return
	}

	var req SyncSecuritiesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.pipeline.SyncSecurities(c.Request.Context(), category, req.Limit)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrExchangeUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Synced %s in %s", category, result.Duration.Round(time.Millisecond)),
		"stats":   result,
	})
}

// SyncFundsFlow triggers one funds-flow synchronization pass.
func (h *SyncHandler) SyncFundsFlow(c *gin.Context) {
	var req SyncFundsFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.pipeline.SyncFundsFlow(c.Request.Context(), req.Date)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrExchangeUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Synced funds flow in %s", result.Duration.Round(time.Millisecond)),
		"stats":   result,
	})
}

// CleanupNotifications triggers the notification retention sweep.
func (h *SyncHandler) CleanupNotifications(c *gin.Context) {
	purged, err := h.pipeline.CleanupNotifications(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"purged":  purged,
	})
}
