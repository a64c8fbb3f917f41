package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/models"
	"moexboard/internal/moex"
	"moexboard/internal/pagination"
	"moexboard/internal/services"
)

// exchangeFetcher is the slice of the exchange fetchers the live-data
// endpoints proxy to.
type exchangeFetcher interface {
	TrendingByVolume(ctx context.Context, limit int) ([]moex.Record, error)
	SectorPerformance(ctx context.Context) ([]moex.Record, error)
	IndexAnalytics(ctx context.Context, indexID string) ([]moex.Record, error)
}

// SecurityHandler handles stored-security queries and live exchange proxies.
type SecurityHandler struct {
	securityService services.SecurityServicer
	fetcher         exchangeFetcher
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(securityService services.SecurityServicer, fetcher exchangeFetcher) *SecurityHandler {
	return &SecurityHandler{securityService: securityService, fetcher: fetcher}
}

// ListSecuritiesRequest represents the query parameters for listing securities.
type ListSecuritiesRequest struct {
	Category string `form:"category" binding:"omitempty,security_category"`
	Market   string `form:"market"`
	Search   string `form:"search"`
}

// ListSecurities handles listing stored securities with optional filters.
func (h *SecurityHandler) ListSecurities(c *gin.Context) {
	var req ListSecuritiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.SecurityFilter{
		Category: models.SecurityCategory(req.Category),
		Market:   req.Market,
		Search:   req.Search,
	}
	result, err := h.securityService.ListSecurities(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSecurity handles retrieving one stored security by its exchange SECID.
func (h *SecurityHandler) GetSecurity(c *gin.Context) {
	security, err := h.securityService.GetBySecID(c.Param("secid"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"security": security})
}

// GetCategoryStats handles the per-category row count summary.
func (h *SecurityHandler) GetCategoryStats(c *gin.Context) {
	stats, err := h.securityService.CategoryStats()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// TrendingRequest represents the query parameters for the trending endpoint.
type TrendingRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// GetTrending proxies the live shares listing ranked by traded volume.
func (h *SecurityHandler) GetTrending(c *gin.Context) {
	var req TrendingRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	records, err := h.fetcher.TrendingByVolume(c.Request.Context(), req.Limit)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrExchangeUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"securities": records})
}

// GetSectors proxies the live sector index performance listing.
func (h *SecurityHandler) GetSectors(c *gin.Context) {
	records, err := h.fetcher.SectorPerformance(c.Request.Context())
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrExchangeUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"sectors": records})
}

// GetIndexComposition proxies the live component weights of a stock index.
func (h *SecurityHandler) GetIndexComposition(c *gin.Context) {
	indexID := c.Param("index")

	records, err := h.fetcher.IndexAnalytics(c.Request.Context(), indexID)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrExchangeUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"index": indexID, "tickers": records})
}
