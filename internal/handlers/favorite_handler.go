package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/pagination"
	"moexboard/internal/services"
)

// FavoriteHandler handles watchlist management.
type FavoriteHandler struct {
	favoriteService services.FavoriteServicer
}

// NewFavoriteHandler creates a new FavoriteHandler.
func NewFavoriteHandler(favoriteService services.FavoriteServicer) *FavoriteHandler {
	return &FavoriteHandler{favoriteService: favoriteService}
}

// AddFavoriteRequest represents the request payload for adding a favorite.
type AddFavoriteRequest struct {
	SecID      string `json:"secid" binding:"required,min=1,max=36"`
	CustomName string `json:"custom_name" binding:"max=100"`
}

// AddFavorite adds a security to the user's watchlist.
func (h *FavoriteHandler) AddFavorite(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	favorite, err := h.favoriteService.Add(userID, req.SecID, req.CustomName)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"favorite": favorite})
}

// RemoveFavorite removes a security from the user's watchlist.
func (h *FavoriteHandler) RemoveFavorite(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.favoriteService.Remove(userID, c.Param("secid")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Favorite removed"})
}

// ListFavorites lists the user's watchlist, newest first.
func (h *FavoriteHandler) ListFavorites(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.favoriteService.List(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
