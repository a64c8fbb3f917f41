package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/models"
	"moexboard/internal/pagination"
)

// favoriteService handles favorite management.
type favoriteService struct {
	db *gorm.DB
}

// NewFavoriteService creates a new FavoriteServicer.
func NewFavoriteService(db *gorm.DB) FavoriteServicer {
	return &favoriteService{db: db}
}

// Add saves a user's interest in a security. Adding an existing
// (user, secid) pair is rejected with ErrDuplicateFavorite; no duplicate
// row is created.
func (s *favoriteService) Add(userID, secid, customName string) (*models.Favorite, error) {
	if strings.TrimSpace(secid) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "SECID is required")
	}

	favorite := &models.Favorite{
		UserID:     userID,
		SecID:      secid,
		CustomName: customName,
	}
	if err := s.db.Create(favorite).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateFavorite
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return favorite, nil
}

// Remove deletes a user's favorite by security identifier.
func (s *favoriteService) Remove(userID, secid string) error {
	result := s.db.Where("user_id = ? AND sec_id = ?", userID, secid).
		Delete(&models.Favorite{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrFavoriteNotFound
	}
	return nil
}

// List returns a user's favorites, newest first.
func (s *favoriteService) List(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Favorite], error) {
	page.Defaults()

	base := s.db.Model(&models.Favorite{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var favorites []models.Favorite
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&favorites).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(favorites, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UserIDsFor returns the IDs of every user who favorited a security. Used
// by the pipeline's notification fan-out.
func (s *favoriteService) UserIDsFor(secid string) ([]string, error) {
	var userIDs []string
	err := s.db.Model(&models.Favorite{}).
		Where("sec_id = ?", secid).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return userIDs, nil
}

// isUniqueConstraintError checks if a GORM error is a unique constraint
// violation.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}
