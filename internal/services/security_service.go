package services

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/models"
	"moexboard/internal/pagination"
)

// securityService handles security storage and queries.
type securityService struct {
	db *gorm.DB
}

// NewSecurityService creates a new SecurityServicer.
func NewSecurityService(db *gorm.DB) SecurityServicer {
	return &securityService{db: db}
}

// UpsertSecurity inserts a security on first ingest of its SECID and patches
// it on later ingests. Only fields present in the payload are written;
// LastSyncedAt is refreshed on every successful call.
func (s *securityService) UpsertSecurity(input SecurityUpsert) (bool, error) {
	if strings.TrimSpace(input.SecID) == "" {
		return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "SECID is required")
	}

	now := time.Now().UnixMilli()

	var existing models.Security
	err := s.db.Where("sec_id = ?", input.SecID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		security := &models.Security{
			SecID:         input.SecID,
			ShortName:     input.ShortName,
			Category:      input.Category,
			Engine:        input.Engine,
			Market:        input.Market,
			Board:         input.Board,
			LastPrice:     input.LastPrice,
			Change:        input.Change,
			ChangePercent: input.ChangePercent,
			Volume:        input.Volume,
			Value:         input.Value,
			Extra:         input.Extra,
			LastSyncedAt:  now,
		}
		if err := s.db.Create(security).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return true, nil

	case err != nil:
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	patch, err := buildSecurityPatch(&existing, input)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	patch["last_synced_at"] = now
	if err := s.db.Model(&existing).Updates(patch).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return false, nil
}

// GetBySecID returns a security by its exchange identifier.
func (s *securityService) GetBySecID(secid string) (*models.Security, error) {
	var security models.Security
	if err := s.db.Where("sec_id = ?", secid).First(&security).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSecurityNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &security, nil
}

// ListSecurities returns a filtered, paginated listing ordered by SECID.
func (s *securityService) ListSecurities(filter SecurityFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Security], error) {
	page.Defaults()

	base := s.db.Model(&models.Security{})
	if filter.Category != "" {
		base = base.Where("category = ?", filter.Category)
	}
	if filter.Market != "" {
		base = base.Where("market = ?", filter.Market)
	}
	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		base = base.Where("LOWER(sec_id) LIKE ? OR LOWER(short_name) LIKE ?", needle, needle)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var securities []models.Security
	if err := base.Order("sec_id ASC").Scopes(pagination.Paginate(page)).Find(&securities).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(securities, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// CategoryStats returns row counts per instrument category.
func (s *securityService) CategoryStats() ([]CategoryStat, error) {
	var stats []CategoryStat
	err := s.db.Model(&models.Security{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("category ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if stats == nil {
		stats = []CategoryStat{}
	}
	return stats, nil
}

// buildSecurityPatch maps the present payload fields to their columns.
// Absent fields stay out of the patch so stored values survive schema drift
// between endpoints. The merged extra map is marshaled here because a
// map-based Updates writes raw column values; gorm's serializer tag only
// runs for struct fields.
func buildSecurityPatch(existing *models.Security, input SecurityUpsert) (map[string]any, error) {
	patch := make(map[string]any)

	if input.ShortName != "" {
		patch["short_name"] = input.ShortName
	}
	if input.Category != "" {
		patch["category"] = input.Category
	}
	if input.Engine != "" {
		patch["engine"] = input.Engine
	}
	if input.Market != "" {
		patch["market"] = input.Market
	}
	if input.Board != "" {
		patch["board"] = input.Board
	}
	if input.LastPrice != nil {
		patch["last_price"] = *input.LastPrice
	}
	if input.Change != nil {
		patch["change"] = *input.Change
	}
	if input.ChangePercent != nil {
		patch["change_percent"] = *input.ChangePercent
	}
	if input.Volume != nil {
		patch["volume"] = *input.Volume
	}
	if input.Value != nil {
		patch["value"] = *input.Value
	}
	if len(input.Extra) > 0 {
		merged := make(map[string]any, len(existing.Extra)+len(input.Extra))
		for k, v := range existing.Extra {
			merged[k] = v
		}
		for k, v := range input.Extra {
			merged[k] = v
		}
		encoded, err := json.Marshal(merged)
		if err != nil {
			return nil, err
		}
		patch["extra"] = string(encoded)
	}

	return patch, nil
}
