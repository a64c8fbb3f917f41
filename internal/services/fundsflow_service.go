package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/models"
)

// fundsFlowService handles funds-flow storage and trend queries.
type fundsFlowService struct {
	db *gorm.DB
}

// NewFundsFlowService creates a new FundsFlowServicer.
func NewFundsFlowService(db *gorm.DB) FundsFlowServicer {
	return &fundsFlowService{db: db}
}

// UpsertFlow inserts or overwrites the observation for the
// (date, entity type, secid) natural key. Re-ingesting a date updates the
// existing row rather than accumulating duplicates.
func (s *fundsFlowService) UpsertFlow(input FlowUpsert) (bool, error) {
	if strings.TrimSpace(input.Date) == "" {
		return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "Date is required")
	}
	if input.EntityType != models.EntityIndividual && input.EntityType != models.EntityLegal {
		return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown entity type")
	}
	if input.Amount < 0 {
		return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be non-negative")
	}

	now := time.Now().UnixMilli()

	var existing models.FundsFlowRecord
	err := s.db.Where("date = ? AND entity_type = ? AND sec_id = ?",
		input.Date, input.EntityType, input.SecID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record := &models.FundsFlowRecord{
			Date:         input.Date,
			EntityType:   input.EntityType,
			SecID:        input.SecID,
			Market:       input.Market,
			Amount:       input.Amount,
			Direction:    input.Direction,
			LastSyncedAt: now,
		}
		if err := s.db.Create(record).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return true, nil

	case err != nil:
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	patch := map[string]any{
		"amount":         input.Amount,
		"direction":      input.Direction,
		"last_synced_at": now,
	}
	if input.Market != "" {
		patch["market"] = input.Market
	}
	if err := s.db.Model(&existing).Updates(patch).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return false, nil
}

// Trend returns the funds-flow records for one security (or the market-wide
// totals when secid is empty) over the trailing number of days, oldest first.
func (s *fundsFlowService) Trend(secid string, entityType *models.EntityType, days int) ([]models.FundsFlowRecord, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	query := s.db.Model(&models.FundsFlowRecord{}).
		Where("sec_id = ? AND date >= ?", secid, cutoff)
	if entityType != nil {
		query = query.Where("entity_type = ?", *entityType)
	}

	var records []models.FundsFlowRecord
	if err := query.Order("date ASC").Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if records == nil {
		records = []models.FundsFlowRecord{}
	}
	return records, nil
}
