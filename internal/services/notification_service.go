package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "moexboard/internal/errors"
	"moexboard/internal/models"
	"moexboard/internal/pagination"
)

// notificationService handles notification delivery and read state.
type notificationService struct {
	db *gorm.DB
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(db *gorm.DB) NotificationServicer {
	return &notificationService{db: db}
}

// Create inserts one notification for a user about a security move.
func (s *notificationService) Create(userID, secid, message string, changePercent *float64) (*models.Notification, error) {
	if userID == "" || secid == "" || message == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "User, SECID and message are required")
	}

	notification := &models.Notification{
		UserID:        userID,
		SecID:         secid,
		Message:       message,
		ChangePercent: changePercent,
	}
	if err := s.db.Create(notification).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return notification, nil
}

// List returns a user's notifications, newest first, optionally unread only.
func (s *notificationService) List(userID string, unreadOnly bool, page pagination.PageRequest) (*pagination.PageResponse[models.Notification], error) {
	page.Defaults()

	base := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		base = base.Where("read = ?", false)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var notifications []models.Notification
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&notifications).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(notifications, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// MarkRead flips one of the user's notifications to read. The transition is
// one-way; marking an already-read notification is a no-op.
func (s *notificationService) MarkRead(userID, notificationID string) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !notification.Read {
		if err := s.db.Model(&notification).Update("read", true).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return &notification, nil
}

// MarkAllRead flips all of a user's unread notifications to read and
// returns how many rows changed. Other users' rows are untouched.
func (s *notificationService) MarkAllRead(userID string) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeOlderThan deletes notifications created before now-age, regardless
// of read state. Invoked by the retention sweep job.
func (s *notificationService) PurgeOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.Notification{})
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}
