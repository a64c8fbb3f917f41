package models

// Notification is a delivered alert about a security's price move.
// Immutable except for Read, which only ever transitions false to true.
// Rows older than the retention window are purged by a scheduled sweep.
type Notification struct {
	Base
	UserID        string   `gorm:"type:uuid;not null;index" json:"user_id"`
	SecID         string   `gorm:"not null" json:"secid"`
	Message       string   `gorm:"not null" json:"message"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Read          bool     `gorm:"not null;default:false;index" json:"read"`
}
