package models

// Favorite is a user's saved interest in a security.
// (UserID, SecID) is unique: a duplicate add is rejected, not merged.
type Favorite struct {
	Base
	UserID     string `gorm:"type:uuid;not null;uniqueIndex:uq_favorites_user_secid" json:"user_id"`
	SecID      string `gorm:"not null;uniqueIndex:uq_favorites_user_secid;index" json:"secid"`
	CustomName string `json:"custom_name,omitempty"`
}
