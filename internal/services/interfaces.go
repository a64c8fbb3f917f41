// Package services holds the business logic between handlers/pipeline and
// the persistence layer.
package services

import (
	"time"

	"moexboard/internal/models"
	"moexboard/internal/pagination"
)

// SecurityUpsert carries the fields of one ingested security snapshot.
// Nil pointers and empty strings mean "not present in this payload" and
// leave the stored value untouched (partial-patch semantics).
type SecurityUpsert struct {
	SecID         string
	ShortName     string
	Category      models.SecurityCategory
	Engine        string
	Market        string
	Board         string
	LastPrice     *float64
	Change        *float64
	ChangePercent *float64
	Volume        *float64
	Value         *float64
	Extra         map[string]any
}

// SecurityFilter holds optional filter parameters for listing securities.
type SecurityFilter struct {
	Category models.SecurityCategory
	Market   string
	Search   string // case-insensitive substring over secid and shortname
}

// CategoryStat is the per-category row count of the security table.
type CategoryStat struct {
	Category models.SecurityCategory `json:"category"`
	Count    int64                   `json:"count"`
}

// SecurityServicer defines the contract for security storage and queries.
type SecurityServicer interface {
	UpsertSecurity(input SecurityUpsert) (created bool, err error)
	GetBySecID(secid string) (*models.Security, error)
	ListSecurities(filter SecurityFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Security], error)
	CategoryStats() ([]CategoryStat, error)
}

// FlowUpsert carries the fields of one ingested funds-flow observation.
type FlowUpsert struct {
	Date       string // YYYY-MM-DD
	EntityType models.EntityType
	SecID      string // empty = market-wide total
	Market     string
	Amount     float64
	Direction  models.FlowDirection
}

// FundsFlowServicer defines the contract for funds-flow storage and queries.
type FundsFlowServicer interface {
	UpsertFlow(input FlowUpsert) (created bool, err error)
	Trend(secid string, entityType *models.EntityType, days int) ([]models.FundsFlowRecord, error)
}

// FavoriteServicer defines the contract for favorite management.
type FavoriteServicer interface {
	Add(userID, secid, customName string) (*models.Favorite, error)
	Remove(userID, secid string) error
	List(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Favorite], error)
	UserIDsFor(secid string) ([]string, error)
}

// NotificationServicer defines the contract for notification delivery and
// read-state management.
type NotificationServicer interface {
	Create(userID, secid, message string, changePercent *float64) (*models.Notification, error)
	List(userID string, unreadOnly bool, page pagination.PageRequest) (*pagination.PageResponse[models.Notification], error)
	MarkRead(userID, notificationID string) (*models.Notification, error)
	MarkAllRead(userID string) (int64, error)
	PurgeOlderThan(age time.Duration) (int64, error)
}

// UserServicer defines the contract for user accounts.
type UserServicer interface {
	CreateUser(email, password string) (*models.User, error)
	AttemptLogin(email, password string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}
