package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"moexboard/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestSecurity creates a share with a unique SECID and a last price.
func CreateTestSecurity(t *testing.T, db *gorm.DB) *models.Security {
	t.Helper()
	secid := fmt.Sprintf("TST%d", nextID())
	return CreateTestSecurityWithSecID(t, db, secid)
}

// CreateTestSecurityWithSecID creates a share with the given SECID.
func CreateTestSecurityWithSecID(t *testing.T, db *gorm.DB, secid string) *models.Security {
	t.Helper()

	price := 100.0
	security := &models.Security{
		SecID:        secid,
		ShortName:    fmt.Sprintf("Test Security %s", secid),
		Category:     models.CategoryShares,
		Engine:       "stock",
		Market:       "shares",
		Board:        "TQBR",
		LastPrice:    &price,
		LastSyncedAt: time.Now().UnixMilli(),
	}
	if err := db.Create(security).Error; err != nil {
		t.Fatalf("failed to create test security: %v", err)
	}
	return security
}

// CreateTestFundsFlow creates a funds-flow observation for the given date.
func CreateTestFundsFlow(t *testing.T, db *gorm.DB, date string, entityType models.EntityType, secid string, amount float64) *models.FundsFlowRecord {
	t.Helper()

	direction := models.FlowInflow
	if amount < 0 {
		direction = models.FlowOutflow
		amount = -amount
	}

	record := &models.FundsFlowRecord{
		Date:         date,
		EntityType:   entityType,
		SecID:        secid,
		Market:       "shares",
		Amount:       amount,
		Direction:    direction,
		LastSyncedAt: time.Now().UnixMilli(),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create test funds flow record: %v", err)
	}
	return record
}

// CreateTestFavorite adds a security to a user's watchlist.
func CreateTestFavorite(t *testing.T, db *gorm.DB, userID, secid string) *models.Favorite {
	t.Helper()

	favorite := &models.Favorite{
		UserID: userID,
		SecID:  secid,
	}
	if err := db.Create(favorite).Error; err != nil {
		t.Fatalf("failed to create test favorite: %v", err)
	}
	return favorite
}

// CreateTestNotification creates an unread notification for a user.
func CreateTestNotification(t *testing.T, db *gorm.DB, userID, secid string) *models.Notification {
	t.Helper()

	pct := 6.0
	notification := &models.Notification{
		UserID:        userID,
		SecID:         secid,
		Message:       fmt.Sprintf("%s moved +6.00%% today", secid),
		ChangePercent: &pct,
	}
	if err := db.Create(notification).Error; err != nil {
		t.Fatalf("failed to create test notification: %v", err)
	}
	return notification
}
