package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"moexboard/internal/models"
	"moexboard/internal/moex"
	"moexboard/internal/pagination"
	"moexboard/internal/services"
	"moexboard/internal/testutil"
)

// --- mock fetcher ---

type mockFetcher struct {
	securitiesFn func(ctx context.Context, category string, limit int) ([]moex.Record, error)
	fundsFlowFn  func(ctx context.Context, date string) ([]moex.Record, error)
}

func (m *mockFetcher) SecuritiesByCategory(ctx context.Context, category string, limit int) ([]moex.Record, error) {
	if m.securitiesFn != nil {
		return m.securitiesFn(ctx, category, limit)
	}
	return []moex.Record{}, nil
}

func (m *mockFetcher) FundsFlow(ctx context.Context, date string) ([]moex.Record, error) {
	if m.fundsFlowFn != nil {
		return m.fundsFlowFn(ctx, date)
	}
	return []moex.Record{}, nil
}

func newTestPipeline(t *testing.T, db *gorm.DB, fetcher Fetcher) *Pipeline {
	t.Helper()
	return New(
		fetcher,
		services.NewSecurityService(db),
		services.NewFundsFlowService(db),
		services.NewFavoriteService(db),
		services.NewNotificationService(db),
		zap.NewNop().Sugar(),
		5.0,
		30*24*time.Hour,
	)
}

// --- tests ---

func TestSyncSecurities(t *testing.T) {
	t.Run("stores a record and notifies watchers over the threshold", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestFavorite(t, db, user.ID, "SBER")

		fetcher := &mockFetcher{
			securitiesFn: func(_ context.Context, _ string, _ int) ([]moex.Record, error) {
				return []moex.Record{
					{"secid": "SBER", "shortname": "Сбербанк", "boardid": "TQBR",
						"last": 285.5, "changepercent": 6.0, "voltoday": 1000.0, "lotsize": 10.0},
				}, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		result, err := pipeline.SyncSecurities(context.Background(), "shares", 0)
		testutil.AssertNoError(t, err)
		if result.Created != 1 || result.Updated != 0 || result.Failed != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}
		if result.Notified != 1 {
			t.Fatalf("expected 1 notification, got %d", result.Notified)
		}

		var security models.Security
		if err := db.Where("sec_id = ?", "SBER").First(&security).Error; err != nil {
			t.Fatalf("security not stored: %v", err)
		}
		if security.Category != models.CategoryShares || security.Engine != "stock" {
			t.Errorf("route fields not mapped: %+v", security)
		}
		if security.Extra["lotsize"] != 10.0 {
			t.Errorf("unmapped column not kept in extra: %v", security.Extra)
		}

		var notification models.Notification
		if err := db.Where("user_id = ?", user.ID).First(&notification).Error; err != nil {
			t.Fatalf("notification not stored: %v", err)
		}
		if !strings.Contains(notification.Message, "SBER") || !strings.Contains(notification.Message, "6.00") {
			t.Errorf("message should name the security and the move, got %q", notification.Message)
		}
	})

	t.Run("one bad record fails alone", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		records := make([]moex.Record, 0, 10)
		for i := 0; i < 9; i++ {
			records = append(records, moex.Record{
				"secid": fmt.Sprintf("SEC%d", i), "last": 100.0 + float64(i),
			})
		}
		records = append(records, moex.Record{"secid": "BROKEN", "last": "n/a"})

		fetcher := &mockFetcher{
			securitiesFn: func(_ context.Context, _ string, _ int) ([]moex.Record, error) {
				return records, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		result, err := pipeline.SyncSecurities(context.Background(), "shares", 0)
		testutil.AssertNoError(t, err)
		if result.Created != 9 || result.Failed != 1 {
			t.Fatalf("expected created=9 failed=1, got %+v", result)
		}

		var count int64
		db.Model(&models.Security{}).Count(&count)
		if count != 9 {
			t.Errorf("expected 9 stored securities, got %d", count)
		}
	})

	t.Run("re-run updates instead of duplicating", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		fetcher := &mockFetcher{
			securitiesFn: func(_ context.Context, _ string, _ int) ([]moex.Record, error) {
				return []moex.Record{{"secid": "SBER", "last": 285.5}}, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		_, err := pipeline.SyncSecurities(context.Background(), "shares", 0)
		testutil.AssertNoError(t, err)

		result, err := pipeline.SyncSecurities(context.Background(), "shares", 0)
		testutil.AssertNoError(t, err)
		if result.Created != 0 || result.Updated != 1 {
			t.Fatalf("expected pure update run, got %+v", result)
		}

		var count int64
		db.Model(&models.Security{}).Count(&count)
		if count != 1 {
			t.Errorf("expected 1 row, got %d", count)
		}
	})

	t.Run("below-threshold move does not notify", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestFavorite(t, db, user.ID, "SBER")

		fetcher := &mockFetcher{
			securitiesFn: func(_ context.Context, _ string, _ int) ([]moex.Record, error) {
				return []moex.Record{{"secid": "SBER", "last": 285.5, "changepercent": 4.9}}, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		result, err := pipeline.SyncSecurities(context.Background(), "shares", 0)
		testutil.AssertNoError(t, err)
		if result.Notified != 0 {
			t.Errorf("expected no notifications, got %d", result.Notified)
		}
	})

	t.Run("negative move at the threshold notifies", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestFavorite(t, db, user.ID, "GAZP")

		fetcher := &mockFetcher{
			securitiesFn: func(_ context.Context, _ string, _ int) ([]moex.Record, error) {
				return []moex.Record{{"secid": "GAZP", "last": 120.0, "changepercent": -5.0}}, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		result, err := pipeline.SyncSecurities(context.Background(), "shares", 0)
		testutil.AssertNoError(t, err)
		if result.Notified != 1 {
			t.Errorf("expected 1 notification for a -5%% move, got %d", result.Notified)
		}
	})

	t.Run("fetch failure aborts the run", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		fetcher := &mockFetcher{
			securitiesFn: func(_ context.Context, _ string, _ int) ([]moex.Record, error) {
				return nil, &moex.FetchError{StatusCode: 503, Status: "503 Service Unavailable"}
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		_, err := pipeline.SyncSecurities(context.Background(), "shares", 0)
		if err == nil {
			t.Fatal("expected fetch failure to propagate")
		}

		var count int64
		db.Model(&models.Security{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no rows after a failed fetch, got %d", count)
		}
	})
}

func TestSyncFundsFlow(t *testing.T) {
	t.Run("splits net flow into amount and direction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		fetcher := &mockFetcher{
			fundsFlowFn: func(_ context.Context, date string) ([]moex.Record, error) {
				return []moex.Record{
					{"date": "2025-03-14", "entitytype": "fiz", "secid": "SBER", "netflow": -1500.0},
					{"date": "2025-03-14", "entitytype": "yur", "secid": "SBER", "netflow": 2300.0},
				}, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		result, err := pipeline.SyncFundsFlow(context.Background(), "2025-03-14")
		testutil.AssertNoError(t, err)
		if result.Created != 2 || result.Failed != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}

		var outflow models.FundsFlowRecord
		err = db.Where("entity_type = ?", models.EntityIndividual).First(&outflow).Error
		testutil.AssertNoError(t, err)
		if outflow.Amount != 1500 || outflow.Direction != models.FlowOutflow {
			t.Errorf("expected outflow of 1500, got %+v", outflow)
		}

		var inflow models.FundsFlowRecord
		err = db.Where("entity_type = ?", models.EntityLegal).First(&inflow).Error
		testutil.AssertNoError(t, err)
		if inflow.Amount != 2300 || inflow.Direction != models.FlowInflow {
			t.Errorf("expected inflow of 2300, got %+v", inflow)
		}
	})

	t.Run("record without a date falls back to the requested one", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		fetcher := &mockFetcher{
			fundsFlowFn: func(_ context.Context, _ string) ([]moex.Record, error) {
				return []moex.Record{{"entitytype": "fiz", "netflow": 10.0}}, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		result, err := pipeline.SyncFundsFlow(context.Background(), "2025-03-14")
		testutil.AssertNoError(t, err)
		if result.Created != 1 {
			t.Fatalf("unexpected result: %+v", result)
		}

		var record models.FundsFlowRecord
		testutil.AssertNoError(t, db.First(&record).Error)
		if record.Date != "2025-03-14" {
			t.Errorf("expected fallback date, got %q", record.Date)
		}
	})

	t.Run("unknown entity type counts as failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		fetcher := &mockFetcher{
			fundsFlowFn: func(_ context.Context, _ string) ([]moex.Record, error) {
				return []moex.Record{
					{"date": "2025-03-14", "entitytype": "alien", "netflow": 10.0},
					{"date": "2025-03-14", "entitytype": "fiz", "netflow": 20.0},
				}, nil
			},
		}
		pipeline := newTestPipeline(t, db, fetcher)

		result, err := pipeline.SyncFundsFlow(context.Background(), "")
		testutil.AssertNoError(t, err)
		if result.Created != 1 || result.Failed != 1 {
			t.Errorf("expected created=1 failed=1, got %+v", result)
		}
	})
}

func TestCleanupNotifications(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	old := testutil.CreateTestNotification(t, db, user.ID, "OLD")
	testutil.CreateTestNotification(t, db, user.ID, "NEW")

	stale := time.Now().Add(-45 * 24 * time.Hour)
	if err := db.Model(old).Update("created_at", stale).Error; err != nil {
		t.Fatalf("failed to age notification: %v", err)
	}

	pipeline := newTestPipeline(t, db, &mockFetcher{})

	purged, err := pipeline.CleanupNotifications(context.Background())
	testutil.AssertNoError(t, err)
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}

	svc := services.NewNotificationService(db)
	result, err := svc.List(user.ID, false, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if result.TotalItems != 1 || result.Data[0].SecID != "NEW" {
		t.Errorf("expected only the fresh notification to survive, got %+v", result.Data)
	}
}
