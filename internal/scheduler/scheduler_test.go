package scheduler

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"moexboard/internal/sync"
)

type mockJobs struct {
	syncSecuritiesFn func(ctx context.Context, category string, limit int) (*sync.RunResult, error)
	syncFundsFlowFn  func(ctx context.Context, date string) (*sync.RunResult, error)
	cleanupFn        func(ctx context.Context) (int64, error)
}

func (m *mockJobs) SyncSecurities(ctx context.Context, category string, limit int) (*sync.RunResult, error) {
	if m.syncSecuritiesFn != nil {
		return m.syncSecuritiesFn(ctx, category, limit)
	}
	return &sync.RunResult{}, nil
}

func (m *mockJobs) SyncFundsFlow(ctx context.Context, date string) (*sync.RunResult, error) {
	if m.syncFundsFlowFn != nil {
		return m.syncFundsFlowFn(ctx, date)
	}
	return &sync.RunResult{}, nil
}

func (m *mockJobs) CleanupNotifications(ctx context.Context) (int64, error) {
	if m.cleanupFn != nil {
		return m.cleanupFn(ctx)
	}
	return 0, nil
}

func TestNew(t *testing.T) {
	s, err := New(&mockJobs{}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 5 {
		t.Fatalf("expected 5 registered jobs, got %d", len(entries))
	}
}

func TestSecuritiesJobInvokesPipeline(t *testing.T) {
	var gotCategory string
	var gotLimit int
	jobs := &mockJobs{
		syncSecuritiesFn: func(_ context.Context, category string, limit int) (*sync.RunResult, error) {
			gotCategory = category
			gotLimit = limit
			return &sync.RunResult{Created: 1}, nil
		},
	}
	s, err := New(jobs, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.securitiesJob("shares")(context.Background())

	if gotCategory != "shares" {
		t.Errorf("expected shares, got %q", gotCategory)
	}
	if gotLimit != 0 {
		t.Errorf("expected no limit, got %d", gotLimit)
	}
}

func TestFundsFlowJobUsesLatestDate(t *testing.T) {
	var gotDate string
	jobs := &mockJobs{
		syncFundsFlowFn: func(_ context.Context, date string) (*sync.RunResult, error) {
			gotDate = date
			return &sync.RunResult{}, nil
		},
	}
	s, err := New(jobs, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.fundsFlowJob(context.Background())

	if gotDate != "" {
		t.Errorf("expected empty date, got %q", gotDate)
	}
}
