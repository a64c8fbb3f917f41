// Package scheduler wires the synchronization pipeline to recurring jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"moexboard/internal/moex"
	"moexboard/internal/sync"
)

// Jobs is the slice of the pipeline the scheduler invokes.
type Jobs interface {
	SyncSecurities(ctx context.Context, category string, limit int) (*sync.RunResult, error)
	SyncFundsFlow(ctx context.Context, date string) (*sync.RunResult, error)
	CleanupNotifications(ctx context.Context) (int64, error)
}

// Exchange-local trading windows. The three security syncs run every five
// minutes on weekdays during trading hours (staggered to spread the load),
// funds flow once daily after the close, and the notification sweep once
// daily unconditionally.
const (
	sharesSpec    = "*/5 10-18 * * MON-FRI"
	futuresSpec   = "1-59/5 10-18 * * MON-FRI"
	optionsSpec   = "2-59/5 10-18 * * MON-FRI"
	fundsFlowSpec = "0 19 * * MON-FRI"
	cleanupSpec   = "30 3 * * *"
)

// jobTimeout bounds one run so a stuck fetch cannot occupy its slot forever.
const jobTimeout = 4 * time.Minute

// exchangeTimezone is the exchange's local time zone the windows above are
// expressed in.
const exchangeTimezone = "Europe/Moscow"

// Scheduler owns the cron runner. Every entry is wrapped in
// SkipIfStillRunning, making the single-flight guarantee for same-type jobs
// explicit instead of assumed.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	log  *zap.SugaredLogger
}

// New creates a scheduler with all five recurring jobs registered.
func New(jobs Jobs, log *zap.SugaredLogger) (*Scheduler, error) {
	location, err := time.LoadLocation(exchangeTimezone)
	if err != nil {
		return nil, err
	}

	cronLog := &cronLogger{log: log}
	runner := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)),
	)

	s := &Scheduler{cron: runner, jobs: jobs, log: log}

	entries := []struct {
		spec string
		name string
		run  func(context.Context)
	}{
		{sharesSpec, "sync-shares", s.securitiesJob(moex.CategoryShares)},
		{futuresSpec, "sync-futures", s.securitiesJob(moex.CategoryFutures)},
		{optionsSpec, "sync-options", s.securitiesJob(moex.CategoryOptions)},
		{fundsFlowSpec, "sync-funds-flow", s.fundsFlowJob},
		{cleanupSpec, "cleanup-notifications", s.cleanupJob},
	}
	for _, entry := range entries {
		run := entry.run
		if _, err := runner.AddFunc(entry.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			run(ctx)
		}); err != nil {
			return nil, err
		}
		log.Infow("registered job", "job", entry.name, "spec", entry.spec)
	}

	return s, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// Entries returns the registered cron entries.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) securitiesJob(category string) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := s.jobs.SyncSecurities(ctx, category, 0); err != nil {
			s.log.Errorw("securities sync failed", "category", category, "error", err)
		}
	}
}

func (s *Scheduler) fundsFlowJob(ctx context.Context) {
	if _, err := s.jobs.SyncFundsFlow(ctx, ""); err != nil {
		s.log.Errorw("funds flow sync failed", "error", err)
	}
}

func (s *Scheduler) cleanupJob(ctx context.Context) {
	if _, err := s.jobs.CleanupNotifications(ctx); err != nil {
		s.log.Errorw("notification cleanup failed", "error", err)
	}
}

// cronLogger adapts the zap sugared logger to cron's Logger interface.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
