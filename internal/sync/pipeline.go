// Package sync runs the scheduled fetch → upsert → notify pipeline that
// keeps the market-data tables current.
package sync

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"moexboard/internal/models"
	"moexboard/internal/moex"
	"moexboard/internal/services"
)

// Fetcher is the slice of the exchange fetchers the pipeline needs.
type Fetcher interface {
	SecuritiesByCategory(ctx context.Context, category string, limit int) ([]moex.Record, error)
	FundsFlow(ctx context.Context, date string) ([]moex.Record, error)
}

// RunResult summarizes one pipeline run. Upserts are independent per record,
// so a run can report both successes and failures; partial progress stays
// applied even when later records fail.
type RunResult struct {
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Notified int           `json:"notified,omitempty"`
	Duration time.Duration `json:"-"`
}

// Pipeline orchestrates the synchronization jobs: fetch from the exchange,
// upsert by natural key, and fan out threshold notifications.
type Pipeline struct {
	fetcher       Fetcher
	securities    services.SecurityServicer
	flows         services.FundsFlowServicer
	favorites     services.FavoriteServicer
	notifications services.NotificationServicer
	log           *zap.SugaredLogger

	thresholdPct float64
	retention    time.Duration
}

// New creates a Pipeline. thresholdPct is the absolute change-percent at or
// above which favoriting users are notified; retention bounds notification
// age for the cleanup job.
func New(
	fetcher Fetcher,
	securities services.SecurityServicer,
	flows services.FundsFlowServicer,
	favorites services.FavoriteServicer,
	notifications services.NotificationServicer,
	log *zap.SugaredLogger,
	thresholdPct float64,
	retention time.Duration,
) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		securities:    securities,
		flows:         flows,
		favorites:     favorites,
		notifications: notifications,
		log:           log,
		thresholdPct:  thresholdPct,
		retention:     retention,
	}
}

// SyncSecurities runs one synchronization pass for an instrument category.
// A fetch failure aborts the run before any upsert; per-record upsert
// failures are counted and skipped.
func (p *Pipeline) SyncSecurities(ctx context.Context, category string, limit int) (*RunResult, error) {
	start := time.Now()

	records, err := p.fetcher.SecuritiesByCategory(ctx, category, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", category, err)
	}

	result := &RunResult{}
	for _, rec := range records {
		input, err := securityUpsertFromRecord(rec, category)
		if err != nil {
			result.Failed++
			p.log.Warnw("skipping record", "category", category, "secid", rec.String("secid"), "error", err)
			continue
		}

		created, err := p.securities.UpsertSecurity(*input)
		if err != nil {
			result.Failed++
			p.log.Warnw("upsert failed", "category", category, "secid", input.SecID, "error", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}

		if input.ChangePercent != nil && math.Abs(*input.ChangePercent) >= p.thresholdPct {
			result.Notified += p.notifyWatchers(input)
		}
	}

	result.Duration = time.Since(start)
	p.log.Infow("securities sync completed",
		"category", category,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed,
		"notified", result.Notified,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// SyncFundsFlow runs one funds-flow synchronization pass. date is
// YYYY-MM-DD; empty asks the exchange for its latest available date.
func (p *Pipeline) SyncFundsFlow(ctx context.Context, date string) (*RunResult, error) {
	start := time.Now()

	records, err := p.fetcher.FundsFlow(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetching funds flow: %w", err)
	}

	result := &RunResult{}
	for _, rec := range records {
		input, err := flowUpsertFromRecord(rec, date)
		if err != nil {
			result.Failed++
			p.log.Warnw("skipping flow record", "secid", rec.String("secid"), "error", err)
			continue
		}

		created, err := p.flows.UpsertFlow(*input)
		if err != nil {
			result.Failed++
			p.log.Warnw("flow upsert failed", "date", input.Date, "secid", input.SecID, "error", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	result.Duration = time.Since(start)
	p.log.Infow("funds flow sync completed",
		"date", date,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// CleanupNotifications deletes notifications older than the retention
// window and returns how many were removed.
func (p *Pipeline) CleanupNotifications(ctx context.Context) (int64, error) {
	purged, err := p.notifications.PurgeOlderThan(p.retention)
	if err != nil {
		return 0, err
	}
	p.log.Infow("notification cleanup completed", "purged", purged)
	return purged, nil
}

// notifyWatchers inserts one notification per user who favorited the moving
// security. Best-effort per user: a failed insert is logged and skipped.
func (p *Pipeline) notifyWatchers(input *services.SecurityUpsert) int {
	userIDs, err := p.favorites.UserIDsFor(input.SecID)
	if err != nil {
		p.log.Warnw("favorite lookup failed", "secid", input.SecID, "error", err)
		return 0
	}

	name := input.ShortName
	if name == "" {
		name = input.SecID
	}
	message := fmt.Sprintf("%s (%s) moved %+.2f%% today", name, input.SecID, *input.ChangePercent)

	notified := 0
	for _, userID := range userIDs {
		if _, err := p.notifications.Create(userID, input.SecID, message, input.ChangePercent); err != nil {
			p.log.Warnw("notification insert failed", "user_id", userID, "secid", input.SecID, "error", err)
			continue
		}
		notified++
	}
	return notified
}

// mappedColumns are the record keys consumed into typed Security fields;
// everything else passes through into the open Extra map.
var mappedColumns = map[string]bool{
	"secid": true, "shortname": true, "secname": true, "boardid": true,
	"last": true, "change": true, "changepercent": true,
	"changespercent": true, "lasttoprevprice": true,
	"voltoday": true, "volume": true, "valtoday": true, "value": true,
}

// securityUpsertFromRecord converts one normalized exchange record into an
// upsert payload. A record without a SECID or without a usable numeric last
// price is rejected so one malformed row fails alone instead of poisoning
// the stored snapshot.
func securityUpsertFromRecord(rec moex.Record, category string) (*services.SecurityUpsert, error) {
	secid := rec.String("secid")
	if secid == "" {
		return nil, fmt.Errorf("record has no secid")
	}

	last, ok := rec.Float("last")
	if !ok {
		return nil, fmt.Errorf("record %s has a missing or non-numeric last price", secid)
	}

	engine, market, _ := moex.RouteFor(category)

	input := &services.SecurityUpsert{
		SecID:     secid,
		Category:  models.SecurityCategory(category),
		Engine:    engine,
		Market:    market,
		Board:     rec.String("boardid"),
		LastPrice: &last,
	}

	if name := rec.String("shortname"); name != "" {
		input.ShortName = name
	} else {
		input.ShortName = rec.String("secname")
	}

	if v, ok := rec.Float("change"); ok {
		input.Change = &v
	}
	if v, ok := rec.Float("changepercent"); ok {
		input.ChangePercent = &v
	}
	if v, ok := rec.Float("voltoday"); ok {
		input.Volume = &v
	} else if v, ok := rec.Float("volume"); ok {
		input.Volume = &v
	}
	if v, ok := rec.Float("valtoday"); ok {
		input.Value = &v
	} else if v, ok := rec.Float("value"); ok {
		input.Value = &v
	}

	extra := make(map[string]any)
	for key, value := range rec {
		if mappedColumns[key] || value == nil {
			continue
		}
		switch value.(type) {
		case string, float64, bool, int, int64:
			extra[key] = value
		}
	}
	if len(extra) > 0 {
		input.Extra = extra
	}

	return input, nil
}

// flowUpsertFromRecord converts one normalized capital-flows record into an
// upsert payload. The exchange reports a signed net flow; storage keeps the
// magnitude with the sign split out into a direction.
func flowUpsertFromRecord(rec moex.Record, fallbackDate string) (*services.FlowUpsert, error) {
	date := rec.String("date")
	if date == "" {
		date = fallbackDate
	}
	if date == "" {
		return nil, fmt.Errorf("record has no date")
	}

	entity, err := parseEntityType(rec.String("entitytype"))
	if err != nil {
		return nil, err
	}

	netflow, ok := rec.Float("netflow")
	if !ok {
		return nil, fmt.Errorf("record has a missing or non-numeric net flow")
	}

	input := &services.FlowUpsert{
		Date:       date,
		EntityType: entity,
		SecID:      rec.String("secid"),
		Market:     rec.String("market"),
		Amount:     math.Abs(netflow),
		Direction:  models.FlowInflow,
	}
	if netflow < 0 {
		input.Direction = models.FlowOutflow
	}
	return input, nil
}

// parseEntityType maps the exchange's investor group codes onto the stored
// entity types.
func parseEntityType(raw string) (models.EntityType, error) {
	switch strings.ToLower(raw) {
	case "individual", "fiz", "private":
		return models.EntityIndividual, nil
	case "legal", "yur", "corporate":
		return models.EntityLegal, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", raw)
	}
}
