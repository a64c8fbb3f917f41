package moex

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Exchange concept categories understood by the securities fetcher.
const (
	CategoryShares  = "shares"
	CategoryFutures = "futures"
	CategoryOptions = "options"
)

// categoryRoute maps an instrument category to its ISS hierarchy codes.
type categoryRoute struct {
	engine string
	market string
	board  string // empty means the unscoped market listing
}

var categoryRoutes = map[string]categoryRoute{
	CategoryShares:  {engine: "stock", market: "shares", board: "TQBR"},
	CategoryFutures: {engine: "futures", market: "forts"},
	CategoryOptions: {engine: "futures", market: "options"},
}

// totalSession selects the aggregated trading session in market data blocks.
const totalSession = "3"

// RouteFor returns the ISS engine and market codes for an instrument
// category, and whether the category is known.
func RouteFor(category string) (engine, market string, ok bool) {
	route, ok := categoryRoutes[category]
	return route.engine, route.market, ok
}

// Fetchers groups the per-concept exchange fetch functions. Each picks an
// endpoint template plus default parameters, delegates to the Client and
// the normalizer, and applies light concept-specific post-processing.
//
// Results are discriminated: a fetch failure is returned as an error, never
// silently collapsed into an empty sequence. Callers decide whether empty
// and failed should look the same to their own consumers.
type Fetchers struct {
	client *Client
	log    *zap.SugaredLogger
}

// NewFetchers creates the fetcher set around an exchange client.
func NewFetchers(client *Client, log *zap.SugaredLogger) *Fetchers {
	return &Fetchers{client: client, log: log}
}

// SecuritiesByCategory fetches the security listing plus market data for an
// instrument category and merges the two blocks by SECID. limit <= 0 means
// no limit.
func (f *Fetchers) SecuritiesByCategory(ctx context.Context, category string, limit int) ([]Record, error) {
	route, ok := categoryRoutes[category]
	if !ok {
		return nil, fmt.Errorf("unknown security category %q", category)
	}

	endpoint := "/engines/{engine}/markets/{market}/securities"
	params := Params{
		"engine":         route.engine,
		"market":         route.market,
		"tradingsession": totalSession,
	}
	if route.board != "" {
		endpoint = "/engines/{engine}/markets/{market}/boards/{board}/securities"
		params["board"] = route.board
	}

	blocks, err := f.client.Fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	securities := NormalizeBlock(blocks, "securities")
	marketdata := NormalizeChangePercent(NormalizeBlock(blocks, "marketdata"))
	records := mergeBySecID(securities, marketdata)

	f.log.Debugw("fetched securities", "category", category, "count", len(records))

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// IndexAnalytics fetches the component tickers and weights of a stock index.
func (f *Fetchers) IndexAnalytics(ctx context.Context, indexID string) ([]Record, error) {
	blocks, err := f.client.Fetch(ctx,
		"/statistics/engines/stock/markets/index/analytics/{index}/tickers",
		Params{"index": indexID})
	if err != nil {
		return nil, err
	}
	records := NormalizeBlock(blocks, "tickers")
	f.log.Debugw("fetched index analytics", "index", indexID, "count", len(records))
	return records, nil
}

// SectorPerformance fetches the sector index analytics listing. Rows that
// carry neither a display name nor a current value are dropped.
func (f *Fetchers) SectorPerformance(ctx context.Context) ([]Record, error) {
	blocks, err := f.client.Fetch(ctx,
		"/statistics/engines/stock/markets/index/analytics", Params{})
	if err != nil {
		return nil, err
	}

	records := NormalizeChangePercent(NormalizeBlock(blocks, "analytics"))
	filtered := records[:0]
	for _, rec := range records {
		name := rec.String("shortname")
		if name == "" {
			name = rec.String("indexid")
		}
		_, hasValue := rec.Float("currentvalue")
		if name == "" || !hasValue {
			continue
		}
		filtered = append(filtered, rec)
	}

	f.log.Debugw("fetched sector performance", "count", len(filtered))
	return filtered, nil
}

// FundsFlow fetches aggregated capital flows split by investor category.
// date is YYYY-MM-DD; empty means the exchange's latest available date.
func (f *Fetchers) FundsFlow(ctx context.Context, date string) ([]Record, error) {
	params := Params{"engine": "stock"}
	if date != "" {
		params["date"] = date
	}

	blocks, err := f.client.Fetch(ctx,
		"/statistics/engines/{engine}/capitalflows/securities", params)
	if err != nil {
		return nil, err
	}

	records := NormalizeBlock(blocks, "capitalflows")
	f.log.Debugw("fetched funds flow", "date", date, "count", len(records))
	return records, nil
}

// TrendingByVolume returns the shares listing ranked by traded volume
// descending, sliced to limit.
func (f *Fetchers) TrendingByVolume(ctx context.Context, limit int) ([]Record, error) {
	records, err := f.SecuritiesByCategory(ctx, CategoryShares, 0)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		vi, _ := records[i].Float("voltoday")
		vj, _ := records[j].Float("voltoday")
		return vi > vj
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// mergeBySecID overlays market data fields onto the security listing rows,
// matching rows by the secid column. Market data wins on overlapping keys.
func mergeBySecID(securities, marketdata []Record) []Record {
	if len(marketdata) == 0 {
		return securities
	}

	bySecID := make(map[string]Record, len(marketdata))
	for _, rec := range marketdata {
		if secid := rec.String("secid"); secid != "" {
			bySecID[secid] = rec
		}
	}

	for _, rec := range securities {
		md, ok := bySecID[rec.String("secid")]
		if !ok {
			continue
		}
		for key, value := range md {
			if value != nil {
				rec[key] = value
			}
		}
	}
	return securities
}
