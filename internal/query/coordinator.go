package query

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"orderflow-engine/internal/behavior"
	"orderflow-engine/internal/levels"
	"orderflow-engine/internal/metrics"
	"orderflow-engine/internal/patterns"
	"orderflow-engine/internal/quotes"
	"orderflow-engine/internal/snapshot"
)

const sweepLookbackMS = 300_000

// Request is one analyze_order_flow call.
type Request struct {
	Ticker          string
	History         string
	IncludePatterns bool
}

// Coordinator is the Query Coordinator (C8): it validates a Request,
// reads the cached derived data C6 maintains, and hands it to the
// Snapshot Formatter (C7) for assembly. Every failure, including a
// cancelled or expired caller context (reported as Timeout), is
// converted to an error document; no Go error is returned.
type Coordinator struct {
	store  quotes.Store
	logger zerolog.Logger
}

// New constructs a Query Coordinator over store.
func New(store quotes.Store, logger zerolog.Logger) *Coordinator {
	return &Coordinator{store: store, logger: logger.With().Str("component", "query").Logger()}
}

// Analyze implements analyze_order_flow. It always returns a non-nil
// Document; errors are encoded in the document per spec.md §7.
func (c *Coordinator) Analyze(ctx context.Context, req Request) *snapshot.Document {
	now := time.Now().UTC()

	ticker, err := quotes.NormalizeTicker(req.Ticker)
	if err != nil {
		return snapshot.ErrorDocument(req.Ticker, snapshot.InvalidTicker, now)
	}

	historySeconds, err := ParseHistory(req.History)
	if err != nil {
		return snapshot.ErrorDocument(ticker, snapshot.InvalidHistory, now)
	}

	if err := ctx.Err(); err != nil {
		return snapshot.ErrorDocument(ticker, snapshot.Timeout, now)
	}

	latest, err := c.store.Latest(ctx, ticker)
	if err != nil {
		if errors.Is(err, quotes.ErrNotFound) {
			return snapshot.ErrorDocument(ticker, snapshot.NoData, now)
		}
		return c.classifyStoreError(ctx, ticker, now, err)
	}

	input, err := c.gather(ctx, ticker, latest, now, historySeconds, req.IncludePatterns)
	if err != nil {
		return c.classifyStoreError(ctx, ticker, now, err)
	}

	return snapshot.Build(*input)
}

func (c *Coordinator) classifyStoreError(ctx context.Context, ticker string, now time.Time, err error) *snapshot.Document {
	if ctx.Err() != nil {
		return snapshot.ErrorDocument(ticker, snapshot.Timeout, now)
	}
	if errors.Is(err, quotes.ErrStoreUnavailable) {
		return snapshot.ErrorDocument(ticker, snapshot.StoreUnavailable, now)
	}
	c.logger.Error().Err(err).Str("ticker", ticker).Msg("unexpected error deriving snapshot")
	return snapshot.ErrorDocument(ticker, snapshot.InternalError, now)
}

func (c *Coordinator) gather(ctx context.Context, ticker string, latest quotes.Quote, now time.Time, historySeconds int, includePatterns bool) (*snapshot.BuildInput, error) {
	nowMS := now.UnixMilli()
	fromMS := nowMS - int64(historySeconds)*1000

	window, err := c.store.Range(ctx, ticker, fromMS, nowMS)
	if err != nil {
		return nil, err
	}

	input := &snapshot.BuildInput{
		Ticker:          ticker,
		Now:             now,
		HistorySeconds:  historySeconds,
		LatestQuote:     latest,
		QuoteCount:      len(window),
		IncludePatterns: includePatterns,
	}

	input.Metrics10s, err = c.readMetrics(ctx, ticker, quotes.SlotMetrics10s)
	if err != nil {
		return nil, err
	}

	if historySeconds >= 60 {
		input.Metrics60s, err = c.readMetrics(ctx, ticker, quotes.SlotMetrics60s)
		if err != nil {
			return nil, err
		}
		input.Behaviors, err = c.readBehaviors(ctx, ticker)
		if err != nil {
			return nil, err
		}
	}

	if historySeconds >= 300 {
		input.Metrics300s, err = c.readMetrics(ctx, ticker, quotes.SlotMetrics5min)
		if err != nil {
			return nil, err
		}
	}

	input.BidLevels, err = c.readLevels(ctx, ticker, quotes.SlotLevelsBid)
	if err != nil {
		return nil, err
	}
	input.AskLevels, err = c.readLevels(ctx, ticker, quotes.SlotLevelsAsk)
	if err != nil {
		return nil, err
	}

	allSweeps, err := c.readPatterns(ctx, ticker, nowMS-sweepLookbackMS, nowMS)
	if err != nil {
		return nil, err
	}

	if fromMS >= nowMS-sweepLookbackMS {
		input.InWindow = filterSince(allSweeps, fromMS)
	} else {
		input.InWindow, err = c.readPatterns(ctx, ticker, fromMS, nowMS)
		if err != nil {
			return nil, err
		}
	}
	input.Sweeps = filterIcebergs(input.InWindow)

	return input, nil
}

func (c *Coordinator) readMetrics(ctx context.Context, ticker string, slot quotes.Slot) (*metrics.Record, error) {
	blob, err := c.store.GetSlot(ctx, ticker, slot)
	if err != nil {
		if errors.Is(err, quotes.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec metrics.Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Str("slot", string(slot)).Msg("dropping unreadable metrics slot")
		return nil, nil
	}
	return &rec, nil
}

func (c *Coordinator) readBehaviors(ctx context.Context, ticker string) (*behavior.Flags, error) {
	blob, err := c.store.GetSlot(ctx, ticker, quotes.SlotBehaviors)
	if err != nil {
		if errors.Is(err, quotes.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var flags behavior.Flags
	if err := json.Unmarshal(blob, &flags); err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Msg("dropping unreadable behaviors slot")
		return nil, nil
	}
	return &flags, nil
}

func (c *Coordinator) readLevels(ctx context.Context, ticker string, slot quotes.Slot) ([]levels.Level, error) {
	blob, err := c.store.GetSlot(ctx, ticker, slot)
	if err != nil {
		if errors.Is(err, quotes.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var lv []levels.Level
	if err := json.Unmarshal(blob, &lv); err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Str("slot", string(slot)).Msg("dropping unreadable levels slot")
		return nil, nil
	}
	return lv, nil
}

func (c *Coordinator) readPatterns(ctx context.Context, ticker string, fromMS, toMS int64) ([]patterns.Pattern, error) {
	blobs, err := c.store.RangePatterns(ctx, ticker, fromMS, toMS)
	if err != nil {
		return nil, err
	}
	out := make([]patterns.Pattern, 0, len(blobs))
	for _, blob := range blobs {
		var p patterns.Pattern
		if err := json.Unmarshal(blob, &p); err != nil {
			c.logger.Warn().Err(err).Str("ticker", ticker).Msg("dropping unreadable pattern record")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func filterIcebergs(in []patterns.Pattern) []patterns.Pattern {
	var out []patterns.Pattern
	for _, p := range in {
		if p.Kind == patterns.Iceberg {
			out = append(out, p)
		}
	}
	return out
}

func filterSince(in []patterns.Pattern, sinceMS int64) []patterns.Pattern {
	var out []patterns.Pattern
	for _, p := range in {
		if p.TimestampMS >= sinceMS {
			out = append(out, p)
		}
	}
	return out
}
