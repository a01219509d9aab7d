// Package processor implements the Processor Loop (C6): on each scheduler
// tick it refreshes the derived-data slots for every actively tracked
// ticker, bounded to a fixed worker pool, isolating one ticker's failure
// from the rest of the tick.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"orderflow-engine/internal/behavior"
	"orderflow-engine/internal/levels"
	"orderflow-engine/internal/metrics"
	"orderflow-engine/internal/patterns"
	"orderflow-engine/internal/quotes"
)

// Fixed slot TTLs: ten times each window's nominal duration (spec.md §3).
const (
	ttl10s  = 100 * time.Second
	ttl60s  = 600 * time.Second
	ttl300s = 3000 * time.Second
)

const patternSuppressWindowMS = 30_000

// Config controls the cadence and bounds of one processor Loop.
type Config struct {
	// Interval is the scheduler tick period; it also gates how often a
	// single ticker is re-derived.
	Interval time.Duration

	// QuoteTTL bounds how long a raw quote stays in the buffer before
	// being pruned (spec.md §4.6 step 6, default 3600s).
	QuoteTTL time.Duration

	// PatternTTL bounds how long detected patterns remain in the log
	// before being pruned (spec.md §4.6 step 6, default 3600s).
	PatternTTL time.Duration

	// IdleEvict drops a ticker from active tracking once its latest quote
	// is older than this (spec.md §5 "idle eviction").
	IdleEvict time.Duration

	// DefaultTickSize is used for tickers absent from TickSizes.
	DefaultTickSize decimal.Decimal

	// TickSizes overrides DefaultTickSize per normalized ticker.
	TickSizes map[string]decimal.Decimal

	// Workers bounds the number of tickers derived concurrently in one
	// tick (spec.md §5 "bounded worker pool, default = number of CPUs").
	Workers int
}

func (c Config) tickSizeFor(ticker string) decimal.Decimal {
	if c.TickSizes != nil {
		if t, ok := c.TickSizes[ticker]; ok {
			return t
		}
	}
	return c.DefaultTickSize
}

// Stats are per-ticker operational counters, exposed for diagnostics only
// (not part of the analyze_order_flow document itself).
type Stats struct {
	ProcessCount      int64
	ErrorCount        int64
	PatternsDetected  int64
	LastProcessTimeMS int64
}

// Loop is the Processor Loop. One Loop owns the prior-tick level
// snapshots needed for sweep detection; it is safe for its Tick method to
// be invoked repeatedly by a scheduler.Scheduler.
type Loop struct {
	store  quotes.Store
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	prevLevels map[string]sidePair
	stats      map[string]*Stats
}

type sidePair struct {
	bid []levels.Level
	ask []levels.Level
}

// New constructs a Processor Loop over store using cfg.
func New(store quotes.Store, cfg Config, logger zerolog.Logger) *Loop {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Loop{
		store:      store,
		cfg:        cfg,
		logger:     logger.With().Str("component", "processor").Logger(),
		prevLevels: make(map[string]sidePair),
		stats:      make(map[string]*Stats),
	}
}

// Tick implements scheduler.TickFunc: it lists every tracked ticker and
// refreshes its derived slots, bounded to cfg.Workers concurrent
// goroutines. A single ticker's error is logged and otherwise has no
// effect on the rest of the tick (spec.md §5 "one ticker's failure never
// aborts the tick for others").
func (l *Loop) Tick(ctx context.Context, bucket time.Time) error {
	tickers, err := l.store.Tickers(ctx)
	if err != nil {
		return fmt.Errorf("list tickers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)

	var processed, skipped, errored int64
	var mu sync.Mutex
	start := time.Now()

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			began := time.Now()
			ok, err := l.processTicker(gctx, ticker, bucket)
			elapsed := time.Since(began)
			mu.Lock()
			defer mu.Unlock()
			if l.cfg.Interval > 0 && elapsed > l.cfg.Interval {
				l.logger.Warn().Str("ticker", ticker).Dur("elapsed", elapsed).Msg("ticker derivation exceeded soft deadline")
			}
			switch {
			case err != nil:
				errored++
				l.logger.Warn().Err(err).Str("ticker", ticker).Msg("ticker derivation failed")
			case !ok:
				skipped++
			default:
				processed++
			}
			return nil
		})
	}
	_ = g.Wait()

	l.logger.Info().
		Time("bucket", bucket).
		Int64("processed", processed).
		Int64("skipped", skipped).
		Int64("errored", errored).
		Dur("duration", time.Since(start)).
		Msg("tick complete")

	return l.evictIdle(ctx, bucket)
}

// Stats returns a snapshot of the per-ticker operational counters.
func (l *Loop) Stats(ticker string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.stats[ticker]; ok {
		return *s
	}
	return Stats{}
}

func (l *Loop) bumpStats(ticker string, fn func(*Stats)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stats[ticker]
	if !ok {
		s = &Stats{}
		l.stats[ticker] = s
	}
	fn(s)
}

// processTicker re-derives every slot for one ticker. It returns
// (false, nil) when there isn't enough data yet to derive anything
// (spec.md §4.6 step 2), and a non-nil error on store failure.
func (l *Loop) processTicker(ctx context.Context, ticker string, bucket time.Time) (bool, error) {
	nowMS := bucket.UnixMilli()

	w300, err := l.store.Range(ctx, ticker, nowMS-300_000, nowMS)
	if err != nil {
		l.bumpStats(ticker, func(s *Stats) { s.ErrorCount++ })
		return false, fmt.Errorf("range 300s: %w", err)
	}
	if len(w300) < 2 {
		return false, l.prune(ctx, ticker, nowMS)
	}

	tick := l.cfg.tickSizeFor(ticker)

	w10 := w300.Tail(10_000)
	m10 := metrics.Compute(w10, 10)
	if err := l.putJSON(ctx, ticker, quotes.SlotMetrics10s, m10, ttl10s); err != nil {
		return false, err
	}

	w60 := w300.Tail(60_000)
	if w60.DurationMS() >= 60_000 {
		m60 := metrics.Compute(w60, 60)
		if err := l.putJSON(ctx, ticker, quotes.SlotMetrics60s, m60, ttl60s); err != nil {
			return false, err
		}

		last20 := w60
		if len(last20) > 20 {
			last20 = last20[len(last20)-20:]
		}
		last, _ := w300.Last()
		flags := behavior.Analyze(m60, last20, last.MidPrice())
		if err := l.putJSON(ctx, ticker, quotes.SlotBehaviors, flags, ttl60s); err != nil {
			return false, err
		}

		detected := patterns.Detect(w60, m60, tick, nowMS)
		if err := l.appendPatterns(ctx, ticker, detected, nowMS); err != nil {
			return false, err
		}
	}

	if w300.DurationMS() >= 300_000 {
		m300 := metrics.Compute(w300, 300)
		if err := l.putJSON(ctx, ticker, quotes.SlotMetrics5min, m300, ttl300s); err != nil {
			return false, err
		}

		if err := l.updateLevels(ctx, ticker, w300, tick, nowMS); err != nil {
			return false, err
		}
	}

	if err := l.prune(ctx, ticker, nowMS); err != nil {
		return false, err
	}

	l.bumpStats(ticker, func(s *Stats) {
		s.ProcessCount++
		s.LastProcessTimeMS = nowMS
	})

	return true, nil
}

// prune drops quotes and pattern records past their TTL (spec.md §4.6
// step 6), run once per ticker per tick unless an earlier step of that
// ticker's pass failed.
func (l *Loop) prune(ctx context.Context, ticker string, nowMS int64) error {
	if err := l.store.Prune(ctx, ticker, nowMS-l.cfg.QuoteTTL.Milliseconds()); err != nil {
		return fmt.Errorf("prune quotes: %w", err)
	}
	if err := l.store.PrunePatterns(ctx, ticker, nowMS-l.cfg.PatternTTL.Milliseconds()); err != nil {
		return fmt.Errorf("prune patterns: %w", err)
	}
	return nil
}

func (l *Loop) updateLevels(ctx context.Context, ticker string, w quotes.Window, tick decimal.Decimal, nowMS int64) error {
	bidLevels := levels.Compute(w, patterns.SideBid, tick)
	askLevels := levels.Compute(w, patterns.SideAsk, tick)

	if err := l.putJSON(ctx, ticker, quotes.SlotLevelsBid, bidLevels, ttl300s); err != nil {
		return err
	}
	if err := l.putJSON(ctx, ticker, quotes.SlotLevelsAsk, askLevels, ttl300s); err != nil {
		return err
	}

	l.mu.Lock()
	prev := l.prevLevels[ticker]
	l.prevLevels[ticker] = sidePair{bid: bidLevels, ask: askLevels}
	l.mu.Unlock()

	var sweeps []patterns.Pattern
	sweeps = append(sweeps, levels.DetectSweeps(prev.bid, bidLevels, patterns.SideBid, nowMS)...)
	sweeps = append(sweeps, levels.DetectSweeps(prev.ask, askLevels, patterns.SideAsk, nowMS)...)

	return l.appendPatterns(ctx, ticker, sweeps, nowMS)
}

func (l *Loop) appendPatterns(ctx context.Context, ticker string, detected []patterns.Pattern, nowMS int64) error {
	if len(detected) == 0 {
		return nil
	}

	existing, err := l.recentPatterns(ctx, ticker, nowMS-patternSuppressWindowMS, nowMS)
	if err != nil {
		return fmt.Errorf("range patterns: %w", err)
	}

	for _, p := range detected {
		if patterns.Suppress(existing, p, patternSuppressWindowMS) {
			continue
		}
		blob, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pattern: %w", err)
		}
		if err := l.store.AppendPattern(ctx, ticker, blob, p.TimestampMS, l.cfg.PatternTTL); err != nil {
			return fmt.Errorf("append pattern: %w", err)
		}
		existing = append(existing, p)
		l.bumpStats(ticker, func(s *Stats) { s.PatternsDetected++ })
	}

	return nil
}

func (l *Loop) recentPatterns(ctx context.Context, ticker string, fromMS, toMS int64) ([]patterns.Pattern, error) {
	blobs, err := l.store.RangePatterns(ctx, ticker, fromMS, toMS)
	if err != nil {
		return nil, err
	}
	out := make([]patterns.Pattern, 0, len(blobs))
	for _, blob := range blobs {
		var p patterns.Pattern
		if err := json.Unmarshal(blob, &p); err != nil {
			l.logger.Warn().Err(err).Str("ticker", ticker).Msg("dropping unreadable pattern record")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (l *Loop) putJSON(ctx context.Context, ticker string, slot quotes.Slot, v any, ttl time.Duration) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", slot, err)
	}
	if err := l.store.PutSlot(ctx, ticker, slot, blob, ttl); err != nil {
		return fmt.Errorf("put slot %s: %w", slot, err)
	}
	return nil
}

// evictIdle clears the quote buffer for any ticker whose latest quote has
// aged past cfg.IdleEvict, so a dead feed stops being re-derived every
// tick (spec.md §5 "idle eviction").
func (l *Loop) evictIdle(ctx context.Context, bucket time.Time) error {
	if l.cfg.IdleEvict <= 0 {
		return nil
	}

	tickers, err := l.store.Tickers(ctx)
	if err != nil {
		return fmt.Errorf("list tickers: %w", err)
	}

	cutoff := bucket.Add(-l.cfg.IdleEvict).UnixMilli()
	for _, ticker := range tickers {
		last, err := l.store.Latest(ctx, ticker)
		if err != nil {
			if !errors.Is(err, quotes.ErrNotFound) {
				l.logger.Warn().Err(err).Str("ticker", ticker).Msg("idle-evict lookup failed")
			}
			continue
		}
		if last.TimestampMS >= cutoff {
			continue
		}
		if err := l.store.Prune(ctx, ticker, bucket.UnixMilli()); err != nil {
			l.logger.Warn().Err(err).Str("ticker", ticker).Msg("idle-evict prune failed")
			continue
		}
		l.mu.Lock()
		delete(l.prevLevels, ticker)
		delete(l.stats, ticker)
		l.mu.Unlock()
		l.logger.Debug().Str("ticker", ticker).Msg("evicted idle ticker")
	}
	return nil
}
