// Package engine wires the Quote Store (C1), the Processor Loop (C6),
// and the Query Coordinator (C8) into one long-lived service, and owns
// the configuration-to-component translation the rest of the
// application depends on.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"orderflow-engine/internal/config"
	"orderflow-engine/internal/metrics"
	"orderflow-engine/internal/processor"
	"orderflow-engine/internal/query"
	"orderflow-engine/internal/quotes"
	"orderflow-engine/internal/scheduler"
	"orderflow-engine/internal/snapshot"
)

// Engine is the assembled order-flow service: a store, a background
// derivation loop, and a read path over the two.
type Engine struct {
	store  quotes.Store
	loop   *processor.Loop
	coord  *query.Coordinator
	sched  *scheduler.Scheduler
	logger zerolog.Logger
}

// New constructs an Engine from cfg. It dials the configured store
// backend and sets the package-level large-size threshold for the
// lifetime of the process (metrics.LargeSizeThreshold is fixed at
// startup, spec.md §6).
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Engine, error) {
	store, err := newStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("engine: build store: %w", err)
	}

	metrics.LargeSizeThreshold = cfg.Engine.LargeSizeThreshold

	tickSizes := make(map[string]decimal.Decimal, len(cfg.Engine.TickSizes))
	for ticker, size := range cfg.Engine.TickSizes {
		tickSizes[ticker] = decimal.NewFromFloat(size)
	}

	procCfg := processor.Config{
		Interval:        cfg.Scheduler.Interval,
		QuoteTTL:        cfg.Engine.QuoteTTL,
		PatternTTL:      cfg.Engine.PatternTTL,
		IdleEvict:       cfg.Engine.TrackedIdleEvict,
		DefaultTickSize: decimal.NewFromFloat(cfg.Engine.DefaultTickSize),
		TickSizes:       tickSizes,
		Workers:         cfg.Engine.Workers,
	}

	loop := processor.New(store, procCfg, logger)
	coord := query.New(store, logger)
	sched := scheduler.New(scheduler.Options{
		Interval:     cfg.Scheduler.Interval,
		AlignToStart: cfg.Scheduler.AlignToBucket,
		StartupDelay: cfg.Scheduler.StartupDelay,
	}, logger)

	return &Engine{
		store:  store,
		loop:   loop,
		coord:  coord,
		sched:  sched,
		logger: logger.With().Str("component", "engine").Logger(),
	}, nil
}

func newStore(ctx context.Context, cfg config.StoreConfig) (quotes.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return quotes.NewMemoryStore(), nil
	case "redis":
		return quotes.NewRedisStore(ctx, quotes.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	default:
		return nil, fmt.Errorf("engine: unknown store backend %q", cfg.Backend)
	}
}

// Run blocks, driving the processor loop on the scheduler's cadence
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	return e.sched.Run(ctx, e.loop.Tick)
}

// Tick drives exactly one processor-loop pass at bucket, bypassing the
// scheduler. Used by offline tooling (simulate) that needs a
// synchronous derivation rather than the long-running loop.
func (e *Engine) Tick(ctx context.Context, bucket time.Time) error {
	return e.loop.Tick(ctx, bucket)
}

// Ingest validates a single quote observation and appends it to the
// Quote Store (C1).
func (e *Engine) Ingest(ctx context.Context, q quotes.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}
	return e.store.Append(ctx, q)
}

// Analyze implements analyze_order_flow end to end.
func (e *Engine) Analyze(ctx context.Context, req query.Request) *snapshot.Document {
	return e.coord.Analyze(ctx, req)
}

// Store exposes the underlying Quote Store, used by the export CLI path
// that needs direct range reads.
func (e *Engine) Store() quotes.Store {
	return e.store
}

// Stats reports processor-loop counters for ticker, for diagnostics.
func (e *Engine) Stats(ticker string) processor.Stats {
	return e.loop.Stats(ticker)
}

// Close releases backing resources.
func (e *Engine) Close() error {
	return e.store.Close()
}
