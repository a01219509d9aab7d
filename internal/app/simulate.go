package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/query"
	"orderflow-engine/internal/quotes"
)

// Simulate seeds one of a handful of canned order-flow scenarios into
// the store, runs a single processor tick, and prints the resulting
// analyze_order_flow document — a quick way to see what a given
// pattern renders as without wiring up a real publisher.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	ticker, err := quotes.NormalizeTicker(opts.Ticker)
	if err != nil {
		return err
	}

	seed, ok := simulationScenarios[opts.Scenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q (want one of: rising_bid, absorption, sweep)", opts.Scenario)
	}

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	now := time.Now().UTC()
	bucket := now
	for _, batch := range seed(ticker, now.UnixMilli()) {
		for _, q := range batch {
			if err := eng.Ingest(ctx, q); err != nil {
				return fmt.Errorf("seed quote: %w", err)
			}
			if qt := time.UnixMilli(q.TimestampMS).UTC(); qt.After(bucket) {
				bucket = qt
			}
		}
		if err := eng.Tick(ctx, bucket); err != nil {
			return fmt.Errorf("run processor tick: %w", err)
		}
	}

	doc := eng.Analyze(ctx, query.Request{Ticker: ticker, History: "300s", IncludePatterns: true})
	body, err := doc.Render()
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	_, err = os.Stdout.Write(body)
	return err
}

// a scenario seeds one or more ingest batches, each followed by a
// processor tick, in order — most scenarios need only one batch, but
// sweep detection compares levels across two ticks, so it needs two.
var simulationScenarios = map[string]func(ticker string, nowMS int64) [][]quotes.Quote{
	"rising_bid": seedRisingBidScenario,
	"absorption": seedAbsorptionScenario,
	"sweep":      seedSweepScenario,
}

// seedRisingBidScenario mirrors spec.md §8 scenario 1: bid rises steadily
// for the first 10s then holds, ask stays flat, bid size grows.
func seedRisingBidScenario(ticker string, nowMS int64) [][]quotes.Quote {
	const n = 300
	out := make([]quotes.Quote, 0, n)
	startMS := nowMS - (n-1)*1000
	bid := decimal.NewFromFloat(450.10)
	step := decimal.NewFromFloat(0.01)
	for i := 0; i < n; i++ {
		if i > 0 && i <= 10 {
			bid = bid.Add(step)
		}
		out = append(out, quotes.Quote{
			Ticker:      ticker,
			TimestampMS: startMS + int64(i)*1000,
			BidPrice:    bid,
			AskPrice:    decimal.NewFromFloat(450.30),
			BidSize:     5000 + int64(i)*50,
			AskSize:     4000,
		})
	}
	return [][]quotes.Quote{out}
}

// seedAbsorptionScenario holds the bid price within a tick for well over
// the minimum absorption run length with mean size above the strong
// threshold.
func seedAbsorptionScenario(ticker string, nowMS int64) [][]quotes.Quote {
	const n = 300
	out := make([]quotes.Quote, 0, n)
	startMS := nowMS - (n-1)*1000
	for i := 0; i < n; i++ {
		out = append(out, quotes.Quote{
			Ticker:      ticker,
			TimestampMS: startMS + int64(i)*1000,
			BidPrice:    decimal.NewFromFloat(100.00),
			AskPrice:    decimal.NewFromFloat(100.05),
			BidSize:     22000,
			AskSize:     3000,
		})
	}
	return [][]quotes.Quote{out}
}

// seedSweepScenario builds a resting bid level, ticks once to record it,
// then thins that level out sharply and ticks again so levels.DetectSweeps
// sees it disappear between the two most recent level snapshots.
func seedSweepScenario(ticker string, nowMS int64) [][]quotes.Quote {
	const n = 300
	first := make([]quotes.Quote, 0, n)
	startMS := nowMS - (n-1)*1000
	for i := 0; i < n; i++ {
		first = append(first, quotes.Quote{
			Ticker:      ticker,
			TimestampMS: startMS + int64(i)*1000,
			BidPrice:    decimal.NewFromFloat(200.00),
			AskPrice:    decimal.NewFromFloat(200.10),
			BidSize:     6000,
			AskSize:     3000,
		})
	}

	second := make([]quotes.Quote, 0, 5)
	for i := 0; i < 5; i++ {
		second = append(second, quotes.Quote{
			Ticker:      ticker,
			TimestampMS: nowMS + int64(i+1)*1000,
			BidPrice:    decimal.NewFromFloat(200.05),
			AskPrice:    decimal.NewFromFloat(200.10),
			BidSize:     500,
			AskSize:     3000,
		})
	}

	return [][]quotes.Quote{first, second}
}
