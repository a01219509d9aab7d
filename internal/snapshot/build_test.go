package snapshot

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/levels"
	"orderflow-engine/internal/metrics"
	"orderflow-engine/internal/patterns"
	"orderflow-engine/internal/quotes"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestBuildHappyPathMinimalInput(t *testing.T) {
	now := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	in := BuildInput{
		Ticker:         "SPY",
		Now:            now,
		HistorySeconds: 300,
		LatestQuote: quotes.Quote{
			Ticker:      "SPY",
			TimestampMS: now.UnixMilli(),
			BidPrice:    dec(t, "450.10"),
			AskPrice:    dec(t, "450.30"),
			BidSize:     5000,
			AskSize:     2000,
		},
		QuoteCount: 60,
	}

	doc := Build(in)

	if doc.Ticker != "SPY" {
		t.Fatalf("ticker = %q", doc.Ticker)
	}
	if doc.CurrentPrice != "450.2000" {
		t.Fatalf("current_price = %q", doc.CurrentPrice)
	}
	if doc.HistoryWindow != "300s" {
		t.Fatalf("history_window = %q", doc.HistoryWindow)
	}
	if doc.DataSummary == nil || doc.DataSummary.QuoteCount != 60 || doc.DataSummary.WindowSeconds != 300 {
		t.Fatalf("data_summary = %+v", doc.DataSummary)
	}
	if doc.CurrentQuote == nil || doc.CurrentQuote.Bid.Price != "450.1000" || doc.CurrentQuote.Ask.Price != "450.3000" {
		t.Fatalf("current_quote = %+v", doc.CurrentQuote)
	}
	if doc.CurrentQuote.BidAskRatio != "2.50" {
		t.Fatalf("bid_ask_ratio = %q", doc.CurrentQuote.BidAskRatio)
	}
	// no momentum/metrics supplied, so those subtrees must be absent.
	if doc.Momentum != nil {
		t.Fatalf("expected nil momentum, got %+v", doc.Momentum)
	}
	if doc.SizeMetrics != nil {
		t.Fatalf("expected nil size_metrics without a sufficient 60s record")
	}
	if doc.Behaviors != nil {
		t.Fatalf("expected nil behaviors without flags supplied")
	}
}

func TestBuildOmitsSizeMetricsWhenInsufficient(t *testing.T) {
	now := time.Now().UTC()
	in := BuildInput{
		Ticker:         "SPY",
		Now:            now,
		HistorySeconds: 60,
		LatestQuote:    quotes.Quote{BidPrice: dec(t, "1"), AskPrice: dec(t, "1.01"), BidSize: 1, AskSize: 1},
		Metrics60s:     &metrics.Record{InsufficientData: true},
	}

	doc := Build(in)
	if doc.SizeMetrics != nil {
		t.Fatalf("expected size_metrics omitted when 60s record is insufficient")
	}
}

func TestBuildIncludesSizeMetricsAndMomentum(t *testing.T) {
	now := time.Now().UTC()
	m60 := &metrics.Record{
		BidPriceChange: dec(t, "0.05"),
		AskPriceChange: dec(t, "0.02"),
		BidLifts:       3,
		AskDrops:       1,
		LargeBidCount:  2,
		AvgBidSize:     dec(t, "5500"),
		AvgAskSize:     dec(t, "3000"),
	}
	in := BuildInput{
		Ticker:         "SPY",
		Now:            now,
		HistorySeconds: 60,
		LatestQuote:    quotes.Quote{BidPrice: dec(t, "1"), AskPrice: dec(t, "1.01"), BidSize: 1, AskSize: 1},
		Metrics60s:     m60,
	}

	doc := Build(in)
	if doc.Momentum == nil || doc.Momentum.Last60s == nil {
		t.Fatalf("expected last_60s momentum populated")
	}
	if doc.Momentum.Last60s.BidLifts != 3 {
		t.Fatalf("bid_lifts = %d", doc.Momentum.Last60s.BidLifts)
	}
	if doc.SizeMetrics == nil || doc.SizeMetrics.LargeOrders.BidsOver10k != 2 {
		t.Fatalf("size_metrics = %+v", doc.SizeMetrics)
	}
}

func TestBuildPriceLevelsAndSweeps(t *testing.T) {
	now := time.Now().UTC()
	in := BuildInput{
		Ticker:         "SPY",
		Now:            now,
		HistorySeconds: 300,
		LatestQuote:    quotes.Quote{BidPrice: dec(t, "100"), AskPrice: dec(t, "100.05"), BidSize: 1, AskSize: 1},
		BidLevels: []levels.Level{
			{Price: dec(t, "99.95"), TotalSize: 30000, Appearances: 5},
		},
		Sweeps: []patterns.Pattern{
			{
				Kind:          patterns.Iceberg,
				Side:          patterns.SideBid,
				TimestampMS:   now.Add(-10 * time.Second).UnixMilli(),
				PriceLevel:    dec(t, "99.95"),
				HasPriceLevel: true,
				Volume:        dec(t, "12000"),
				HasVolume:     true,
			},
		},
	}

	doc := Build(in)
	if doc.PriceLevels == nil || len(doc.PriceLevels.BidLevels) != 1 {
		t.Fatalf("price_levels = %+v", doc.PriceLevels)
	}
	if len(doc.PriceLevels.Sweeps) != 1 {
		t.Fatalf("expected one sweep, got %d", len(doc.PriceLevels.Sweeps))
	}
	sweep := doc.PriceLevels.Sweeps[0]
	if sweep.Direction != "bid" || sweep.Size != 12000 {
		t.Fatalf("sweep = %+v", sweep)
	}
	if sweep.SecondsAgo != 10 {
		t.Fatalf("seconds_ago = %d", sweep.SecondsAgo)
	}
}

func TestBuildDetectedPatternsOnlyWhenRequestedAndNonEmpty(t *testing.T) {
	now := time.Now().UTC()
	p := patterns.Pattern{
		Kind:        patterns.MomentumShift,
		TimestampMS: now.UnixMilli(),
		Direction:   "bullish",
		Description: "bid momentum accelerating",
	}

	without := Build(BuildInput{
		Ticker: "SPY", Now: now, HistorySeconds: 300,
		LatestQuote: quotes.Quote{BidPrice: dec(t, "1"), AskPrice: dec(t, "1.01"), BidSize: 1, AskSize: 1},
		InWindow:    []patterns.Pattern{p},
	})
	if without.DetectedPatterns != nil {
		t.Fatalf("expected detected_patterns omitted when IncludePatterns is false")
	}
	if without.DataSummary.PatternCount != 1 {
		t.Fatalf("pattern_count should still reflect InWindow regardless of IncludePatterns")
	}

	with := Build(BuildInput{
		Ticker: "SPY", Now: now, HistorySeconds: 300,
		LatestQuote:     quotes.Quote{BidPrice: dec(t, "1"), AskPrice: dec(t, "1.01"), BidSize: 1, AskSize: 1},
		InWindow:        []patterns.Pattern{p},
		IncludePatterns: true,
	})
	if with.DetectedPatterns == nil || with.DetectedPatterns.Count != 1 {
		t.Fatalf("detected_patterns = %+v", with.DetectedPatterns)
	}
	if with.DetectedPatterns.Patterns[0].Direction != "bullish" {
		t.Fatalf("direction = %q", with.DetectedPatterns.Patterns[0].Direction)
	}
}

func TestErrorDocumentRendersCatalogEntry(t *testing.T) {
	now := time.Now().UTC()
	doc := ErrorDocument("SPY", NoData, now)

	if doc.Error != "true" {
		t.Fatalf("expected error=true, got %q", doc.Error)
	}
	if doc.ErrorCode != string(NoData) {
		t.Fatalf("error_code = %q", doc.ErrorCode)
	}
	if len(doc.PossibleCauses.Causes) != 3 || len(doc.Suggestions.Suggestions) != 3 {
		t.Fatalf("expected exactly 3 causes and 3 suggestions")
	}
	if doc.DataSummary != nil || doc.CurrentQuote != nil {
		t.Fatalf("error document must not carry happy-path subtrees")
	}
}

func TestErrorDocumentUnknownKindFallsBackToInternalError(t *testing.T) {
	doc := ErrorDocument("SPY", ErrorKind("bogus"), time.Now().UTC())
	if doc.ErrorCode != string(InternalError) {
		t.Fatalf("expected fallback to InternalError, got %q", doc.ErrorCode)
	}
}

func TestRenderProducesWellFormedXMLWithDeclaration(t *testing.T) {
	doc := Build(BuildInput{
		Ticker:         "SPY",
		Now:            time.Now().UTC(),
		HistorySeconds: 300,
		LatestQuote:    quotes.Quote{BidPrice: dec(t, "1"), AskPrice: dec(t, "1.01"), BidSize: 1, AskSize: 1},
	})

	body, err := doc.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(string(body), xml.Header) {
		t.Fatalf("expected output to begin with the XML declaration")
	}

	var roundTrip Document
	if err := xml.Unmarshal(body, &roundTrip); err != nil {
		t.Fatalf("render output did not parse back as XML: %v", err)
	}
	if roundTrip.Ticker != "SPY" {
		t.Fatalf("round-tripped ticker = %q", roundTrip.Ticker)
	}
}
