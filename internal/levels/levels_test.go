package levels

import (
	"testing"

	"github.com/shopspring/decimal"

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

func TestComputeQualificationInvariants(t *testing.T) {
	tick := dec(t, "0.01")
	var w quotes.Window
	// 450.00 qualifies: 3 appearances, total size 30000.
	for i := 0; i < 3; i++ {
		w = append(w, quotes.Quote{TimestampMS: int64(i) * 1000, BidPrice: dec(t, "450.00"), AskPrice: dec(t, "450.05"), BidSize: 10000, AskSize: 1000})
	}
	// 451.00 fails: only 2 appearances.
	for i := 0; i < 2; i++ {
		w = append(w, quotes.Quote{TimestampMS: int64(i) * 1000, BidPrice: dec(t, "451.00"), AskPrice: dec(t, "451.05"), BidSize: 20000, AskSize: 1000})
	}
	// 452.00 fails: 3 appearances but total size under 25000.
	for i := 0; i < 3; i++ {
		w = append(w, quotes.Quote{TimestampMS: int64(i) * 1000, BidPrice: dec(t, "452.00"), AskPrice: dec(t, "452.05"), BidSize: 1000, AskSize: 1000})
	}

	got := Compute(w, patterns.SideBid, tick)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 qualifying level, got %d: %+v", len(got), got)
	}
	if !got[0].Price.Equal(dec(t, "450.00")) {
		t.Fatalf("expected price 450.00, got %s", got[0].Price)
	}
}

func TestComputeTopTenCap(t *testing.T) {
	tick := dec(t, "0.01")
	var w quotes.Window
	base := dec(t, "400.00")
	for p := 0; p < 15; p++ {
		price := base.Add(dec(t, "1.00").Mul(decimal.NewFromInt(int64(p))))
		for i := 0; i < 3; i++ {
			w = append(w, quotes.Quote{TimestampMS: int64(i) * 1000, BidPrice: price, AskPrice: price.Add(dec(t, "0.01")), BidSize: 10000, AskSize: 1000})
		}
	}
	got := Compute(w, patterns.SideBid, tick)
	if len(got) != topN {
		t.Fatalf("expected top-%d cap, got %d", topN, len(got))
	}
}

func TestSignificanceMonotonicity(t *testing.T) {
	// If A has strictly greater size and appearances than B at the same
	// price, A's significance must exceed B's (spec.md §8).
	a := significance(50_000, 10)
	b := significance(30_000, 5)
	if !a.GreaterThan(b) {
		t.Fatalf("expected significance(50000,10) > significance(30000,5), got %s vs %s", a, b)
	}
}

func TestDetectSweepsOnDisappearance(t *testing.T) {
	prev := []Level{
		{Price: dec(t, "450.00"), TotalSize: 20_000},
		{Price: dec(t, "451.00"), TotalSize: 30_000},
	}
	curr := []Level{
		{Price: dec(t, "451.00"), TotalSize: 29_000},
	}
	out := DetectSweeps(prev, curr, patterns.SideBid, 1000)
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 sweep for the disappeared level, got %d", len(out))
	}
	if !out[0].PriceLevel.Equal(dec(t, "450.00")) {
		t.Fatalf("expected sweep at 450.00, got %s", out[0].PriceLevel)
	}
}

func TestDetectSweepsOnLargeDrop(t *testing.T) {
	prev := []Level{{Price: dec(t, "450.00"), TotalSize: 100_000}}
	curr := []Level{{Price: dec(t, "450.00"), TotalSize: 10_000}}
	out := DetectSweeps(prev, curr, patterns.SideBid, 1000)
	if len(out) != 1 {
		t.Fatalf("expected a sweep for a >75%% size drop, got %d", len(out))
	}
}

func TestDetectSweepsNoFalsePositive(t *testing.T) {
	prev := []Level{{Price: dec(t, "450.00"), TotalSize: 100_000}}
	curr := []Level{{Price: dec(t, "450.00"), TotalSize: 90_000}}
	out := DetectSweeps(prev, curr, patterns.SideBid, 1000)
	if len(out) != 0 {
		t.Fatalf("expected no sweep for a <75%% drop, got %d", len(out))
	}
}
