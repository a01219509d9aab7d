package patterns

import (
	"testing"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/metrics"
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

func tickSize(t *testing.T) decimal.Decimal { return dec(t, "0.01") }

func TestDetectRequiresSixtySecondsOfData(t *testing.T) {
	w := quotes.Window{
		{TimestampMS: 0, BidPrice: dec(t, "1"), AskPrice: dec(t, "1.01")},
		{TimestampMS: 1000, BidPrice: dec(t, "1"), AskPrice: dec(t, "1.01")},
	}
	if got := Detect(w, metrics.Record{}, tickSize(t), 1000); got != nil {
		t.Fatalf("expected no patterns for <60s window, got %v", got)
	}
}

func TestDetectAbsorptionScenario(t *testing.T) {
	var w quotes.Window
	bid := dec(t, "449.50")
	ask := dec(t, "449.55")
	sizes := []int64{18000, 22000, 19000, 21000, 20000, 18500, 21500, 19500, 20500, 22000}
	for i := 0; i < 30; i++ {
		w = append(w, quotes.Quote{
			TimestampMS: int64(i) * 1000,
			BidPrice:    bid,
			AskPrice:    ask,
			BidSize:     sizes[i%len(sizes)],
			AskSize:     3000,
		})
		ask = ask.Sub(dec(t, "0.0033"))
	}
	// Pad so DurationMS reaches 60s; the lower bid keeps the pad out of
	// the absorption run.
	w = append(quotes.Window{{TimestampMS: -31_000, BidPrice: dec(t, "449.40"), AskPrice: dec(t, "449.55"), BidSize: 3000, AskSize: 3000}}, w...)

	patterns := Detect(w, metrics.Record{}, tickSize(t), 30_000)
	found := false
	for _, p := range patterns {
		if p.Kind == Absorption && p.Side == SideBid {
			found = true
			if p.Strength != Strong {
				t.Fatalf("expected strong absorption, got %s", p.Strength)
			}
			if !p.PriceLevel.Round(2).Equal(dec(t, "449.50")) {
				t.Fatalf("expected price_level 449.50, got %s", p.PriceLevel)
			}
		}
	}
	if !found {
		t.Fatal("expected a bid absorption pattern")
	}
}

func TestDetectIcebergSweepScenario(t *testing.T) {
	w := quotes.Window{
		{TimestampMS: 0, BidPrice: dec(t, "450.00"), AskPrice: dec(t, "450.02"), BidSize: 20000, AskSize: 3000},
		{TimestampMS: 1000, BidPrice: dec(t, "450.00"), AskPrice: dec(t, "450.02"), BidSize: 2000, AskSize: 3000},
	}
	// Pad so DurationMS crosses 60s without altering the sweep pair itself.
	padded := append(quotes.Window{{TimestampMS: -60_000, BidPrice: dec(t, "450.00"), AskPrice: dec(t, "450.02"), BidSize: 20000, AskSize: 3000}}, w...)

	out := detectIceberg(padded, tickSize(t), 1000)
	found := false
	for _, p := range out {
		if p.Kind == Iceberg && p.Side == SideBid {
			found = true
			if !p.PriceLevel.Round(2).Equal(dec(t, "450.00")) {
				t.Fatalf("expected price_level 450.00, got %s", p.PriceLevel)
			}
		}
	}
	if !found {
		t.Fatal("expected a bid iceberg/sweep pattern")
	}
}

func TestDetectMomentumShiftBullishStrong(t *testing.T) {
	m := metrics.Record{BidLifts: 10, BidDrops: 0, AskLifts: 0, AskDrops: 0}
	p, ok := detectMomentumShift(m, 1000)
	if !ok {
		t.Fatal("expected a momentum_shift pattern")
	}
	if p.Strength != Strong {
		t.Fatalf("expected strong strength, got %s", p.Strength)
	}
}

func TestSuppressCollapsesWithinThirtySeconds(t *testing.T) {
	a := Pattern{Kind: Absorption, Side: SideBid, PriceLevel: dec(t, "449.501"), HasPriceLevel: true, TimestampMS: 1000}
	b := Pattern{Kind: Absorption, Side: SideBid, PriceLevel: dec(t, "449.504"), HasPriceLevel: true, TimestampMS: 20_000}
	if !Suppress([]Pattern{a}, b, 30_000) {
		t.Fatal("expected suppression for identical (kind, side, price-rounded-to-cent) within 30s")
	}

	c := Pattern{Kind: Absorption, Side: SideBid, PriceLevel: dec(t, "449.50"), HasPriceLevel: true, TimestampMS: 40_000}
	if Suppress([]Pattern{a}, c, 30_000) {
		t.Fatal("expected no suppression once outside the 30s window")
	}
}
