package metrics

import (
	"testing"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/quotes"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestComputeInsufficientData(t *testing.T) {
	for _, w := range []quotes.Window{nil, {{Ticker: "SPY", TimestampMS: 1}}} {
		rec := Compute(w, 10)
		if !rec.InsufficientData {
			t.Fatalf("expected InsufficientData for window of length %d", len(w))
		}
		if rec.BidLifts != 0 || rec.AskLifts != 0 {
			t.Fatalf("expected zero-valued numeric fields, got %+v", rec)
		}
	}
}

func TestComputeLiftsDropsPartitionTransitions(t *testing.T) {
	w := quotes.Window{
		{TimestampMS: 0, BidPrice: mustDecimal(t, "450.10"), AskPrice: mustDecimal(t, "450.30"), BidSize: 5000, AskSize: 2000},
		{TimestampMS: 1000, BidPrice: mustDecimal(t, "450.11"), AskPrice: mustDecimal(t, "450.30"), BidSize: 5300, AskSize: 2000},
		{TimestampMS: 2000, BidPrice: mustDecimal(t, "450.11"), AskPrice: mustDecimal(t, "450.30"), BidSize: 5600, AskSize: 2000},
		{TimestampMS: 3000, BidPrice: mustDecimal(t, "450.09"), AskPrice: mustDecimal(t, "450.30"), BidSize: 5900, AskSize: 2000},
	}
	rec := Compute(w, 3)

	n := len(w)
	unchanged := n - 1 - rec.BidLifts - rec.BidDrops
	if rec.BidLifts+rec.BidDrops+unchanged != n-1 {
		t.Fatalf("bid_lifts + bid_drops + unchanged must equal n-1, got lifts=%d drops=%d unchanged=%d n=%d",
			rec.BidLifts, rec.BidDrops, unchanged, n)
	}
	if rec.BidLifts != 1 || rec.BidDrops != 1 {
		t.Fatalf("expected 1 lift and 1 drop, got lifts=%d drops=%d", rec.BidLifts, rec.BidDrops)
	}
	if rec.AskLifts != 0 || rec.AskDrops != 0 {
		t.Fatalf("flat ask side should count neither lift nor drop, got lifts=%d drops=%d", rec.AskLifts, rec.AskDrops)
	}
}

func TestComputeRisingBidSteadyAsk(t *testing.T) {
	var w quotes.Window
	bid := mustDecimal(t, "450.10")
	step := mustDecimal(t, "0.01")
	ask := mustDecimal(t, "450.30")
	size := int64(5000)
	for i := 0; i < 60; i++ {
		w = append(w, quotes.Quote{
			Ticker:      "SPY",
			TimestampMS: int64(i) * 1000,
			BidPrice:    bid,
			AskPrice:    ask,
			BidSize:     size,
			AskSize:     2000,
		})
		if i < 10 {
			bid = bid.Add(step)
		}
		if i < 54 {
			size += 50
		}
	}

	rec := Compute(w, 60)
	if rec.BidLifts != 10 {
		t.Fatalf("expected 10 bid lifts, got %d", rec.BidLifts)
	}
	if rec.BidDrops != 0 {
		t.Fatalf("expected 0 bid drops, got %d", rec.BidDrops)
	}
	if rec.BidSizeAcceleration != Increasing {
		t.Fatalf("expected INCREASING bid size acceleration, got %s", rec.BidSizeAcceleration)
	}
}

func TestClassifyAccelerationThresholds(t *testing.T) {
	cases := []struct {
		name  string
		sizes []int64
		want  Acceleration
	}{
		{"increasing", []int64{1000, 1000, 1300, 1300}, Increasing},
		{"decreasing", []int64{1000, 1000, 700, 700}, Decreasing},
		{"stable", []int64{1000, 1000, 1050, 1050}, Stable},
		{"too_short", []int64{1000}, Stable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyAcceleration(tc.sizes)
			if got != tc.want {
				t.Fatalf("classifyAcceleration(%v) = %s, want %s", tc.sizes, got, tc.want)
			}
		})
	}
}

func TestComputeQuotesPerSecondMatchesCount(t *testing.T) {
	w := quotes.Window{
		{TimestampMS: 0, BidPrice: mustDecimal(t, "1"), AskPrice: mustDecimal(t, "1.01")},
		{TimestampMS: 500, BidPrice: mustDecimal(t, "1"), AskPrice: mustDecimal(t, "1.01")},
		{TimestampMS: 1000, BidPrice: mustDecimal(t, "1"), AskPrice: mustDecimal(t, "1.01")},
	}
	rec := Compute(w, 1)
	got := rec.QuotesPerSecond * 1 // windowSeconds=1, elapsed=1s
	if got < float64(len(w))-1 || got > float64(len(w))+1 {
		t.Fatalf("quotes_per_second * window_seconds should be within 1 of quote count, got %v want ~%d", got, len(w))
	}
}
