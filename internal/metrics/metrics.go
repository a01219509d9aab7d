// Package metrics implements the Metrics Calculator (C2): stateless
// functions mapping a quote window to momentum and size-dynamics metrics.
package metrics

import (
	"math"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/quotes"
)

// Acceleration classifies the trend of a size series across a window.
type Acceleration string

const (
	Increasing Acceleration = "INCREASING"
	Stable     Acceleration = "STABLE"
	Decreasing Acceleration = "DECREASING"
)

// LargeSizeThreshold is set once at engine startup from configuration
// (default 10_000) and held fixed for the life of the process.
var LargeSizeThreshold int64 = 10_000

// Record is the computed summary for one (ticker, window) pair.
type Record struct {
	InsufficientData bool

	BidPriceChange decimal.Decimal
	AskPriceChange decimal.Decimal
	BidSizeChange  int64
	AskSizeChange  int64

	BidLifts int
	BidDrops int
	AskLifts int
	AskDrops int

	AvgBidSize decimal.Decimal
	AvgAskSize decimal.Decimal

	LargeBidCount int
	LargeAskCount int

	BidSizeAcceleration Acceleration
	AskSizeAcceleration Acceleration

	QuotesPerSecond float64
	PriceVelocity   decimal.Decimal
	SizeTurnover    float64
}

// Compute derives a Record from window w spanning nominal duration
// windowSeconds (10, 60, or 300 per spec.md §3). With fewer than 2 quotes
// it returns a zero-valued record flagged InsufficientData rather than
// raising a numeric exception (spec.md §7).
func Compute(w quotes.Window, windowSeconds float64) Record {
	if len(w) < 2 {
		return Record{InsufficientData: true}
	}

	first, last := w[0], w[len(w)-1]
	rec := Record{
		BidPriceChange: last.BidPrice.Sub(first.BidPrice).Round(4),
		AskPriceChange: last.AskPrice.Sub(first.AskPrice).Round(4),
		BidSizeChange:  last.BidSize - first.BidSize,
		AskSizeChange:  last.AskSize - first.AskSize,
	}

	var bidSizeSum, askSizeSum int64
	var bidSizeCount, askSizeCount int
	bidSizes := make([]int64, len(w))
	askSizes := make([]int64, len(w))

	for i, q := range w {
		bidSizes[i] = q.BidSize
		askSizes[i] = q.AskSize
		if q.BidSize > 0 {
			bidSizeSum += q.BidSize
			bidSizeCount++
		}
		if q.AskSize > 0 {
			askSizeSum += q.AskSize
			askSizeCount++
		}
		if q.BidSize > LargeSizeThreshold {
			rec.LargeBidCount++
		}
		if q.AskSize > LargeSizeThreshold {
			rec.LargeAskCount++
		}

		if i == 0 {
			continue
		}
		prev := w[i-1]
		switch {
		case q.BidPrice.GreaterThan(prev.BidPrice):
			rec.BidLifts++
		case q.BidPrice.LessThan(prev.BidPrice):
			rec.BidDrops++
		}
		switch {
		case q.AskPrice.GreaterThan(prev.AskPrice):
			rec.AskLifts++
		case q.AskPrice.LessThan(prev.AskPrice):
			rec.AskDrops++
		}
	}

	if bidSizeCount > 0 {
		rec.AvgBidSize = decimal.NewFromInt(bidSizeSum).Div(decimal.NewFromInt(int64(bidSizeCount))).Round(4)
	}
	if askSizeCount > 0 {
		rec.AvgAskSize = decimal.NewFromInt(askSizeSum).Div(decimal.NewFromInt(int64(askSizeCount))).Round(4)
	}

	rec.BidSizeAcceleration = classifyAcceleration(bidSizes)
	rec.AskSizeAcceleration = classifyAcceleration(askSizes)

	elapsedSeconds := float64(last.TimestampMS-first.TimestampMS) / 1000
	if elapsedSeconds <= 0 {
		elapsedSeconds = windowSeconds
	}
	if elapsedSeconds > 0 {
		rec.QuotesPerSecond = float64(len(w)) / elapsedSeconds
	}

	midChange := last.MidPrice().Sub(first.MidPrice()).Abs()
	if windowSeconds > 0 {
		rec.PriceVelocity = midChange.Div(decimal.NewFromFloat(windowSeconds)).Round(6)
	}

	sizeChangeAbs := math.Abs(float64(rec.BidSizeChange)) + math.Abs(float64(rec.AskSizeChange))
	if windowSeconds > 0 {
		rec.SizeTurnover = sizeChangeAbs / windowSeconds
	}

	return rec
}

// classifyAcceleration splits sizes into two halves and compares their
// arithmetic means per spec.md §4.2.
func classifyAcceleration(sizes []int64) Acceleration {
	if len(sizes) < 2 {
		return Stable
	}
	mid := len(sizes) / 2
	firstAvg := mean(sizes[:mid])
	secondAvg := mean(sizes[mid:])

	if firstAvg <= 0 {
		return Stable
	}
	ratio := secondAvg / firstAvg
	switch {
	case ratio > 1.2:
		return Increasing
	case ratio < 0.8:
		return Decreasing
	default:
		return Stable
	}
}

func mean(sizes []int64) float64 {
	if len(sizes) == 0 {
		return 0
	}
	var sum int64
	for _, s := range sizes {
		sum += s
	}
	return float64(sum) / float64(len(sizes))
}
