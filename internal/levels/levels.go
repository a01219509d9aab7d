// Package levels implements the Level Tracker (C5): a per-tick,
// stateless recomputation of significant resting price levels from the
// 5-minute quote window, plus sweep-level detection across ticks.
package levels

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/patterns"
	"orderflow-engine/internal/quotes"
)

const (
	minAppearances  = 3
	minTotalSize    = 25_000
	topN            = 10
	topNForSweep    = 5
	sweepDropRatio  = 0.75
)

// Level is a size-weighted, log-dampened score for a resting price on
// one side of the book.
type Level struct {
	Price        decimal.Decimal
	Appearances  int
	TotalSize    int64
	LastSeenMS   int64
	Significance decimal.Decimal
}

// Compute groups w by price rounded to tick, retains groups meeting
// spec.md §3's qualification invariants, and returns the top 10 by
// significance descending. w is expected to be the 5-minute window;
// recomputed fresh on every call, no carried state.
func Compute(w quotes.Window, side patterns.Side, tick decimal.Decimal) []Level {
	type accum struct {
		totalSize  int64
		appearances int
		lastSeenMS int64
	}
	groups := make(map[string]*accum)
	prices := make(map[string]decimal.Decimal)

	for _, q := range w {
		price, size := sidePriceSize(q, side)
		if size <= 0 {
			continue
		}
		rounded := quotes.RoundToTick(price, tick)
		key := rounded.String()
		a, ok := groups[key]
		if !ok {
			a = &accum{}
			groups[key] = a
			prices[key] = rounded
		}
		a.totalSize += size
		a.appearances++
		if q.TimestampMS > a.lastSeenMS {
			a.lastSeenMS = q.TimestampMS
		}
	}

	out := make([]Level, 0, len(groups))
	for key, a := range groups {
		if a.appearances < minAppearances || a.totalSize < minTotalSize {
			continue
		}
		out = append(out, Level{
			Price:        prices[key],
			Appearances:  a.appearances,
			TotalSize:    a.totalSize,
			LastSeenMS:   a.lastSeenMS,
			Significance: significance(a.totalSize, a.appearances),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Significance.Equal(out[j].Significance) {
			return out[i].Significance.GreaterThan(out[j].Significance)
		}
		return out[i].Price.GreaterThan(out[j].Price)
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func significance(totalSize int64, appearances int) decimal.Decimal {
	s := float64(totalSize) * math.Log(1+float64(appearances))
	return decimal.NewFromFloat(s).Round(4)
}

func sidePriceSize(q quotes.Quote, side patterns.Side) (decimal.Decimal, int64) {
	if side == patterns.SideBid {
		return q.BidPrice, q.BidSize
	}
	return q.AskPrice, q.AskSize
}

// DetectSweeps compares the previous tick's top-5 levels against the
// current tick's full level set and emits a sweep pattern for any
// previously top-5 price whose size dropped by more than 75%, or
// disappeared entirely (spec.md §4.5).
func DetectSweeps(prevTop5 []Level, curr []Level, side patterns.Side, nowMS int64) []patterns.Pattern {
	currByPrice := make(map[string]Level, len(curr))
	for _, l := range curr {
		currByPrice[l.Price.String()] = l
	}

	var out []patterns.Pattern
	for i, prev := range prevTop5 {
		if i >= topNForSweep {
			break
		}
		key := prev.Price.String()
		now, stillPresent := currByPrice[key]
		dropped := !stillPresent || float64(now.TotalSize) < float64(prev.TotalSize)*(1-sweepDropRatio)
		if !dropped {
			continue
		}
		out = append(out, patterns.Pattern{
			Kind:          patterns.Iceberg,
			Side:          side,
			Strength:      patterns.Moderate,
			TimestampMS:   nowMS,
			PriceLevel:    prev.Price,
			HasPriceLevel: true,
			Volume:        decimal.NewFromInt(prev.TotalSize),
			HasVolume:     true,
			Description:   "sweep: top-5 level size dropped more than 75% between ticks",
		})
	}
	return out
}
