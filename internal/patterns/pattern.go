// Package patterns implements the Pattern Detector (C4): stateless
// functions mapping a quote window to zero or more detected
// microstructure patterns, plus the duplicate-suppression rule from
// spec.md §3 applied when patterns are appended to the log.
package patterns

import (
	"github.com/shopspring/decimal"
)

// Kind enumerates the four pattern classes.
type Kind string

const (
	Absorption    Kind = "absorption"
	Stacking      Kind = "stacking"
	MomentumShift Kind = "momentum_shift"
	Iceberg       Kind = "iceberg"
)

// Side names which book side a pattern concerns, or None for patterns
// without a side (momentum_shift).
type Side string

const (
	SideBid  Side = "bid"
	SideAsk  Side = "ask"
	SideNone Side = "none"
)

// Strength is a coarse classification of how pronounced a pattern is.
type Strength string

const (
	Weak     Strength = "weak"
	Moderate Strength = "moderate"
	Strong   Strength = "strong"
)

// Pattern is a discrete microstructure event emitted by the detector.
// PriceLevel and Volume are optional per spec.md §3; a zero decimal.Decimal
// with HasPriceLevel/HasVolume false means "not applicable" rather than
// "zero".
type Pattern struct {
	Kind        Kind
	Side        Side
	Strength    Strength
	TimestampMS int64
	Description string

	// Direction is set only on momentum_shift patterns ("bullish" or
	// "bearish"); every other kind leaves it empty.
	Direction string

	PriceLevel    decimal.Decimal
	HasPriceLevel bool
	Volume        decimal.Decimal
	HasVolume     bool
}

// roundedPriceCents rounds PriceLevel to the nearest cent for the
// duplicate-suppression key (spec.md §3); callers without a price level
// get zero, which only matters if HasPriceLevel is also false for both
// sides of a comparison.
func (p Pattern) roundedPriceCents() decimal.Decimal {
	return p.PriceLevel.Round(2)
}

// DedupKey identifies patterns that collapse into one occurrence within
// the 30s suppression window: identical (kind, side, price rounded to
// cent).
type DedupKey struct {
	Kind  Kind
	Side  Side
	Price string
}

func (p Pattern) dedupKey() DedupKey {
	return DedupKey{Kind: p.Kind, Side: p.Side, Price: p.roundedPriceCents().String()}
}
