// Package behavior implements the Behavior Analyzer (C3): stateless
// functions mapping a metrics record and recent quotes to boolean
// market-behavior flags.
package behavior

import (
	"github.com/shopspring/decimal"

	"orderflow-engine/internal/metrics"
	"orderflow-engine/internal/quotes"
)

// momentumVelocityFactor is the ticker-independent threshold factor from
// spec.md §4.3: price_velocity must exceed 0.001 x price per second.
const momentumVelocityFactor = 0.001

// Flags holds the independently evaluated market-behavior booleans for
// one ticker, derived fresh each processor tick from the 60s window.
type Flags struct {
	BidStacking       bool
	AskPulling        bool
	SpreadTightening  bool
	MomentumBuilding  bool
	AggressiveBuying  bool
	AggressiveSelling bool
}

// Analyze evaluates the four spec.md rules plus the supplemented
// aggressive_buying/aggressive_selling flags. last20 holds up to the most
// recent 20 quotes (oldest first); m60 is the 60s metrics record;
// currentPrice anchors the ticker-independent momentum threshold.
func Analyze(m60 metrics.Record, last20 quotes.Window, currentPrice decimal.Decimal) Flags {
	return Flags{
		BidStacking:       checkBidStacking(last20),
		AskPulling:        checkAskPulling(last20),
		SpreadTightening:  checkSpreadTightening(last20),
		MomentumBuilding:  checkMomentumBuilding(m60, currentPrice),
		AggressiveBuying:  checkAggressiveBuying(m60),
		AggressiveSelling: checkAggressiveSelling(m60),
	}
}

// checkBidStacking: >= 3 of the last 10 quotes had bid_size strictly
// greater than the previous quote and bid_price not declining.
func checkBidStacking(w quotes.Window) bool {
	recent := lastN(w, 10)
	if len(recent) < 2 {
		return false
	}
	hits := 0
	for i := 1; i < len(recent); i++ {
		prev, curr := recent[i-1], recent[i]
		if curr.BidSize > prev.BidSize && !curr.BidPrice.LessThan(prev.BidPrice) {
			hits++
		}
	}
	return hits >= 3
}

// checkAskPulling: >= 3 of the last 10 quotes had ask_size strictly
// lower than the previous quote while ask_price rose or held.
func checkAskPulling(w quotes.Window) bool {
	recent := lastN(w, 10)
	if len(recent) < 2 {
		return false
	}
	hits := 0
	for i := 1; i < len(recent); i++ {
		prev, curr := recent[i-1], recent[i]
		if curr.AskSize < prev.AskSize && !curr.AskPrice.LessThan(prev.AskPrice) {
			hits++
		}
	}
	return hits >= 3
}

// checkSpreadTightening: mean spread of the last 10 quotes is at least
// 10% below the mean spread of the prior 10.
func checkSpreadTightening(w quotes.Window) bool {
	if len(w) < 20 {
		return false
	}
	prior := w[len(w)-20 : len(w)-10]
	recent := w[len(w)-10:]

	priorAvg := meanSpread(prior)
	recentAvg := meanSpread(recent)
	if priorAvg.IsZero() {
		return false
	}
	return recentAvg.LessThan(priorAvg.Mul(decimal.NewFromFloat(0.9)))
}

func meanSpread(w quotes.Window) decimal.Decimal {
	if len(w) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, q := range w {
		sum = sum.Add(q.Spread())
	}
	return sum.Div(decimal.NewFromInt(int64(len(w))))
}

// checkMomentumBuilding: (bid_lifts / max(1, bid_drops)) > 1.5 AND
// price_velocity exceeds the ticker-independent threshold.
func checkMomentumBuilding(m metrics.Record, currentPrice decimal.Decimal) bool {
	if m.InsufficientData {
		return false
	}
	drops := m.BidDrops
	if drops < 1 {
		drops = 1
	}
	ratio := float64(m.BidLifts) / float64(drops)
	if ratio <= 1.5 {
		return false
	}
	threshold := currentPrice.Mul(decimal.NewFromFloat(momentumVelocityFactor))
	return m.PriceVelocity.GreaterThan(threshold)
}

// checkAggressiveBuying is a supplemented flag (not in spec.md §4.3,
// grounded in the upstream behavior analyzer's indicator-count rule):
// at least 2 of {ask lifts dominating ask drops 2x, >3 large bid
// appearances, increasing bid size acceleration, bid price up >0.05}.
func checkAggressiveBuying(m metrics.Record) bool {
	if m.InsufficientData {
		return false
	}
	indicators := 0
	if m.AskLifts > m.AskDrops*2 {
		indicators++
	}
	if m.LargeBidCount > 3 {
		indicators++
	}
	if m.BidSizeAcceleration == metrics.Increasing {
		indicators++
	}
	if m.BidPriceChange.GreaterThan(decimal.NewFromFloat(0.05)) {
		indicators++
	}
	return indicators >= 2
}

// checkAggressiveSelling mirrors checkAggressiveBuying on the opposite
// side: bid drops dominating, large ask appearances, increasing ask
// size acceleration, bid price down >0.05.
func checkAggressiveSelling(m metrics.Record) bool {
	if m.InsufficientData {
		return false
	}
	indicators := 0
	if m.BidDrops > m.BidLifts*2 {
		indicators++
	}
	if m.LargeAskCount > 3 {
		indicators++
	}
	if m.AskSizeAcceleration == metrics.Increasing {
		indicators++
	}
	if m.BidPriceChange.LessThan(decimal.NewFromFloat(-0.05)) {
		indicators++
	}
	return indicators >= 2
}

func lastN(w quotes.Window, n int) quotes.Window {
	if len(w) <= n {
		return w
	}
	return w[len(w)-n:]
}
