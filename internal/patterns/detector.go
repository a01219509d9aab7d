package patterns

import (
	"fmt"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/metrics"
	"orderflow-engine/internal/quotes"
)

const (
	absorptionMinSize     = 8_000
	absorptionStrongSize  = 20_000
	absorptionModSize     = 12_000
	absorptionMinRunMS    = 15_000
	stackingMinSize       = 5_000
	stackingMinRun        = 5
	icebergSizeDelta      = 15_000
	icebergMaxTickChange  = 2
	momentumShiftMinMoves = 2
)

// Detect runs all four pattern rules against a 60s window (spec.md
// §4.4), requiring at least 60s of data. Results are ordered
// kind-alphabetically; within a kind bid comes before ask, except that
// iceberg patterns follow window order, bid before ask for each quote
// pair. Duplicate suppression is NOT applied here (it is a
// log-append-time concern, see Suppress).
func Detect(w quotes.Window, m60 metrics.Record, tick decimal.Decimal, nowMS int64) []Pattern {
	if w.DurationMS() < 60_000 {
		return nil
	}

	var out []Pattern
	if p, ok := detectAbsorption(w, SideBid, tick, nowMS); ok {
		out = append(out, p)
	}
	if p, ok := detectAbsorption(w, SideAsk, tick, nowMS); ok {
		out = append(out, p)
	}
	out = append(out, detectIceberg(w, tick, nowMS)...)
	if p, ok := detectMomentumShift(m60, nowMS); ok {
		out = append(out, p)
	}
	if p, ok := detectStacking(w, SideBid, nowMS); ok {
		out = append(out, p)
	}
	if p, ok := detectStacking(w, SideAsk, nowMS); ok {
		out = append(out, p)
	}
	return out
}

func sidePrice(q quotes.Quote, side Side) decimal.Decimal {
	if side == SideBid {
		return q.BidPrice
	}
	return q.AskPrice
}

func sideSize(q quotes.Quote, side Side) int64 {
	if side == SideBid {
		return q.BidSize
	}
	return q.AskSize
}

// detectAbsorption finds the maximal trailing run of quotes whose side
// price stays within one tick of its own range and whose mean size
// exceeds absorptionMinSize, spanning at least absorptionMinRunMS.
func detectAbsorption(w quotes.Window, side Side, tick decimal.Decimal, nowMS int64) (Pattern, bool) {
	n := len(w)
	if n == 0 {
		return Pattern{}, false
	}

	lo := n - 1
	min, max := sidePrice(w[n-1], side), sidePrice(w[n-1], side)
	for lo > 0 {
		candidatePrice := sidePrice(w[lo-1], side)
		newMin, newMax := min, max
		if candidatePrice.LessThan(newMin) {
			newMin = candidatePrice
		}
		if candidatePrice.GreaterThan(newMax) {
			newMax = candidatePrice
		}
		if newMax.Sub(newMin).GreaterThanOrEqual(tick) {
			break
		}
		min, max = newMin, newMax
		lo--
	}

	run := w[lo:]
	if len(run) < 2 {
		return Pattern{}, false
	}
	if run[len(run)-1].TimestampMS-run[0].TimestampMS < absorptionMinRunMS {
		return Pattern{}, false
	}

	var sizeSum int64
	var priceSum decimal.Decimal = decimal.Zero
	for _, q := range run {
		sizeSum += sideSize(q, side)
		priceSum = priceSum.Add(sidePrice(q, side))
	}
	meanSize := float64(sizeSum) / float64(len(run))
	if meanSize <= absorptionMinSize {
		return Pattern{}, false
	}

	strength := Weak
	switch {
	case meanSize > absorptionStrongSize:
		strength = Strong
	case meanSize > absorptionModSize:
		strength = Moderate
	}

	avgPrice := priceSum.Div(decimal.NewFromInt(int64(len(run)))).Round(4)
	volume := decimal.NewFromFloat(meanSize).Mul(decimal.NewFromInt(int64(len(run)))).Round(4)

	return Pattern{
		Kind:          Absorption,
		Side:          side,
		Strength:      strength,
		TimestampMS:   nowMS,
		PriceLevel:    avgPrice,
		HasPriceLevel: true,
		Volume:        volume,
		HasVolume:     true,
		Description:   fmt.Sprintf("%s absorption at %s, mean size %.0f over %d quotes", side, avgPrice.String(), meanSize, len(run)),
	}, true
}

// detectStacking finds the maximal trailing run of two-sided quotes whose
// side size is non-decreasing and always >= stackingMinSize.
func detectStacking(w quotes.Window, side Side, nowMS int64) (Pattern, bool) {
	n := len(w)
	if n == 0 || w[n-1].OneSided() || sideSize(w[n-1], side) < stackingMinSize {
		return Pattern{}, false
	}

	lo := n - 1
	for lo > 0 {
		prevSize := sideSize(w[lo-1], side)
		currSize := sideSize(w[lo], side)
		if w[lo-1].OneSided() || prevSize < stackingMinSize || prevSize > currSize {
			break
		}
		lo--
	}

	run := w[lo:]
	if len(run) < stackingMinRun {
		return Pattern{}, false
	}

	var totalSize int64
	for _, q := range run {
		totalSize += sideSize(q, side)
	}
	lastSize := sideSize(run[len(run)-1], side)

	return Pattern{
		Kind:          Stacking,
		Side:          side,
		Strength:      stackingStrength(len(run)),
		TimestampMS:   nowMS,
		PriceLevel:    sidePrice(run[len(run)-1], side).Round(4),
		HasPriceLevel: true,
		Volume:        decimal.NewFromInt(lastSize),
		HasVolume:     true,
		Description:   fmt.Sprintf("%s stacking, %d levels, summed size %d", side, len(run), totalSize),
	}, true
}

func stackingStrength(runLength int) Strength {
	switch {
	case runLength >= 10:
		return Strong
	case runLength >= 7:
		return Moderate
	default:
		return Weak
	}
}

// detectMomentumShift reads the 60s metrics record directly; it never
// scans the window.
func detectMomentumShift(m metrics.Record, nowMS int64) (Pattern, bool) {
	if m.InsufficientData {
		return Pattern{}, false
	}
	bullTerm := m.BidLifts
	bearTerm := m.AskDrops
	lead := bullTerm
	if bearTerm > lead {
		lead = bearTerm
	}
	floor := m.BidDrops
	if m.AskLifts < floor {
		floor = m.AskLifts
	}
	if floor < 1 {
		floor = 1
	}
	if lead < momentumShiftMinMoves*floor {
		return Pattern{}, false
	}

	direction := "bearish"
	if bullTerm >= bearTerm {
		direction = "bullish"
	}
	ratio := float64(lead) / float64(floor)
	strength := Weak
	switch {
	case ratio >= 4:
		strength = Strong
	case ratio >= 3:
		strength = Moderate
	}

	return Pattern{
		Kind:        MomentumShift,
		Side:        SideNone,
		Strength:    strength,
		TimestampMS: nowMS,
		Direction:   direction,
		Description: fmt.Sprintf("momentum shift %s, ratio %.2f", direction, ratio),
	}, true
}

// detectIceberg scans adjacent pairs for a sudden size change on either
// side unaccompanied by a matching price move.
func detectIceberg(w quotes.Window, tick decimal.Decimal, nowMS int64) []Pattern {
	var out []Pattern
	maxPriceMove := tick.Mul(decimal.NewFromInt(icebergMaxTickChange))

	for i := 1; i < len(w); i++ {
		prev, curr := w[i-1], w[i]

		bidSizeDelta := abs64(curr.BidSize - prev.BidSize)
		bidPriceMove := curr.BidPrice.Sub(prev.BidPrice).Abs()
		if bidSizeDelta > icebergSizeDelta && bidPriceMove.LessThanOrEqual(maxPriceMove) {
			out = append(out, Pattern{
				Kind:          Iceberg,
				Side:          SideBid,
				Strength:      Moderate,
				TimestampMS:   nowMS,
				PriceLevel:    curr.BidPrice.Round(4),
				HasPriceLevel: true,
				Volume:        decimal.NewFromInt(bidSizeDelta),
				HasVolume:     true,
				Description:   fmt.Sprintf("bid size change %d at %s without matching price move", bidSizeDelta, curr.BidPrice.String()),
			})
		}

		askSizeDelta := abs64(curr.AskSize - prev.AskSize)
		askPriceMove := curr.AskPrice.Sub(prev.AskPrice).Abs()
		if askSizeDelta > icebergSizeDelta && askPriceMove.LessThanOrEqual(maxPriceMove) {
			out = append(out, Pattern{
				Kind:          Iceberg,
				Side:          SideAsk,
				Strength:      Moderate,
				TimestampMS:   nowMS,
				PriceLevel:    curr.AskPrice.Round(4),
				HasPriceLevel: true,
				Volume:        decimal.NewFromInt(askSizeDelta),
				HasVolume:     true,
				Description:   fmt.Sprintf("ask size change %d at %s without matching price move", askSizeDelta, curr.AskPrice.String()),
			})
		}
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Suppress applies duplicate suppression: an incoming candidate pattern
// is dropped if an existing log entry with the same (kind, side, price
// rounded to cent) falls within suppressWindowMS of it, so the earlier
// occurrence stays in the log with its own timestamp and is not
// replaced. A candidate outside that window is kept alongside the
// earlier entry.
func Suppress(existing []Pattern, candidate Pattern, suppressWindowMS int64) bool {
	key := candidate.dedupKey()
	for _, e := range existing {
		if e.dedupKey() != key {
			continue
		}
		delta := candidate.TimestampMS - e.TimestampMS
		if delta < 0 {
			delta = -delta
		}
		if delta <= suppressWindowMS {
			return true
		}
	}
	return false
}
