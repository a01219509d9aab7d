package snapshot

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/behavior"
	"orderflow-engine/internal/levels"
	"orderflow-engine/internal/metrics"
	"orderflow-engine/internal/patterns"
	"orderflow-engine/internal/quotes"
)

// BuildInput gathers everything C7 needs to assemble a happy-path
// document; the Query Coordinator (C8) is responsible for reading it
// all from the Quote Store before calling Build.
type BuildInput struct {
	Ticker         string
	Now            time.Time
	HistorySeconds int

	LatestQuote quotes.Quote
	QuoteCount  int

	Metrics10s  *metrics.Record
	Metrics60s  *metrics.Record
	Metrics300s *metrics.Record
	Behaviors   *behavior.Flags

	BidLevels []levels.Level
	AskLevels []levels.Level

	// Sweeps holds iceberg patterns timestamped within
	// [Now-HistorySeconds, Now] regardless of IncludePatterns, rendered as
	// <sweep> children of price_levels.
	Sweeps []patterns.Pattern

	// InWindow holds every pattern timestamped within
	// [Now-HistorySeconds, Now], used for data_summary's pattern_count
	// and, when IncludePatterns is set, the detected_patterns block.
	InWindow        []patterns.Pattern
	IncludePatterns bool
}

// Build assembles the happy-path document from in, following spec.md
// §4.7/§6 exactly: deterministic child order, 4-decimal prices, integer
// sizes, 2-decimal ratios, integer-second durations.
func Build(in BuildInput) *Document {
	mid := in.LatestQuote.MidPrice()

	doc := &Document{
		Ticker:        in.Ticker,
		Timestamp:     in.Now.UTC().Format(time.RFC3339),
		CurrentPrice:  formatPrice(mid),
		HistoryWindow: fmt.Sprintf("%ds", in.HistorySeconds),

		DataSummary: &DataSummary{
			QuoteCount:    in.QuoteCount,
			WindowSeconds: in.HistorySeconds,
			PatternCount:  len(in.InWindow),
		},
		CurrentQuote: buildCurrentQuote(in.LatestQuote, mid),
		Momentum:     buildMomentum(in.Metrics10s, in.Metrics60s, in.Metrics300s),
		PriceLevels:  buildPriceLevels(in.BidLevels, in.AskLevels, in.Sweeps, mid, in.Now),
		Velocity:     buildVelocity(firstNonNil(in.Metrics10s, in.Metrics60s, in.Metrics300s)),
	}

	if in.Metrics60s != nil && !in.Metrics60s.InsufficientData {
		doc.SizeMetrics = buildSizeMetrics(in.Metrics60s)
	}
	if in.Behaviors != nil {
		doc.Behaviors = buildBehaviors(*in.Behaviors)
	}
	if in.IncludePatterns && len(in.InWindow) > 0 {
		doc.DetectedPatterns = buildPatternsBlock(in.InWindow, in.HistorySeconds, in.Now)
	}

	return doc
}

func firstNonNil(records ...*metrics.Record) *metrics.Record {
	for _, r := range records {
		if r != nil && !r.InsufficientData {
			return r
		}
	}
	return nil
}

func buildCurrentQuote(q quotes.Quote, mid decimal.Decimal) *CurrentQuote {
	askSize := q.AskSize
	if askSize < 1 {
		askSize = 1
	}
	ratio := float64(q.BidSize) / float64(askSize)

	spread := q.Spread()
	basisPoints := decimal.Zero
	if !mid.IsZero() {
		basisPoints = spread.Div(mid).Mul(decimal.NewFromInt(10_000))
	}

	return &CurrentQuote{
		Bid:         PriceSize{Price: formatPrice(q.BidPrice), Size: q.BidSize},
		Ask:         PriceSize{Price: formatPrice(q.AskPrice), Size: q.AskSize},
		BidAskRatio: formatRatio(ratio),
		Spread: Spread{
			Value:       formatPrice(spread),
			BasisPoints: formatRatio2(basisPoints),
		},
	}
}

func buildMomentum(m10, m60, m300 *metrics.Record) *Momentum {
	mom := &Momentum{}
	if m10 != nil && !m10.InsufficientData {
		mom.Last10s = &MomentumSimple{
			BidPriceChange: formatPrice(m10.BidPriceChange),
			AskPriceChange: formatPrice(m10.AskPriceChange),
			BidSizeChange:  m10.BidSizeChange,
			AskSizeChange:  m10.AskSizeChange,
		}
	}
	if m60 != nil && !m60.InsufficientData {
		mom.Last60s = momentumCounts(*m60)
	}
	if m300 != nil && !m300.InsufficientData {
		mom.Last5min = momentumCounts(*m300)
	}
	if mom.Last10s == nil && mom.Last60s == nil && mom.Last5min == nil {
		return nil
	}
	return mom
}

func momentumCounts(m metrics.Record) *MomentumCounts {
	return &MomentumCounts{
		BidPriceChange: formatPrice(m.BidPriceChange),
		AskPriceChange: formatPrice(m.AskPriceChange),
		BidLifts:       m.BidLifts,
		BidDrops:       m.BidDrops,
		AskLifts:       m.AskLifts,
		AskDrops:       m.AskDrops,
	}
}

func buildSizeMetrics(m *metrics.Record) *SizeMetrics {
	return &SizeMetrics{
		LargeOrders: LargeOrders{
			BidsOver10k: m.LargeBidCount,
			AsksOver10k: m.LargeAskCount,
		},
		AverageSizes: AverageSizes{
			Bid: formatPrice(m.AvgBidSize),
			Ask: formatPrice(m.AvgAskSize),
		},
		Acceleration: Acceleration{
			Bid: string(m.BidSizeAcceleration),
			Ask: string(m.AskSizeAcceleration),
		},
	}
}

func buildBehaviors(f behavior.Flags) *Behaviors {
	return &Behaviors{
		BidStacking:       yesNo(f.BidStacking),
		AskPulling:        yesNo(f.AskPulling),
		SpreadTightening:  yesNo(f.SpreadTightening),
		MomentumBuilding:  yesNo(f.MomentumBuilding),
		AggressiveBuying:  yesNo(f.AggressiveBuying),
		AggressiveSelling: yesNo(f.AggressiveSelling),
	}
}

func buildPriceLevels(bid, ask []levels.Level, sweeps []patterns.Pattern, mid decimal.Decimal, now time.Time) *PriceLevels {
	pl := &PriceLevels{
		BidLevels: make([]LevelElem, len(bid)),
		AskLevels: make([]LevelElem, len(ask)),
	}
	for i, l := range bid {
		pl.BidLevels[i] = levelElem(l, mid)
	}
	for i, l := range ask {
		pl.AskLevels[i] = levelElem(l, mid)
	}
	for _, p := range sweeps {
		pl.Sweeps = append(pl.Sweeps, sweepElem(p, now))
	}
	return pl
}

func levelElem(l levels.Level, mid decimal.Decimal) LevelElem {
	distance := decimal.Zero
	if !mid.IsZero() {
		distance = l.Price.Sub(mid).Div(mid).Mul(decimal.NewFromInt(100))
	}
	return LevelElem{
		Price:       formatPrice(l.Price),
		Size:        l.TotalSize,
		Appearances: l.Appearances,
		DistancePct: formatRatio2(distance),
	}
}

func sweepElem(p patterns.Pattern, now time.Time) SweepElem {
	var size int64
	if p.HasVolume {
		size = p.Volume.IntPart()
	}
	return SweepElem{
		Price:      formatPrice(p.PriceLevel),
		Size:       size,
		Direction:  string(p.Side),
		SecondsAgo: secondsAgo(p.TimestampMS, now),
	}
}

func buildVelocity(m *metrics.Record) *Velocity {
	if m == nil {
		return &Velocity{QuotesPerSecond: "0.00", PriceVelocity: "0.0000", SizeTurnover: "0.00"}
	}
	return &Velocity{
		QuotesPerSecond: formatRatio(m.QuotesPerSecond),
		PriceVelocity:   formatPrice(m.PriceVelocity),
		SizeTurnover:    formatRatio(m.SizeTurnover),
	}
}

func buildPatternsBlock(in []patterns.Pattern, historySeconds int, now time.Time) *PatternsBlock {
	block := &PatternsBlock{
		Count:    len(in),
		Window:   fmt.Sprintf("%ds", historySeconds),
		Patterns: make([]PatternElem, len(in)),
	}
	for i, p := range in {
		block.Patterns[i] = patternElem(p, now)
	}
	return block
}

func patternElem(p patterns.Pattern, now time.Time) PatternElem {
	el := PatternElem{
		Type:               string(p.Kind),
		Description:        p.Description,
		DetectedSecondsAgo: secondsAgo(p.TimestampMS, now),
	}
	if p.Side != patterns.SideNone {
		el.Side = string(p.Side)
	}
	if p.Strength != "" {
		el.Strength = string(p.Strength)
	}
	if p.Direction != "" {
		el.Direction = p.Direction
	}
	if p.HasPriceLevel {
		el.PriceLevel = formatPrice(p.PriceLevel)
	}
	if p.HasVolume {
		el.Volume = formatPrice(p.Volume)
		if p.Kind == patterns.Stacking {
			el.TotalSize = p.Volume.IntPart()
		}
	}
	return el
}

func secondsAgo(timestampMS int64, now time.Time) int64 {
	delta := now.UnixMilli() - timestampMS
	if delta < 0 {
		delta = 0
	}
	return delta / 1000
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(4)
}

func formatRatio(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatRatio2(d decimal.Decimal) string {
	return d.StringFixed(2)
}
