// Package snapshot implements the Snapshot Formatter (C7): assembly of
// the deterministic analyze_order_flow XML document from the derived
// data C6 maintains, plus the error-document catalog of spec.md §7.
package snapshot

import "encoding/xml"

// Document is the root order_flow_data element. Attribute and child
// order mirrors spec.md §6 exactly; both are part of the render
// contract.
type Document struct {
	XMLName       xml.Name `xml:"order_flow_data"`
	Ticker        string   `xml:"ticker,attr"`
	Timestamp     string   `xml:"timestamp,attr"`
	CurrentPrice  string   `xml:"current_price,attr,omitempty"`
	HistoryWindow string   `xml:"history_window,attr,omitempty"`
	Error         string   `xml:"error,attr,omitempty"`

	DataSummary      *DataSummary   `xml:"data_summary,omitempty"`
	CurrentQuote     *CurrentQuote  `xml:"current_quote,omitempty"`
	Momentum         *Momentum      `xml:"momentum,omitempty"`
	SizeMetrics      *SizeMetrics   `xml:"size_metrics,omitempty"`
	Behaviors        *Behaviors     `xml:"behaviors,omitempty"`
	PriceLevels      *PriceLevels   `xml:"price_levels,omitempty"`
	Velocity         *Velocity      `xml:"velocity,omitempty"`
	DetectedPatterns *PatternsBlock `xml:"detected_patterns,omitempty"`

	ErrorCode      string          `xml:"error_code,omitempty"`
	ErrorMessage   string          `xml:"error_message,omitempty"`
	PossibleCauses *CauseList      `xml:"possible_causes,omitempty"`
	Suggestions    *SuggestionList `xml:"suggestions,omitempty"`
}

// CauseList is the error document's possible_causes block.
type CauseList struct {
	Causes []string `xml:"cause"`
}

// SuggestionList is the error document's suggestions block.
type SuggestionList struct {
	Suggestions []string `xml:"suggestion"`
}

// DataSummary reports the window C7 actually derived from.
type DataSummary struct {
	QuoteCount    int `xml:"quote_count"`
	WindowSeconds int `xml:"window_seconds"`
	PatternCount  int `xml:"pattern_count"`
}

// PriceSize renders a single book side's price and size.
type PriceSize struct {
	Price string `xml:"price,attr"`
	Size  int64  `xml:"size,attr"`
}

// Spread renders the raw and basis-point spread.
type Spread struct {
	Value       string `xml:"value,attr"`
	BasisPoints string `xml:"basis_points,attr"`
}

// CurrentQuote is the latest top-of-book observation.
type CurrentQuote struct {
	Bid         PriceSize `xml:"bid"`
	Ask         PriceSize `xml:"ask"`
	BidAskRatio string    `xml:"bid_ask_ratio"`
	Spread      Spread    `xml:"spread"`
}

// MomentumSimple is the last_10s momentum subtree: price and size
// change only, no lift/drop counts.
type MomentumSimple struct {
	BidPriceChange string `xml:"bid_price_change"`
	AskPriceChange string `xml:"ask_price_change"`
	BidSizeChange  int64  `xml:"bid_size_change"`
	AskSizeChange  int64  `xml:"ask_size_change"`
}

// MomentumCounts is the last_60s / last_5min momentum subtree.
type MomentumCounts struct {
	BidPriceChange string `xml:"bid_price_change"`
	AskPriceChange string `xml:"ask_price_change"`
	BidLifts       int    `xml:"bid_lifts"`
	BidDrops       int    `xml:"bid_drops"`
	AskLifts       int    `xml:"ask_lifts"`
	AskDrops       int    `xml:"ask_drops"`
}

// Momentum holds the per-window subtrees present for the queried history.
type Momentum struct {
	Last10s  *MomentumSimple `xml:"last_10s,omitempty"`
	Last60s  *MomentumCounts `xml:"last_60s,omitempty"`
	Last5min *MomentumCounts `xml:"last_5min,omitempty"`
}

// LargeOrders counts quotes over the configured large-size threshold.
type LargeOrders struct {
	BidsOver10k int `xml:"bids_over_10k"`
	AsksOver10k int `xml:"asks_over_10k"`
}

// AverageSizes reports mean resting size per side.
type AverageSizes struct {
	Bid string `xml:"bid"`
	Ask string `xml:"ask"`
}

// Acceleration reports the classified size trend per side.
type Acceleration struct {
	Bid string `xml:"bid"`
	Ask string `xml:"ask"`
}

// SizeMetrics is the size_metrics subtree, always derived from the 60s
// window when present.
type SizeMetrics struct {
	LargeOrders  LargeOrders  `xml:"large_orders"`
	AverageSizes AverageSizes `xml:"average_sizes"`
	Acceleration Acceleration `xml:"acceleration"`
}

// Behaviors renders the boolean flags as YES/NO strings.
type Behaviors struct {
	BidStacking       string `xml:"bid_stacking"`
	AskPulling        string `xml:"ask_pulling"`
	SpreadTightening  string `xml:"spread_tightening"`
	MomentumBuilding  string `xml:"momentum_building"`
	AggressiveBuying  string `xml:"aggressive_buying"`
	AggressiveSelling string `xml:"aggressive_selling"`
}

// LevelElem renders one significant resting price level.
type LevelElem struct {
	Price       string `xml:"price,attr"`
	Size        int64  `xml:"size,attr"`
	Appearances int    `xml:"appearances,attr"`
	DistancePct string `xml:"distance_pct,attr"`
}

// SweepElem renders a detected iceberg/sweep event at a price level.
type SweepElem struct {
	Price      string `xml:"price,attr"`
	Size       int64  `xml:"size,attr"`
	Direction  string `xml:"direction,attr"`
	SecondsAgo int64  `xml:"seconds_ago,attr"`
}

// PriceLevels is the price_levels subtree: top levels per side plus any
// sweep events observed within the queried history.
type PriceLevels struct {
	BidLevels []LevelElem `xml:"bid_level"`
	AskLevels []LevelElem `xml:"ask_level"`
	Sweeps    []SweepElem `xml:"sweep,omitempty"`
}

// Velocity is the velocity subtree.
type Velocity struct {
	QuotesPerSecond string `xml:"quotes_per_second"`
	PriceVelocity   string `xml:"price_velocity"`
	SizeTurnover    string `xml:"size_turnover"`
}

// PatternElem renders one detected pattern. Fields not applicable to a
// given kind are omitted.
type PatternElem struct {
	Type               string `xml:"type"`
	Side               string `xml:"side,omitempty"`
	Strength           string `xml:"strength,omitempty"`
	PriceLevel         string `xml:"price_level,omitempty"`
	Volume             string `xml:"volume,omitempty"`
	Levels             int    `xml:"levels,omitempty"`
	TotalSize          int64  `xml:"total_size,omitempty"`
	Direction          string `xml:"direction,omitempty"`
	Price              string `xml:"price,omitempty"`
	Size               int64  `xml:"size,omitempty"`
	Description        string `xml:"description,omitempty"`
	DetectedSecondsAgo int64  `xml:"detected_seconds_ago"`
}

// PatternsBlock is the optional detected_patterns subtree.
type PatternsBlock struct {
	Count    int           `xml:"count,attr"`
	Window   string        `xml:"window,attr"`
	Patterns []PatternElem `xml:"pattern"`
}

// Render marshals the document with a standard XML declaration.
// Purity: byte-identical output for byte-identical input except the
// Timestamp attribute (spec.md §4.7).
func (d *Document) Render() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, []byte(xml.Header)...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
