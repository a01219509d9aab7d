// Package quotes implements the Quote Store (C1): an append-only,
// time-ordered per-ticker quote buffer with range queries, a latest-value
// fast path, and TTL-backed derived-data slots for metrics, behaviors,
// patterns, and price levels.
package quotes

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuote is returned when a Quote fails its own invariants.
var ErrInvalidQuote = errors.New("quotes: invalid quote")

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// Quote is an immutable top-of-book observation for one ticker at one
// timestamp. Quotes are created by upstream ingestion and never mutated.
type Quote struct {
	Ticker    string
	// TimestampMS is milliseconds since the Unix epoch, monotonic per
	// ticker within a session.
	TimestampMS int64
	BidPrice    decimal.Decimal
	AskPrice    decimal.Decimal
	BidSize     int64
	AskSize     int64
}

// NormalizeTicker upper-cases and validates a ticker symbol per spec.md
// §4.8: alphanumeric, length 1-10.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("%s: %q", ErrInvalidTicker, ticker)
	}
	return t, nil
}

// Validate checks the invariants of spec.md §3: ask >= bid, non-negative
// sizes, normalized ticker.
func (q Quote) Validate() error {
	if _, err := NormalizeTicker(q.Ticker); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	if q.AskPrice.LessThan(q.BidPrice) {
		return fmt.Errorf("%w: ask %s below bid %s", ErrInvalidQuote, q.AskPrice, q.BidPrice)
	}
	if q.BidSize < 0 || q.AskSize < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidQuote)
	}
	return nil
}

// OneSided reports whether either side carries zero size; one-sided
// quotes participate in metrics but not in stacking (spec.md §3).
func (q Quote) OneSided() bool {
	return q.BidSize == 0 || q.AskSize == 0
}

// Spread returns ask - bid, always >= 0 for a valid quote.
func (q Quote) Spread() decimal.Decimal {
	return q.AskPrice.Sub(q.BidPrice)
}

// MidPrice returns the midpoint of bid and ask.
func (q Quote) MidPrice() decimal.Decimal {
	return q.BidPrice.Add(q.AskPrice).Div(decimal.NewFromInt(2))
}

// Timestamp returns the quote's timestamp as a time.Time in UTC.
func (q Quote) Timestamp() time.Time {
	return time.UnixMilli(q.TimestampMS).UTC()
}

// RoundToTick rounds a price to the nearest multiple of tick.
func RoundToTick(price decimal.Decimal, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return price.Round(4)
	}
	units := price.Div(tick).Round(0)
	return units.Mul(tick).Round(4)
}
