package quotes

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidTicker indicates a ticker failed normalization.
	ErrInvalidTicker = errors.New("quotes: invalid ticker")
	// ErrStoreUnavailable indicates a backing-store I/O failure. The
	// engine does not retry inside the store; retries, if any, live in
	// the caller (C6's processor loop never retries within a tick).
	ErrStoreUnavailable = errors.New("quotes: store unavailable")
	// ErrNotFound indicates a ticker has no latest quote, or a derived
	// slot (metrics/levels/behaviors) has no value, distinct from an empty
	// value.
	ErrNotFound = errors.New("quotes: not found")
)

// Slot names the derived-data families C1 keeps alongside raw quotes.
type Slot string

const (
	SlotMetrics10s  Slot = "metrics:10s"
	SlotMetrics60s  Slot = "metrics:60s"
	SlotMetrics5min Slot = "metrics:5min"
	SlotBehaviors   Slot = "behaviors"
	SlotLevelsBid   Slot = "levels:bid"
	SlotLevelsAsk   Slot = "levels:ask"
)

// Store is the ordered-set + hashmap abstraction C1 exposes. Concrete
// realizations may be in-memory, a sorted-set-capable KV service (Redis),
// or an RPC shim fronting one (spec.md §6); every other component
// consumes only this interface.
type Store interface {
	// Append inserts a quote, O(log n) by timestamp score, overwriting an
	// equal-timestamp entry. Single-writer-per-ticker (the publisher).
	Append(ctx context.Context, q Quote) error

	// Latest returns the most recent full quote for ticker, or
	// ErrNotFound if none exists.
	Latest(ctx context.Context, ticker string) (Quote, error)

	// Range returns a time-ascending, finite sequence of quotes with
	// fromMS <= timestamp <= toMS.
	Range(ctx context.Context, ticker string, fromMS, toMS int64) (Window, error)

	// Prune removes quotes older than olderThanMS. Idempotent.
	Prune(ctx context.Context, ticker string, olderThanMS int64) error

	// Tickers returns the set of tickers with at least one stored quote.
	Tickers(ctx context.Context) ([]string, error)

	// PutSlot writes a derived-data record for (ticker, slot), replacing
	// any previous value atomically, with the given TTL.
	PutSlot(ctx context.Context, ticker string, slot Slot, value []byte, ttl time.Duration) error

	// GetSlot reads a derived-data record, or ErrNotFound if absent or
	// expired.
	GetSlot(ctx context.Context, ticker string, slot Slot) ([]byte, error)

	// AppendPattern appends a serialized pattern record to the per-ticker
	// pattern log with the given TTL applied to the whole log.
	AppendPattern(ctx context.Context, ticker string, value []byte, timestampMS int64, ttl time.Duration) error

	// RangePatterns returns serialized pattern records for ticker with
	// fromMS <= timestamp <= toMS, time-ascending.
	RangePatterns(ctx context.Context, ticker string, fromMS, toMS int64) ([][]byte, error)

	// PrunePatterns removes pattern records older than olderThanMS.
	PrunePatterns(ctx context.Context, ticker string, olderThanMS int64) error

	// Close releases backing resources.
	Close() error
}
