package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"orderflow-engine/internal/quotes"
	"orderflow-engine/internal/snapshot"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func seedQuote(t *testing.T, store quotes.Store, ticker string, ts time.Time) {
	t.Helper()
	err := store.Append(context.Background(), quotes.Quote{
		Ticker:      ticker,
		TimestampMS: ts.UnixMilli(),
		BidPrice:    dec(t, "100.00"),
		AskPrice:    dec(t, "100.05"),
		BidSize:     5000,
		AskSize:     3000,
	})
	if err != nil {
		t.Fatalf("seed quote: %v", err)
	}
}

func TestAnalyzeReturnsNoDataForUntrackedTicker(t *testing.T) {
	store := quotes.NewMemoryStore()
	c := New(store, zerolog.Nop())

	doc := c.Analyze(context.Background(), Request{Ticker: "SPY"})
	if doc.Error != "true" || doc.ErrorCode != string(snapshot.NoData) {
		t.Fatalf("expected NoData error document, got %+v", doc)
	}
}

func TestAnalyzeReturnsInvalidTickerForBadSymbol(t *testing.T) {
	store := quotes.NewMemoryStore()
	c := New(store, zerolog.Nop())

	doc := c.Analyze(context.Background(), Request{Ticker: "bad ticker!!"})
	if doc.ErrorCode != string(snapshot.InvalidTicker) {
		t.Fatalf("expected InvalidTicker, got %+v", doc)
	}
}

func TestAnalyzeReturnsInvalidHistoryForBadToken(t *testing.T) {
	store := quotes.NewMemoryStore()
	c := New(store, zerolog.Nop())
	seedQuote(t, store, "SPY", time.Now().UTC())

	doc := c.Analyze(context.Background(), Request{Ticker: "SPY", History: "notatime"})
	if doc.ErrorCode != string(snapshot.InvalidHistory) {
		t.Fatalf("expected InvalidHistory, got %+v", doc)
	}
}

func TestAnalyzeReturnsTimeoutForCancelledContext(t *testing.T) {
	store := quotes.NewMemoryStore()
	c := New(store, zerolog.Nop())
	seedQuote(t, store, "SPY", time.Now().UTC())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := c.Analyze(ctx, Request{Ticker: "SPY"})
	if doc.ErrorCode != string(snapshot.Timeout) {
		t.Fatalf("expected Timeout, got %+v", doc)
	}
}

func TestAnalyzeHappyPathBuildsDocument(t *testing.T) {
	store := quotes.NewMemoryStore()
	c := New(store, zerolog.Nop())
	now := time.Now().UTC()
	seedQuote(t, store, "SPY", now.Add(-5*time.Second))
	seedQuote(t, store, "SPY", now)

	doc := c.Analyze(context.Background(), Request{Ticker: "spy", History: "300s"})
	if doc.Error != "" {
		t.Fatalf("expected happy-path document, got error %+v", doc)
	}
	if doc.Ticker != "SPY" {
		t.Fatalf("expected normalized ticker SPY, got %q", doc.Ticker)
	}
	if doc.DataSummary == nil || doc.DataSummary.QuoteCount != 2 {
		t.Fatalf("data_summary = %+v", doc.DataSummary)
	}
}

// failingStore wraps a MemoryStore but makes Latest fail with a plain
// error that only repeats ErrStoreUnavailable's text, to exercise
// Analyze's error classification path.
type failingStore struct {
	quotes.Store
}

func (f failingStore) Latest(ctx context.Context, ticker string) (quotes.Quote, error) {
	return quotes.Quote{}, errors.New("wrapped: " + quotes.ErrStoreUnavailable.Error())
}

func TestAnalyzeClassifiesUnrecognizedStoreFailureAsInternalError(t *testing.T) {
	base := quotes.NewMemoryStore()
	c := New(failingStore{Store: base}, zerolog.Nop())

	doc := c.Analyze(context.Background(), Request{Ticker: "SPY"})
	// The wrapped error does not satisfy errors.Is(ErrStoreUnavailable)
	// since it's a plain string wrap, so this should fall through to
	// InternalError rather than StoreUnavailable.
	if doc.ErrorCode != string(snapshot.InternalError) {
		t.Fatalf("expected InternalError for an unclassified store failure, got %+v", doc)
	}
}

type wrappedUnavailableStore struct {
	quotes.Store
}

func (w wrappedUnavailableStore) Latest(ctx context.Context, ticker string) (quotes.Quote, error) {
	return quotes.Quote{}, quotes.ErrStoreUnavailable
}

func TestAnalyzeClassifiesStoreUnavailableViaErrorsIs(t *testing.T) {
	base := quotes.NewMemoryStore()
	c := New(wrappedUnavailableStore{Store: base}, zerolog.Nop())

	doc := c.Analyze(context.Background(), Request{Ticker: "SPY"})
	if doc.ErrorCode != string(snapshot.StoreUnavailable) {
		t.Fatalf("expected StoreUnavailable, got %+v", doc)
	}
}
