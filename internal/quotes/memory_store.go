package quotes

import (
	"context"
	"sort"
	"sync"
	"time"
)

type slotEntry struct {
	value     []byte
	expiresAt time.Time
}

type patternEntry struct {
	timestampMS int64
	value       []byte
}

type tickerState struct {
	mu       sync.RWMutex
	quotes   []Quote // ascending by TimestampMS, unique timestamps
	slots    map[Slot]slotEntry
	patterns []patternEntry
}

func newTickerState() *tickerState {
	return &tickerState{slots: make(map[Slot]slotEntry)}
}

// MemoryStore is the default, in-memory realization of Store. Each
// ticker's state is independently locked so concurrent appends/derivations
// on different tickers never contend; the top-level lock only guards
// membership of the tracked-ticker map, never I/O (spec.md §5).
type MemoryStore struct {
	mu      sync.RWMutex
	tickers map[string]*tickerState
}

// NewMemoryStore constructs an empty in-memory Quote Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickers: make(map[string]*tickerState)}
}

func (s *MemoryStore) ticker(ticker string, create bool) *tickerState {
	s.mu.RLock()
	st, ok := s.tickers[ticker]
	s.mu.RUnlock()
	if ok || !create {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.tickers[ticker]; ok {
		return st
	}
	st = newTickerState()
	s.tickers[ticker] = st
	return st
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, q Quote) error {
	ticker, err := NormalizeTicker(q.Ticker)
	if err != nil {
		return err
	}
	q.Ticker = ticker

	st := s.ticker(ticker, true)
	st.mu.Lock()
	defer st.mu.Unlock()

	idx := sort.Search(len(st.quotes), func(i int) bool {
		return st.quotes[i].TimestampMS >= q.TimestampMS
	})
	switch {
	case idx < len(st.quotes) && st.quotes[idx].TimestampMS == q.TimestampMS:
		st.quotes[idx] = q
	case idx == len(st.quotes):
		st.quotes = append(st.quotes, q)
	default:
		st.quotes = append(st.quotes, Quote{})
		copy(st.quotes[idx+1:], st.quotes[idx:])
		st.quotes[idx] = q
	}
	return nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context, ticker string) (Quote, error) {
	st := s.ticker(ticker, false)
	if st == nil {
		return Quote{}, ErrNotFound
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if len(st.quotes) == 0 {
		return Quote{}, ErrNotFound
	}
	return st.quotes[len(st.quotes)-1], nil
}

// Range implements Store.
func (s *MemoryStore) Range(ctx context.Context, ticker string, fromMS, toMS int64) (Window, error) {
	st := s.ticker(ticker, false)
	if st == nil {
		return nil, nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()

	lo := sort.Search(len(st.quotes), func(i int) bool { return st.quotes[i].TimestampMS >= fromMS })
	hi := sort.Search(len(st.quotes), func(i int) bool { return st.quotes[i].TimestampMS > toMS })
	if lo >= hi {
		return nil, nil
	}
	out := make(Window, hi-lo)
	copy(out, st.quotes[lo:hi])
	return out, nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(ctx context.Context, ticker string, olderThanMS int64) error {
	st := s.ticker(ticker, false)
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	idx := sort.Search(len(st.quotes), func(i int) bool { return st.quotes[i].TimestampMS >= olderThanMS })
	if idx > 0 {
		st.quotes = append([]Quote(nil), st.quotes[idx:]...)
	}
	return nil
}

// Tickers implements Store.
func (s *MemoryStore) Tickers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tickers))
	for t, st := range s.tickers {
		st.mu.RLock()
		n := len(st.quotes)
		st.mu.RUnlock()
		if n > 0 {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

// PutSlot implements Store.
func (s *MemoryStore) PutSlot(ctx context.Context, ticker string, slot Slot, value []byte, ttl time.Duration) error {
	st := s.ticker(ticker, true)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.slots[slot] = slotEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// GetSlot implements Store.
func (s *MemoryStore) GetSlot(ctx context.Context, ticker string, slot Slot) ([]byte, error) {
	st := s.ticker(ticker, false)
	if st == nil {
		return nil, ErrNotFound
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	entry, ok := st.slots[slot]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// AppendPattern implements Store.
func (s *MemoryStore) AppendPattern(ctx context.Context, ticker string, value []byte, timestampMS int64, ttl time.Duration) error {
	st := s.ticker(ticker, true)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.patterns = append(st.patterns, patternEntry{timestampMS: timestampMS, value: value})
	sort.SliceStable(st.patterns, func(i, j int) bool { return st.patterns[i].timestampMS < st.patterns[j].timestampMS })
	cutoff := time.Now().Add(-ttl).UnixMilli()
	st.patterns = prunePatternSlice(st.patterns, cutoff)
	return nil
}

// RangePatterns implements Store.
func (s *MemoryStore) RangePatterns(ctx context.Context, ticker string, fromMS, toMS int64) ([][]byte, error) {
	st := s.ticker(ticker, false)
	if st == nil {
		return nil, nil
	}
	st.mu.RLock()
	defer st.mu.RUnlock()

	lo := sort.Search(len(st.patterns), func(i int) bool { return st.patterns[i].timestampMS >= fromMS })
	hi := sort.Search(len(st.patterns), func(i int) bool { return st.patterns[i].timestampMS > toMS })
	if lo >= hi {
		return nil, nil
	}
	out := make([][]byte, hi-lo)
	for i, p := range st.patterns[lo:hi] {
		out[i] = p.value
	}
	return out, nil
}

// PrunePatterns implements Store.
func (s *MemoryStore) PrunePatterns(ctx context.Context, ticker string, olderThanMS int64) error {
	st := s.ticker(ticker, false)
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.patterns = prunePatternSlice(st.patterns, olderThanMS)
	return nil
}

func prunePatternSlice(patterns []patternEntry, olderThanMS int64) []patternEntry {
	idx := sort.Search(len(patterns), func(i int) bool { return patterns[i].timestampMS >= olderThanMS })
	if idx == 0 {
		return patterns
	}
	return append([]patternEntry(nil), patterns[idx:]...)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
