package quotes

import "sort"

// Window is a contiguous, time-ascending slice of quotes for one ticker
// ending at "now". It is derived, never stored (spec.md §3).
type Window []Quote

// Dedup collapses duplicate timestamps to the last observed quote and
// guarantees the strictly non-decreasing timestamp invariant.
func Dedup(quotes []Quote) Window {
	if len(quotes) == 0 {
		return nil
	}
	sorted := make([]Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMS < sorted[j].TimestampMS
	})

	out := make([]Quote, 0, len(sorted))
	for _, q := range sorted {
		if len(out) > 0 && out[len(out)-1].TimestampMS == q.TimestampMS {
			out[len(out)-1] = q
			continue
		}
		out = append(out, q)
	}
	return out
}

// Tail returns the suffix of the window whose timestamps fall within the
// last d milliseconds of the window's final quote.
func (w Window) Tail(durationMS int64) Window {
	if len(w) == 0 {
		return nil
	}
	cutoff := w[len(w)-1].TimestampMS - durationMS
	idx := sort.Search(len(w), func(i int) bool {
		return w[i].TimestampMS >= cutoff
	})
	return w[idx:]
}

// DurationMS returns the span covered by the window in milliseconds.
func (w Window) DurationMS() int64 {
	if len(w) < 2 {
		return 0
	}
	return w[len(w)-1].TimestampMS - w[0].TimestampMS
}

// Last returns the most recent quote in the window, if any.
func (w Window) Last() (Quote, bool) {
	if len(w) == 0 {
		return Quote{}, false
	}
	return w[len(w)-1], true
}
