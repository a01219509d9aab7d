// Package query implements the Query Coordinator (C8): history-string
// parsing, ticker normalization, and conversion of read failures into
// the error-snapshot kinds of spec.md §7, wrapping the Snapshot
// Formatter (C7).
package query

import (
	"regexp"
	"strconv"
	"time"
)

const (
	// DefaultHistorySeconds is used when the caller omits history.
	DefaultHistorySeconds = 300
	// MinHistorySeconds and MaxHistorySeconds bound the clamp range.
	MinHistorySeconds = 5
	MaxHistorySeconds = 3600
)

var historyPattern = regexp.MustCompile(`^([0-9]+)(s|sec|secs|m|min|mins|h|hr|hrs)$`)

var unitSeconds = map[string]int{
	"s": 1, "sec": 1, "secs": 1,
	"m": 60, "min": 60, "mins": 60,
	"h": 3600, "hr": 3600, "hrs": 3600,
}

// ErrInvalidHistory is returned by ParseHistory for any token it cannot
// parse (spec.md §4.8).
type ErrInvalidHistory struct {
	Token string
}

func (e ErrInvalidHistory) Error() string {
	return "query: invalid history token " + strconv.Quote(e.Token)
}

// ParseHistory parses a history token — a positive integer followed by
// one of s/sec/secs, m/min/mins, h/hr/hrs — into a duration in seconds,
// clamped to [MinHistorySeconds, MaxHistorySeconds]. An empty token
// parses as DefaultHistorySeconds.
func ParseHistory(token string) (int, error) {
	if token == "" {
		return DefaultHistorySeconds, nil
	}

	m := historyPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, ErrInvalidHistory{Token: token}
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, ErrInvalidHistory{Token: token}
	}

	seconds := n * unitSeconds[m[2]]
	return clampHistory(seconds), nil
}

func clampHistory(seconds int) int {
	if seconds < MinHistorySeconds {
		return MinHistorySeconds
	}
	if seconds > MaxHistorySeconds {
		return MaxHistorySeconds
	}
	return seconds
}

// HistoryDuration is a convenience wrapper returning a time.Duration.
func HistoryDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
