package snapshot

import "time"

// ErrorKind enumerates the six error kinds of spec.md §7.
type ErrorKind string

const (
	NoData           ErrorKind = "NoData"
	InvalidTicker    ErrorKind = "InvalidTicker"
	InvalidHistory   ErrorKind = "InvalidHistory"
	StoreUnavailable ErrorKind = "StoreUnavailable"
	Timeout          ErrorKind = "Timeout"
	InternalError    ErrorKind = "InternalError"
)

type errorSpec struct {
	message     string
	causes      []string
	suggestions []string
}

// errorCatalog gives each error kind a fixed message plus exactly three
// causes and three suggestions (spec.md §8 scenario 4).
var errorCatalog = map[ErrorKind]errorSpec{
	NoData: {
		message: "no quotes found for this ticker",
		causes: []string{
			"the ticker is not currently tracked by the order-flow engine",
			"the upstream publisher has not sent a quote for this ticker yet",
			"the ticker was evicted after a period of inactivity",
		},
		suggestions: []string{
			"verify the ticker symbol is correct",
			"confirm the upstream publisher is feeding this ticker",
			"retry once the publisher has sent at least one quote",
		},
	},
	InvalidTicker: {
		message: "ticker failed normalization",
		causes: []string{
			"the ticker contains characters outside A-Z and 0-9",
			"the ticker is empty or longer than 10 characters",
			"the ticker was not uppercased before being sent",
		},
		suggestions: []string{
			"use only uppercase letters and digits",
			"keep the ticker to 10 characters or fewer",
			"retry with a normalized ticker symbol",
		},
	},
	InvalidHistory: {
		message: "history token could not be parsed",
		causes: []string{
			"the history string has no recognized unit suffix",
			"the history string does not start with a positive integer",
			"the history string contains extra or misplaced characters",
		},
		suggestions: []string{
			`use a form like "300s", "5mins", or "1hr"`,
			"use only digits followed by s/sec/secs, m/min/mins, or h/hr/hrs",
			"omit history to fall back to the 5-minute default",
		},
	},
	StoreUnavailable: {
		message: "the backing quote store is unreachable",
		causes: []string{
			"the store backend is down or unreachable over the network",
			"the store connection pool is exhausted",
			"a transient network partition is in effect",
		},
		suggestions: []string{
			"retry the query after a short delay",
			"check the store backend's health",
			"confirm network connectivity between the engine and the store",
		},
	},
	Timeout: {
		message: "the query exceeded its deadline",
		causes: []string{
			"the backing store was slow to respond",
			"the requested history window required reading an unusually large range",
			"the engine is under heavier load than usual",
		},
		suggestions: []string{
			"retry the query",
			"narrow the requested history window",
			"check engine load and store latency",
		},
	},
	InternalError: {
		message: "an unexpected error occurred while deriving the snapshot",
		causes: []string{
			"a derivation step encountered an unhandled data shape",
			"a derived slot failed to decode",
			"an invariant the engine assumes was violated",
		},
		suggestions: []string{
			"retry the query",
			"report the error code to the engine operator",
			"check engine logs for the corresponding internal error",
		},
	},
}

// ErrorDocument builds the error-snapshot form of the document for kind,
// following spec.md §7: error="true" plus error_message, possible_causes,
// and suggestions children, never a stack trace.
func ErrorDocument(ticker string, kind ErrorKind, now time.Time) *Document {
	spec, ok := errorCatalog[kind]
	if !ok {
		spec = errorCatalog[InternalError]
		kind = InternalError
	}
	return &Document{
		Ticker:         ticker,
		Timestamp:      now.UTC().Format(time.RFC3339),
		Error:          "true",
		ErrorCode:      string(kind),
		ErrorMessage:   spec.message,
		PossibleCauses: &CauseList{Causes: spec.causes},
		Suggestions:    &SuggestionList{Suggestions: spec.suggestions},
	}
}
