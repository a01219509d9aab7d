package transport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"orderflow-engine/internal/query"
	"orderflow-engine/internal/snapshot"
)

// Analyzer is the subset of Engine the query server depends on.
type Analyzer interface {
	Analyze(ctx context.Context, req query.Request) *snapshot.Document
}

// QueryServer implements analyze_order_flow over HTTP, rendering the
// result as XML regardless of success or error (spec.md §7).
type QueryServer struct {
	engine Analyzer
	logger zerolog.Logger
}

// NewQueryServer constructs a QueryServer over engine.
func NewQueryServer(engine Analyzer, logger zerolog.Logger) *QueryServer {
	return &QueryServer{engine: engine, logger: logger.With().Str("component", "query_http").Logger()}
}

// ServeHTTP reads ticker, history, and include_patterns query
// parameters, runs Analyze, and writes the rendered document.
func (s *QueryServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := query.Request{
		Ticker:          q.Get("ticker"),
		History:         q.Get("history"),
		IncludePatterns: parseBool(q.Get("include_patterns")),
	}

	doc := s.engine.Analyze(r.Context(), req)

	body, err := doc.Render()
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", req.Ticker).Msg("failed to render document")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if doc.Error != "" {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.Write(body)
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return v
}
