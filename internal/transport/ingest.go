// Package transport exposes the Engine over the wire: a websocket
// ingest endpoint for upstream quote publishers, and an HTTP endpoint
// for analyze_order_flow queries.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"orderflow-engine/internal/quotes"
)

// Ingestor is the subset of Engine the ingest server depends on.
type Ingestor interface {
	Ingest(ctx context.Context, q quotes.Quote) error
}

// wireQuote is the JSON shape accepted on the ingest socket, one object
// per message.
type wireQuote struct {
	Ticker      string          `json:"ticker"`
	TimestampMS int64           `json:"timestamp_ms"`
	BidPrice    decimal.Decimal `json:"bid_price"`
	AskPrice    decimal.Decimal `json:"ask_price"`
	BidSize     int64           `json:"bid_size"`
	AskSize     int64           `json:"ask_size"`
}

var upgrader = websocket.Upgrader{
	HandshakeTimeout:  10 * time.Second,
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// IngestServer accepts one websocket connection per upstream publisher
// and feeds every decoded quote to an Ingestor.
type IngestServer struct {
	engine Ingestor
	logger zerolog.Logger
}

// NewIngestServer constructs an IngestServer over engine.
func NewIngestServer(engine Ingestor, logger zerolog.Logger) *IngestServer {
	return &IngestServer{engine: engine, logger: logger.With().Str("component", "ingest").Logger()}
}

// ServeHTTP upgrades the connection and reads quote messages until the
// client disconnects, a read fails, or no frame arrives for 60 seconds.
// Frames that do not decode as a quote are logged and skipped.
func (s *IngestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(8192)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ctx := r.Context()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var wq wireQuote
		if err := json.Unmarshal(payload, &wq); err != nil {
			s.logger.Warn().Err(err).Msg("dropping unreadable quote frame")
			continue
		}

		q := quotes.Quote{
			Ticker:      wq.Ticker,
			TimestampMS: wq.TimestampMS,
			BidPrice:    wq.BidPrice,
			AskPrice:    wq.AskPrice,
			BidSize:     wq.BidSize,
			AskSize:     wq.AskSize,
		}
		ticker, err := quotes.NormalizeTicker(q.Ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", q.Ticker).Msg("dropping quote with invalid ticker")
			continue
		}
		q.Ticker = ticker

		if err := s.engine.Ingest(ctx, q); err != nil {
			s.logger.Warn().Err(err).Str("ticker", q.Ticker).Msg("ingest rejected quote")
		}
	}
}
