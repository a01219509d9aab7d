package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"orderflow-engine/internal/quotes"
)

type recordingIngestor struct {
	mu   sync.Mutex
	got  []quotes.Quote
	fail bool
}

func (r *recordingIngestor) Ingest(ctx context.Context, q quotes.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.got = append(r.got, q)
	return nil
}

func (r *recordingIngestor) quotes() []quotes.Quote {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]quotes.Quote, len(r.got))
	copy(out, r.got)
	return out
}

func dialIngest(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestIngestServerDecodesAndNormalizesQuotes(t *testing.T) {
	rec := &recordingIngestor{}
	srv := httptest.NewServer(NewIngestServer(rec, zerolog.Nop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn := dialIngest(t, url)
	defer conn.Close()

	payload, err := json.Marshal(map[string]any{
		"ticker":       "spy",
		"timestamp_ms": time.Now().UnixMilli(),
		"bid_price":    "450.10",
		"ask_price":    "450.30",
		"bid_size":     5000,
		"ask_size":     2000,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.quotes()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got := rec.quotes()
	if len(got) != 1 {
		t.Fatalf("expected one ingested quote, got %d", len(got))
	}
	if got[0].Ticker != "SPY" {
		t.Fatalf("expected normalized ticker SPY, got %q", got[0].Ticker)
	}
}

func TestIngestServerDropsUnreadableFramesAndKeepsReading(t *testing.T) {
	rec := &recordingIngestor{}
	srv := httptest.NewServer(NewIngestServer(rec, zerolog.Nop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn := dialIngest(t, url)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"ticker":       "QQQ",
		"timestamp_ms": time.Now().UnixMilli(),
		"bid_price":    "350.00",
		"ask_price":    "350.05",
		"bid_size":     100,
		"ask_size":     100,
	})
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write valid: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.quotes()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got := rec.quotes()
	if len(got) != 1 || got[0].Ticker != "QQQ" {
		t.Fatalf("expected the garbage frame dropped and the valid one ingested, got %+v", got)
	}
}
