package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"orderflow-engine/internal/quotes"
)

// Backfill replays a CSV of historical quotes (ticker,timestamp_ms,
// bid_price,ask_price,bid_size,ask_size) into the store through
// Engine.Ingest. It runs no processor ticks, so it does not refresh the
// derived slots; those are recomputed by the next processor tick.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.CSVPath == "" {
		return errors.New("--csv must be provided")
	}

	file, err := os.Open(opts.CSVPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.CSVPath, err)
	}
	defer file.Close()

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil { // header
		return fmt.Errorf("read header: %w", err)
	}

	var loaded, failed int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}

		q, err := parseQuoteRecord(record)
		if err != nil {
			failed++
			a.Logger.Warn().Err(err).Strs("record", record).Msg("skipping unreadable backfill record")
			continue
		}

		if opts.DryRun {
			loaded++
			continue
		}

		if err := eng.Ingest(ctx, q); err != nil {
			failed++
			a.Logger.Warn().Err(err).Str("ticker", q.Ticker).Msg("backfill ingest rejected quote")
			continue
		}
		loaded++
	}

	a.Logger.Info().Int("loaded", loaded).Int("failed", failed).Bool("dry_run", opts.DryRun).Msg("backfill complete")
	if failed > 0 && loaded == 0 {
		return errors.New("all backfill records failed")
	}
	return nil
}

func parseQuoteRecord(record []string) (quotes.Quote, error) {
	if len(record) != 6 {
		return quotes.Quote{}, fmt.Errorf("expected 6 columns, got %d", len(record))
	}

	ticker, err := quotes.NormalizeTicker(record[0])
	if err != nil {
		return quotes.Quote{}, err
	}
	tsMS, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return quotes.Quote{}, fmt.Errorf("timestamp_ms: %w", err)
	}
	bidPrice, err := decimal.NewFromString(record[2])
	if err != nil {
		return quotes.Quote{}, fmt.Errorf("bid_price: %w", err)
	}
	askPrice, err := decimal.NewFromString(record[3])
	if err != nil {
		return quotes.Quote{}, fmt.Errorf("ask_price: %w", err)
	}
	bidSize, err := strconv.ParseInt(record[4], 10, 64)
	if err != nil {
		return quotes.Quote{}, fmt.Errorf("bid_size: %w", err)
	}
	askSize, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return quotes.Quote{}, fmt.Errorf("ask_size: %w", err)
	}

	return quotes.Quote{
		Ticker:      ticker,
		TimestampMS: tsMS,
		BidPrice:    bidPrice,
		AskPrice:    askPrice,
		BidSize:     bidSize,
		AskSize:     askSize,
	}, nil
}
