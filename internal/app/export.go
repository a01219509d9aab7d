package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"orderflow-engine/internal/quotes"
)

// Export writes a ticker's raw quote history to CSV, downsampled to at
// most opts.MaxPoints rows.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" {
		return errors.New("--csv must be provided")
	}
	if opts.Ticker == "" {
		return errors.New("--ticker must be provided")
	}

	ticker, err := quotes.NormalizeTicker(opts.Ticker)
	if err != nil {
		return err
	}
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-1 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("--from must be before --to")
	}

	window, err := eng.Store().Range(ctx, ticker, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return err
	}
	if len(window) == 0 {
		a.Logger.Info().Str("ticker", ticker).Msg("no quotes found for export window")
		return nil
	}

	downsampled := downsampleQuotes(window, opts.MaxPoints)
	a.Logger.Info().Int("total", len(window)).Int("exported", len(downsampled)).Msg("exporting quotes")

	return writeQuotesCSV(opts.CSVPath, downsampled)
}

func downsampleQuotes(w quotes.Window, max int) quotes.Window {
	if max <= 0 || len(w) <= max {
		return w
	}

	result := make(quotes.Window, 0, max)
	step := float64(len(w)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(w) {
			idx = len(w) - 1
		}
		result = append(result, w[idx])
	}
	return result
}

func writeQuotesCSV(path string, w quotes.Window) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp_ms", "bid_price", "ask_price", "bid_size", "ask_size", "mid_price", "spread"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, q := range w {
		record := []string{
			strconv.FormatInt(q.TimestampMS, 10),
			q.BidPrice.String(),
			q.AskPrice.String(),
			strconv.FormatInt(q.BidSize, 10),
			strconv.FormatInt(q.AskSize, 10),
			q.MidPrice().String(),
			q.Spread().String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
