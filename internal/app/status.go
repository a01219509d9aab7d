package app

import (
	"context"
	"fmt"

	"orderflow-engine/internal/quotes"
)

// StatusOptions configure the status command.
type StatusOptions struct {
	Ticker string
}

// Status prints the processor loop's operational counters for one
// ticker (process count, errors, patterns detected, last process
// time) — diagnostics only, no analyze_order_flow document involved.
func (a *App) Status(ctx context.Context, opts StatusOptions) error {
	ticker, err := quotes.NormalizeTicker(opts.Ticker)
	if err != nil {
		return err
	}

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	s := eng.Stats(ticker)
	fmt.Printf("ticker: %s\n", ticker)
	fmt.Printf("process_count: %d\n", s.ProcessCount)
	fmt.Printf("error_count: %d\n", s.ErrorCount)
	fmt.Printf("patterns_detected: %d\n", s.PatternsDetected)
	fmt.Printf("last_process_time_ms: %d\n", s.LastProcessTimeMS)
	return nil
}
