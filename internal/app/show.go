package app

import (
	"context"
	"fmt"
	"os"

	"orderflow-engine/internal/query"
)

// Show runs analyze_order_flow for one ticker and prints the rendered
// document to stdout.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	doc := eng.Analyze(ctx, query.Request{
		Ticker:          opts.Ticker,
		History:         opts.History,
		IncludePatterns: opts.IncludePatterns,
	})

	body, err := doc.Render()
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}

	_, err = os.Stdout.Write(body)
	return err
}
