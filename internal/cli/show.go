package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"orderflow-engine/internal/app"
)

var (
	showTicker          string
	showHistory         string
	showIncludePatterns bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Run analyze_order_flow for one ticker and print the resulting document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showTicker == "" {
			return fmt.Errorf("--ticker must be provided")
		}

		opts := app.ShowOptions{
			Ticker:          showTicker,
			History:         showHistory,
			IncludePatterns: showIncludePatterns,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showTicker, "ticker", "", "Ticker symbol to analyze")
	showCmd.Flags().StringVar(&showHistory, "history", "300s", "History window, e.g. 300s, 5min, 1hr")
	showCmd.Flags().BoolVar(&showIncludePatterns, "include-patterns", false, "Include the detected_patterns block")
}
