package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"orderflow-engine/internal/app"
)

var (
	backfillCSVPath string
	backfillDryRun  bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay a CSV of historical quotes into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillCSVPath == "" {
			return fmt.Errorf("--csv must be provided")
		}

		opts := app.BackfillOptions{
			CSVPath: backfillCSVPath,
			DryRun:  backfillDryRun,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillCSVPath, "csv", "", "Path to a CSV of ticker,timestamp_ms,bid_price,ask_price,bid_size,ask_size rows")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Parse and count records without ingesting them")
}
