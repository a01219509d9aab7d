package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"orderflow-engine/internal/app"
)

var statusTicker string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print processor-loop operational counters for a ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusTicker == "" {
			return fmt.Errorf("--ticker must be provided")
		}
		return getApp().Status(cmd.Context(), app.StatusOptions{Ticker: statusTicker})
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusTicker, "ticker", "", "Ticker symbol to report status for")
}
