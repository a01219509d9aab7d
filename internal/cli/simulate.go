package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"orderflow-engine/internal/app"
)

var (
	simulateScenario string
	simulateTicker   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Seed a canned order-flow scenario and print the resulting document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateScenario == "" {
			return fmt.Errorf("--scenario must be provided")
		}

		opts := app.SimulateOptions{
			Scenario: simulateScenario,
			Ticker:   simulateTicker,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateScenario, "scenario", "", "Scenario to seed: rising_bid, absorption, or sweep")
	simulateCmd.Flags().StringVar(&simulateTicker, "ticker", "SIM", "Ticker symbol to use for the simulation")
}
