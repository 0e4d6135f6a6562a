package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polyscope",
	Short: "Prediction market observability service",
	Long: `Polyscope watches Polymarket-style binary prediction markets. It
periodically collects market metadata, order book depth, and trades,
analyzes them for volume spikes, wide spreads, market-maker pullbacks,
and arbitrage across related markets, and serves the results over a
read-only HTTP API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Absence of a .env file is fine; the environment may carry
		// everything already.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
