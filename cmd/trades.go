package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tradesCmd = &cobra.Command{
	Use:   "trades <token-id>",
	Short: "Fetch recent trades for one token from the upstream feed",
	Long: `Queries the authenticated per-token trades endpoint live and prints
the result. Requires POLYMARKET_API_KEY, POLYMARKET_SECRET,
POLYMARKET_PASSPHRASE, and POLYMARKET_WALLET_ADDRESS.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrades,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().Int("limit", 100, "Maximum number of trades to fetch")
}

func runTrades(cmd *cobra.Command, args []string) error {
	tokenID := args[0]
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.HasAPICredentials() {
		return fmt.Errorf("per-token trades require API credentials")
	}

	client, err := openClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	trades, err := client.FetchTokenTrades(cmd.Context(), tokenID, limit)
	if err != nil {
		return fmt.Errorf("fetch trades: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(trades)
}
