package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyscope/polyscope/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var slippageCmd = &cobra.Command{
	Use:   "slippage <token-id>",
	Short: "Estimate slippage against the stored order book",
	Long: `Walks the most recently stored full-depth order book for a token
with a dollar-denominated order and prints the fill estimate, including
how stale the book is.`,
	Args: cobra.ExactArgs(1),
	RunE: runSlippage,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(slippageCmd)
	slippageCmd.Flags().Float64("amount", 100, "Order size in dollars")
	slippageCmd.Flags().String("side", "buy", "Order side: buy walks asks, sell walks bids")
}

func runSlippage(cmd *cobra.Command, args []string) error {
	tokenID := args[0]
	amount, _ := cmd.Flags().GetFloat64("amount")
	side, _ := cmd.Flags().GetString("side")
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if side != "buy" && side != "sell" {
		return fmt.Errorf("side must be buy or sell")
	}

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	raw, err := store.LatestRaw(cmd.Context(), tokenID)
	if err != nil {
		return fmt.Errorf("load order book: %w", err)
	}

	ladder := raw.Asks
	if side == "sell" {
		ladder = raw.Bids
	}

	est := types.EstimateSlippage(ladder, amount, side)
	est.TokenID = tokenID
	est.SnapshotAgeSeconds = time.Since(raw.Timestamp).Seconds()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(est)
}
