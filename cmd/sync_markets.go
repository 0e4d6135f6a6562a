package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyscope/polyscope/internal/collector"
)

//nolint:gochecknoglobals // Cobra boilerplate
var syncMarketsCmd = &cobra.Command{
	Use:   "sync-markets",
	Short: "Fetch active markets and replace the stored set",
	RunE:  runSyncMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(syncMarketsCmd)
}

func runSyncMarkets(cmd *cobra.Command, args []string) error {
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

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	client, err := openClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	mc, err := collector.NewMarketCollector(&collector.MarketCollectorConfig{
		Fetcher: client,
		Store:   store,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create market collector: %w", err)
	}

	synced, tradeable, err := mc.Collect(context.Background())
	if err != nil {
		return fmt.Errorf("sync markets: %w", err)
	}

	fmt.Printf("synced %d markets (%d tradeable)\n", synced, tradeable)
	return nil
}
