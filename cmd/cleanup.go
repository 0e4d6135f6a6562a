package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyscope/polyscope/internal/retention"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run one retention sweep and reclaim storage",
	RunE:  runCleanup,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
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

	sweeper, err := retention.New(&retention.Config{
		Store:  store,
		Policy: retention.PolicyFromDays(cfg.DataRetentionDays, cfg.AlertRetentionDays),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create sweeper: %w", err)
	}

	removed, err := sweeper.Run(cmd.Context(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("run sweep: %w", err)
	}

	fmt.Printf("removed or expired %d rows\n", removed)
	return nil
}
