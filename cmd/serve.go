package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyscope/polyscope/internal/app"
	"github.com/polyscope/polyscope/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the observability service",
	Long: `Starts the full service: the HTTP read API plus, when
ENABLE_SCHEDULER is set, the collection and analysis pipeline:
1. Sync active markets and order book snapshots
2. Collect trades (when API credentials are configured)
3. Run the analyzers and persist deduplicated alerts
4. Aggregate volume windows and sweep expired data`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
