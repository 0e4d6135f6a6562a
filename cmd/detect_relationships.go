package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polyscope/polyscope/internal/relationships"
)

//nolint:gochecknoglobals // Cobra boilerplate
var detectRelationshipsCmd = &cobra.Command{
	Use:   "detect-relationships",
	Short: "Propose relationships between stored markets",
	Long: `Runs text heuristics over active market questions and prints
relationship candidates (mutually exclusive groups, conditional pairs,
time sequences, and subsets). Candidates are only proposals; pass
--write to persist every printed candidate as a confirmed edge.`,
	RunE: runDetectRelationships,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(detectRelationshipsCmd)
	detectRelationshipsCmd.Flags().Bool("write", false, "Persist the detected candidates as confirmed edges")
}

func runDetectRelationships(cmd *cobra.Command, args []string) error {
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

	detector, err := relationships.NewDetector(&relationships.DetectorConfig{
		MinConfidence: cfg.RelationshipMinConfidence,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}

	svc, err := relationships.NewService(&relationships.ServiceConfig{
		Store:    store,
		Detector: detector,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create relationship service: %w", err)
	}

	candidates, err := svc.DetectCandidates(cmd.Context())
	if err != nil {
		return fmt.Errorf("detect candidates: %w", err)
	}
	if len(candidates) == 0 {
		fmt.Println("no relationship candidates found")
		return nil
	}

	write, _ := cmd.Flags().GetBool("write")
	for i, c := range candidates {
		fmt.Printf("%2d. %-20s conf=%.2f markets=%s", i+1, c.Kind, c.Confidence,
			strings.Join(c.MarketIDs, ","))
		if c.GroupID != "" {
			fmt.Printf(" group=%s", c.GroupID)
		}
		fmt.Printf("  (%s)\n", c.Reason)

		if write {
			if err := svc.Confirm(cmd.Context(), c); err != nil {
				return fmt.Errorf("confirm candidate %d: %w", i+1, err)
			}
		}
	}

	if write {
		fmt.Printf("persisted %d candidates\n", len(candidates))
	}
	return nil
}
