package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/app"
)

func newCrawlCmd() *cobra.Command {
	var (
		queries []string
		maxPer  int
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one ingestion pass from the terminal",
		Long: `Invokes the configured search collaborator once, deduplicates the
results against the stored mentions by URL, persists the merged
collection and records a crawl-log entry.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer application.Close()

			summary, err := application.Orchestrator.Run(cmd.Context(), queries, maxPer)
			if err != nil {
				return fmt.Errorf("run crawl: %w", err)
			}
			logger.Info("crawl finished",
				zap.Int("total_found", summary.TotalFound),
				zap.Int("new_unique", summary.NewMentions),
				zap.Int("duplicates", summary.Duplicates),
			)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&queries, "query", nil, "search query (repeatable; defaults from config)")
	cmd.Flags().IntVar(&maxPer, "max-per-query", 0, "max results per query (defaults from config)")
	return cmd
}
