package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muniwatch/muniwatch/internal/app"
	"github.com/muniwatch/muniwatch/internal/monitor"
	"github.com/muniwatch/muniwatch/internal/repository"
)

func newExportCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Writes the stored mentions to stdout as JSON",
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

			mentions, err := application.Repository.List(cmd.Context(), repository.Filter{Status: status})
			if err != nil {
				return fmt.Errorf("list mentions: %w", err)
			}

			out := struct {
				ExportedAt string            `json:"exported_at"`
				Count      int               `json:"count"`
				Mentions   []monitor.Mention `json:"mentions"`
			}{
				ExportedAt: time.Now().Format(time.RFC3339),
				Count:      len(mentions),
				Mentions:   mentions,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode export: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only export mentions with this status")
	return cmd
}
