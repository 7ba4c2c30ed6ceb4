package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/pantrybase/insight-cli/internal/insights"
)

var processBatchSize int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Apply due automatic insights to the catalog",
	Long:  "Runs one pass over pending insights marked for automatic processing whose delay has elapsed. Per-insight failures are counted, not fatal; meant to be invoked from cron.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		batchSize := processBatchSize
		if batchSize <= 0 {
			batchSize = cfg.Engine.BatchSize
		}

		engine := insights.NewProcessor(st, insights.NewRegistry(initCatalog(), st), initNotifier(), batchSize)

		summary, err := engine.ProcessDueInsights(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	processCmd.Flags().IntVar(&processBatchSize, "batch-size", 0, "max insights per run (default from config)")
	rootCmd.AddCommand(processCmd)
}
