package main

import (
	"encoding/json"
	"os"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pantrybase/insight-cli/internal/importer"
	"github.com/pantrybase/insight-cli/internal/model"
)

var (
	importFilePath   string
	importPredictors []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Extract predictions from OCR documents and import them as insights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importFilePath)
		if err != nil {
			return eris.Wrap(err, "open documents file")
		}
		defer f.Close() //nolint:errcheck

		docs, err := importer.ReadDocuments(f)
		if err != nil {
			return err
		}

		preds, err := importer.ExtractPredictions(ctx, docs, runtime.NumCPU())
		if err != nil {
			return err
		}
		preds = filterByPredictor(preds, importPredictors)

		zap.L().Info("extracted predictions",
			zap.Int("documents", len(docs)),
			zap.Int("predictions", len(preds)),
		)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		result, err := importer.ImportPredictions(ctx, st, preds, importer.Options{
			AutomaticDelay: time.Duration(cfg.Engine.ProcessDelayMinutes) * time.Minute,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// filterByPredictor keeps only predictions produced by one of the named
// predictors. An empty list keeps everything.
func filterByPredictor(preds []model.Prediction, predictors []string) []model.Prediction {
	if len(predictors) == 0 {
		return preds
	}
	keep := make(map[string]bool, len(predictors))
	for _, p := range predictors {
		keep[p] = true
	}
	out := preds[:0]
	for _, p := range preds {
		if keep[p.Predictor] {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to OCR documents file, one JSON object per line (required)")
	importCmd.Flags().StringSliceVar(&importPredictors, "predictor", nil, "only import predictions from these predictors (regex, curated-list)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
