// Package importer persists freshly extracted predictions and
// materializes pending insights from them, with predictor-version
// invalidation and duplicate suppression.
package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/store"
)

// DefaultAutomaticDelay postpones automatic application of imported
// insights, leaving a window for review before the bot edits.
const DefaultAutomaticDelay = 10 * time.Minute

// Options tunes an import run.
type Options struct {
	// AutomaticDelay overrides DefaultAutomaticDelay when positive.
	AutomaticDelay time.Duration
}

func (o Options) delay() time.Duration {
	if o.AutomaticDelay > 0 {
		return o.AutomaticDelay
	}
	return DefaultAutomaticDelay
}

// insightTypes maps the prediction types that materialize as insights.
// Everything else is stored as a prediction only.
var insightTypes = map[model.PredictionType]model.InsightType{
	model.PredictionTypeCategory:             model.InsightTypeCategory,
	model.PredictionTypeIngredientSpellcheck: model.InsightTypeIngredientSpellcheck,
	model.PredictionTypeImageOrientation:     model.InsightTypeImageOrientation,
	model.PredictionTypeNutrientExtraction:   model.InsightTypeNutrientExtraction,
	model.PredictionTypeBrand:                model.InsightTypeBrand,
	model.PredictionTypeNutrient:             model.InsightTypeNutrient,
}

// ImportPredictions stores preds and derives pending insights from the
// insight-bearing ones. A failure on one product's batch is recorded in
// the result's Errors and does not abort the others.
func ImportPredictions(ctx context.Context, st store.Store, preds []model.Prediction, opts Options) (model.ImportResult, error) {
	log := zap.L().With(zap.String("component", "importer"))

	var result model.ImportResult
	if len(preds) == 0 {
		return result, nil
	}

	groups, order := groupByProduct(preds)
	log.Info("importing predictions",
		zap.Int("predictions", len(preds)),
		zap.Int("products", len(order)),
	)

	for _, pid := range order {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		partial, err := importProduct(ctx, st, groups[pid], opts)
		result.Add(partial)
		if err != nil {
			log.Warn("product import failed",
				zap.String("product", pid.String()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, pid.String()+": "+err.Error())
		}
	}

	log.Info("import complete",
		zap.Int("predictions_created", result.PredictionsCreated),
		zap.Int("insights_created", result.InsightsCreated),
		zap.Int("insights_updated", result.InsightsUpdated),
		zap.Int("insights_deleted", result.InsightsDeleted),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// groupByProduct buckets predictions by product, keeping first-seen
// order so runs are deterministic.
func groupByProduct(preds []model.Prediction) (map[model.ProductID][]model.Prediction, []model.ProductID) {
	groups := map[model.ProductID][]model.Prediction{}
	var order []model.ProductID
	for _, p := range preds {
		pid := p.ProductID()
		if _, ok := groups[pid]; !ok {
			order = append(order, pid)
		}
		groups[pid] = append(groups[pid], p)
	}
	return groups, order
}

func importProduct(ctx context.Context, st store.Store, preds []model.Prediction, opts Options) (model.ImportResult, error) {
	var result model.ImportResult

	n, err := st.CreatePredictions(ctx, preds)
	if err != nil {
		return result, eris.Wrap(err, "importer: create predictions")
	}
	result.PredictionsCreated += n

	// One invalidation pass per insight type: pending zero-vote
	// insights from an older predictor version are superseded.
	invalidated := map[model.InsightType]bool{}

	for _, p := range preds {
		itype, ok := insightTypes[p.Type]
		if !ok {
			continue
		}

		if !invalidated[itype] {
			deleted, err := st.DeleteStaleInsights(ctx, p.Barcode, p.Flavor, itype, p.PredictorVersion)
			if err != nil {
				return result, eris.Wrapf(err, "importer: delete stale %s insights", itype)
			}
			result.InsightsDeleted += deleted
			invalidated[itype] = true
		}

		exists, err := st.PendingInsightExists(ctx, p.Barcode, p.Flavor, itype, p.ValueTag)
		if err != nil {
			return result, eris.Wrapf(err, "importer: check pending %s insight", itype)
		}
		if exists {
			result.InsightsUpdated++
			continue
		}

		if err := st.CreateInsight(ctx, insightFromPrediction(p, itype, opts)); err != nil {
			return result, eris.Wrapf(err, "importer: create %s insight", itype)
		}
		result.InsightsCreated++
	}
	return result, nil
}

func insightFromPrediction(p model.Prediction, itype model.InsightType, opts Options) *model.ProductInsight {
	insight := &model.ProductInsight{
		Barcode:             p.Barcode,
		Flavor:              p.Flavor,
		Type:                itype,
		Value:               p.Value,
		ValueTag:            p.ValueTag,
		Data:                p.Data,
		SourceImage:         p.SourceImage,
		AutomaticProcessing: p.AutomaticProcessing,
		Predictor:           p.Predictor,
		PredictorVersion:    p.PredictorVersion,
	}
	if p.AutomaticProcessing {
		after := time.Now().UTC().Add(opts.delay())
		insight.ProcessAfter = &after
	}
	return insight
}
