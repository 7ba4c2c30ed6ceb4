// Package insights applies annotation decisions to the product catalog
// and drives the automatic processing loop over due insights.
package insights

import (
	"context"
	"fmt"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/store"
)

// Annotator applies an accepted insight of one type to the catalog.
//
// Implementations may read the product, may mutate the in-memory insight
// (value tag, data), and must translate "product missing" or "recorded
// state no longer matches the catalog" into the typed results. Errors are
// reserved for failures that must roll the surrounding transaction back.
type Annotator interface {
	ProcessAnnotation(ctx context.Context, insight *model.ProductInsight, data map[string]any, isVote bool) (model.AnnotationResult, error)
}

// Registry maps insight types to their annotators. Types without an
// annotator can only be annotated by hand through the list/show flows.
type Registry struct {
	annotators map[model.InsightType]Annotator
}

// NewRegistry builds the static annotator set with its dependencies.
func NewRegistry(client catalog.Client, st store.Store) *Registry {
	return &Registry{
		annotators: map[model.InsightType]Annotator{
			model.InsightTypeCategory:             &CategoryAnnotator{catalog: client},
			model.InsightTypeIngredientSpellcheck: &IngredientSpellcheckAnnotator{catalog: client},
			model.InsightTypeImageOrientation:     &ImageOrientationAnnotator{catalog: client},
			model.InsightTypeNutrientExtraction:   &NutrientExtractionAnnotator{catalog: client, store: st},
		},
	}
}

// Get returns the annotator for an insight type.
func (r *Registry) Get(t model.InsightType) (Annotator, bool) {
	a, ok := r.annotators[t]
	return a, ok
}

// auditComment builds the edit comment recorded in the product history.
func auditComment(action, insightID string) string {
	return fmt.Sprintf("[insight-bot] %s, ID: %s (automated edit)", action, insightID)
}

// intValue reads an integer out of decoded JSON data, which carries
// numbers as float64.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
