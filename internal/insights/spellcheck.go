package insights

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/model"
)

// IngredientSpellcheckAnnotator replaces the product ingredient list
// with the corrected text. The insight value tag holds the language of
// the corrected list.
type IngredientSpellcheckAnnotator struct {
	catalog catalog.Client
}

func (a *IngredientSpellcheckAnnotator) ProcessAnnotation(ctx context.Context, insight *model.ProductInsight, data map[string]any, isVote bool) (model.AnnotationResult, error) {
	correction, _ := insight.DataString("correction")

	// An annotating user may submit an amended correction; the payload
	// must then be exactly {"annotation": <non-empty string>}.
	if data != nil {
		if len(data) != 1 {
			return model.InvalidDataResult, nil
		}
		amended, ok := data["annotation"].(string)
		if !ok || amended == "" {
			return model.InvalidDataResult, nil
		}
		correction = amended
		if insight.Data == nil {
			insight.Data = map[string]any{}
		}
		insight.Data["annotation"] = amended
	}

	if correction == "" {
		return model.InvalidDataResult, nil
	}

	pid := insight.ProductID()
	product, err := a.catalog.GetProduct(ctx, pid, []string{"code"})
	if err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: fetch product for spellcheck")
	}
	if product == nil {
		return model.MissingProductResult, nil
	}

	comment := auditComment("Ingredient spellcheck correction", insight.ID)
	if err := a.catalog.SaveIngredients(ctx, pid, correction, insight.ValueTag, comment); err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: save ingredients")
	}
	return model.UpdatedResult, nil
}
