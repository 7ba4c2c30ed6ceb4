package insights

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/model"
)

// CategoryAnnotator adds the predicted category tag to the product.
type CategoryAnnotator struct {
	catalog catalog.Client
}

func (a *CategoryAnnotator) ProcessAnnotation(ctx context.Context, insight *model.ProductInsight, data map[string]any, isVote bool) (model.AnnotationResult, error) {
	valueTag := insight.ValueTag
	userInput := false

	// The annotating user may correct the predicted category.
	if data != nil {
		override, ok := data["value_tag"].(string)
		if !ok || override == "" {
			return model.InvalidDataResult, nil
		}
		valueTag = override
		userInput = true
	}

	pid := insight.ProductID()
	product, err := a.catalog.GetProduct(ctx, pid, []string{"categories_tags"})
	if err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: fetch product for category")
	}
	if product == nil {
		return model.MissingProductResult, nil
	}

	// Adding an existing tag would create a no-op catalog edit; skip the
	// write and report success.
	if !product.HasCategory(valueTag) {
		comment := auditComment(fmt.Sprintf("Adding category '%s'", valueTag), insight.ID)
		if err := a.catalog.AddCategory(ctx, pid, valueTag, comment); err != nil {
			return model.AnnotationResult{}, eris.Wrap(err, "insights: add category")
		}
	}

	if userInput {
		insight.Data = map[string]any{
			"user_input":         true,
			"original_value_tag": insight.ValueTag,
		}
		insight.ValueTag = valueTag
		return model.UserInputUpdatedResult, nil
	}
	return model.UpdatedResult, nil
}
