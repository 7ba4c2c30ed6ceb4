package insights

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/geometry"
	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/internal/store"
)

// NutrientExtractionAnnotator writes extracted nutrient values to the
// product and, when possible, selects the source image as the nutrition
// photo for the product language.
type NutrientExtractionAnnotator struct {
	catalog catalog.Client
	store   store.Store
}

func (a *NutrientExtractionAnnotator) ProcessAnnotation(ctx context.Context, insight *model.ProductInsight, data map[string]any, isVote bool) (model.AnnotationResult, error) {
	params, ok := nutrimentParams(insight.Data)
	if !ok {
		return model.InvalidDataResult, nil
	}

	pid := insight.ProductID()
	product, err := a.catalog.GetProduct(ctx, pid, []string{"images", "lang", "code"})
	if err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: fetch product for nutrients")
	}
	if product == nil {
		return model.MissingProductResult, nil
	}

	comment := auditComment("Adding nutrient values", insight.ID)
	if err := a.catalog.UpdateProduct(ctx, pid, params, comment); err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: update nutrients")
	}

	if err := a.selectNutritionImage(ctx, insight, product); err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: select nutrition image")
	}
	return model.UpdatedResult, nil
}

// nutrimentParams flattens the insight's nutrients map into catalog
// form fields (nutriment_<name> and nutriment_<name>_unit). Keys are
// emitted in sorted order.
func nutrimentParams(data map[string]any) (map[string]string, bool) {
	nutrients, ok := data["nutrients"].(map[string]any)
	if !ok || len(nutrients) == 0 {
		return nil, false
	}

	names := make([]string, 0, len(nutrients))
	for name := range nutrients {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make(map[string]string, 2*len(nutrients))
	for _, name := range names {
		entry, ok := nutrients[name].(map[string]any)
		if !ok {
			return nil, false
		}
		value := stringValue(entry["value"])
		if value == "" {
			return nil, false
		}
		params["nutriment_"+name] = value
		if unit := stringValue(entry["unit"]); unit != "" {
			params["nutriment_"+name+"_unit"] = unit
		}
	}
	return params, true
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%g", s)
	case int:
		return fmt.Sprintf("%d", s)
	}
	return ""
}

// selectNutritionImage selects the insight's source image as the
// nutrition photo for the product language, reusing the latest
// orientation and nutrition-table predictions on the image for rotation
// and crop. No-ops when the selection would be redundant or when the
// required metadata is missing.
func (a *NutrientExtractionAnnotator) selectNutritionImage(ctx context.Context, insight *model.ProductInsight, product *catalog.Product) error {
	if len(product.Images) == 0 || product.Lang == "" {
		return nil
	}
	imageID := insight.ImageID()
	if imageID == "" {
		return nil
	}
	raw, found := product.Image(imageID)
	if !found {
		return nil
	}
	width, height, sized := raw.FullSize()
	if !sized {
		return nil
	}

	imageKey := "nutrition_" + product.Lang
	if selected, found := product.Image(imageKey); found && selected.ImgID.String() == imageID {
		return nil
	}

	rotation := 0
	orientation, err := a.store.LatestPrediction(ctx, model.PredictionTypeImageOrientation, insight.SourceImage)
	if err != nil {
		return eris.Wrap(err, "latest orientation prediction")
	}
	if orientation != nil {
		if r, ok := intValue(orientation.Data["rotation"]); ok {
			rotation = r
		}
	}

	var crop *geometry.BoundingBox
	detection, err := a.store.LatestPrediction(ctx, model.PredictionTypeNutritionTable, insight.SourceImage)
	if err != nil {
		return eris.Wrap(err, "latest nutrition table prediction")
	}
	if detection != nil {
		if rel, ok := bestDetectionBox(detection.Data); ok {
			box := geometry.FromRelative(rel, width, height)
			rotated, err := box.Rotate(width, height, rotation)
			if err != nil {
				return eris.Wrap(err, "rotate nutrition table crop")
			}
			crop = &rotated
		}
	}

	return a.catalog.SelectRotateImage(ctx, insight.ProductID(), catalog.SelectRotateParams{
		ImageID:  imageID,
		ImageKey: imageKey,
		Rotate:   rotation,
		Crop:     crop,
	})
}

// bestDetectionBox returns the bounding box of the highest-confidence
// detected object, as [x_min, y_min, x_max, y_max] fractions.
func bestDetectionBox(data map[string]any) ([4]float64, bool) {
	objects, ok := data["objects"].([]any)
	if !ok {
		return [4]float64{}, false
	}

	best := -1.0
	var bestBox [4]float64
	for _, raw := range objects {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		score, ok := obj["score"].(float64)
		if !ok || score <= best {
			continue
		}
		coords, ok := obj["bounding_box"].([]any)
		if !ok || len(coords) != 4 {
			continue
		}
		var box [4]float64
		valid := true
		for i, c := range coords {
			f, ok := c.(float64)
			if !ok {
				valid = false
				break
			}
			box[i] = f
		}
		if !valid {
			continue
		}
		best = score
		bestBox = box
	}
	return bestBox, best >= 0
}
