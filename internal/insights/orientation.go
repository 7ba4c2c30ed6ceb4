package insights

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/pantrybase/insight-cli/internal/catalog"
	"github.com/pantrybase/insight-cli/internal/geometry"
	"github.com/pantrybase/insight-cli/internal/model"
)

// ImageOrientationAnnotator re-selects a display image with the
// predicted rotation applied, carrying any existing crop over into the
// rotated frame.
type ImageOrientationAnnotator struct {
	catalog catalog.Client
}

func (a *ImageOrientationAnnotator) ProcessAnnotation(ctx context.Context, insight *model.ProductInsight, data map[string]any, isVote bool) (model.AnnotationResult, error) {
	rotation, ok := intValue(insight.Data["rotation"])
	imageKey, _ := insight.DataString("image_key")
	imageRev, _ := insight.DataString("image_rev")
	if !ok || imageKey == "" {
		return model.InvalidDataResult, nil
	}

	sourceImageID := insight.ImageID()
	if sourceImageID == "" {
		return model.InvalidDataResult, nil
	}

	pid := insight.ProductID()
	product, err := a.catalog.GetProduct(ctx, pid, []string{"images"})
	if err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: fetch product for orientation")
	}
	if product == nil {
		return model.MissingProductResult, nil
	}

	// The selection must still point at the image (and revision) the
	// prediction was made on.
	selected, found := product.Image(imageKey)
	if !found || selected.ImgID.String() != sourceImageID || selected.Rev.String() != imageRev {
		return model.OutdatedDataResult, nil
	}

	var crop *geometry.BoundingBox
	if selected.Cropped() {
		raw, found := product.Image(sourceImageID)
		if !found {
			return model.OutdatedDataResult, nil
		}
		width, height, sized := raw.FullSize()
		if !sized {
			return model.OutdatedDataResult, nil
		}

		box := geometry.FromRelative([4]float64{
			selected.X1.Float64(), selected.Y1.Float64(),
			selected.X2.Float64(), selected.Y2.Float64(),
		}, width, height)
		rotated, err := box.Rotate(width, height, rotation)
		if err != nil {
			return model.AnnotationResult{}, eris.Wrap(err, "insights: rotate crop")
		}
		crop = &rotated
	}

	err = a.catalog.SelectRotateImage(ctx, pid, catalog.SelectRotateParams{
		ImageID:  sourceImageID,
		ImageKey: imageKey,
		Rotate:   rotation,
		Crop:     crop,
	})
	if err != nil {
		return model.AnnotationResult{}, eris.Wrap(err, "insights: select rotated image")
	}
	return model.UpdatedResult, nil
}
