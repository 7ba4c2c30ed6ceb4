package model

import "time"

// PredictionType classifies what a predictor detected.
type PredictionType string

const (
	PredictionTypeCategory             PredictionType = "category"
	PredictionTypeIngredientSpellcheck PredictionType = "ingredient_spellcheck"
	PredictionTypeImageOrientation     PredictionType = "image_orientation"
	PredictionTypeNutrientExtraction   PredictionType = "nutrient_extraction"
	PredictionTypeBrand                PredictionType = "brand"
	PredictionTypeNutrient             PredictionType = "nutrient"
	PredictionTypeNutrientMention      PredictionType = "nutrient_mention"
	PredictionTypeImageFlag            PredictionType = "image_flag"
	PredictionTypeNutritionTable       PredictionType = "nutrition_table"
	PredictionTypeProductWeight        PredictionType = "product_weight"
	PredictionTypeExpirationDate       PredictionType = "expiration_date"
	PredictionTypeImageLang            PredictionType = "image_lang"
)

// Prediction is a single raw detection emitted by a predictor for one
// product. Predictions are immutable once stored; reprocessing an image
// appends new rows instead of rewriting old ones.
type Prediction struct {
	ID                  string         `json:"id"`
	Barcode             string         `json:"barcode"`
	Flavor              Flavor         `json:"flavor"`
	Type                PredictionType `json:"type"`
	Value               string         `json:"value,omitempty"`
	ValueTag            string         `json:"value_tag,omitempty"`
	Data                map[string]any `json:"data,omitempty"`
	Confidence          *float64       `json:"confidence,omitempty"`
	Predictor           string         `json:"predictor,omitempty"`
	PredictorVersion    string         `json:"predictor_version,omitempty"`
	AutomaticProcessing bool           `json:"automatic_processing"`
	SourceImage         string         `json:"source_image,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// ProductID returns the catalog identity this prediction refers to.
func (p *Prediction) ProductID() ProductID {
	return ProductID{Barcode: p.Barcode, Flavor: p.Flavor}
}

// ImageID returns the numeric ID of the source image, or "" when the
// prediction is not image-bound.
func (p *Prediction) ImageID() string {
	return ImageIDFromPath(p.SourceImage)
}
