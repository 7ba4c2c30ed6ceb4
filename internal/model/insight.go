package model

import "time"

// InsightType classifies the catalog edit an insight proposes.
type InsightType string

const (
	InsightTypeCategory             InsightType = "category"
	InsightTypeIngredientSpellcheck InsightType = "ingredient_spellcheck"
	InsightTypeImageOrientation     InsightType = "image_orientation"
	InsightTypeNutrientExtraction   InsightType = "nutrient_extraction"
	InsightTypeBrand                InsightType = "brand"
	InsightTypeNutrient             InsightType = "nutrient"
	InsightTypeProductWeight        InsightType = "product_weight"
	InsightTypeExpirationDate       InsightType = "expiration_date"
)

// Annotation values recorded on an insight once a decision is made.
const (
	AnnotationRefuse = -1
	AnnotationSkip   = 0
	AnnotationAccept = 1
)

// ProductInsight is a durable candidate edit derived from one or more
// predictions. A pending insight has neither Annotation nor CompletedAt;
// an annotated one has both. No other combination is valid.
type ProductInsight struct {
	ID                  string         `json:"id"`
	Barcode             string         `json:"barcode"`
	Flavor              Flavor         `json:"flavor"`
	Type                InsightType    `json:"type"`
	Value               string         `json:"value,omitempty"`
	ValueTag            string         `json:"value_tag,omitempty"`
	Data                map[string]any `json:"data,omitempty"`
	SourceImage         string         `json:"source_image,omitempty"`
	Annotation          *int           `json:"annotation,omitempty"`
	NVotes              int            `json:"n_votes"`
	Username            string         `json:"username,omitempty"`
	AutomaticProcessing bool           `json:"automatic_processing"`
	ProcessAfter        *time.Time     `json:"process_after,omitempty"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	Predictor           string         `json:"predictor,omitempty"`
	PredictorVersion    string         `json:"predictor_version,omitempty"`
	Lc                  []string       `json:"lc,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// ProductID returns the catalog identity this insight applies to.
func (i *ProductInsight) ProductID() ProductID {
	return ProductID{Barcode: i.Barcode, Flavor: i.Flavor}
}

// ImageID returns the numeric ID of the source image, or "" when the
// insight is not image-bound.
func (i *ProductInsight) ImageID() string {
	return ImageIDFromPath(i.SourceImage)
}

// Annotated reports whether a decision has been recorded.
func (i *ProductInsight) Annotated() bool {
	return i.Annotation != nil
}

// DataString returns insight.Data[key] when it holds a string.
func (i *ProductInsight) DataString(key string) (string, bool) {
	v, ok := i.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
