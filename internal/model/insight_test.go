package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageIDFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"canonical path", "/325/342/7901/24/3.jpg", "3"},
		{"double digit", "/325/342/7901/24/12.jpg", "12"},
		{"png extension", "/123/456/789/2.png", "2"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ImageIDFromPath(tt.source))
		})
	}
}

func TestParseFlavor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Flavor
	}{
		{"food", FlavorFood},
		{"beauty", FlavorBeauty},
		{"petfood", FlavorPetfood},
		{"products", FlavorProducts},
		{"", FlavorFood},
		{"unknown", FlavorFood},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseFlavor(tt.in))
		})
	}
}

func TestProductIDString(t *testing.T) {
	t.Parallel()

	pid := ProductID{Barcode: "3254327901245", Flavor: FlavorFood}
	assert.Equal(t, "food:3254327901245", pid.String())
}

func TestInsightAnnotated(t *testing.T) {
	t.Parallel()

	insight := &ProductInsight{}
	assert.False(t, insight.Annotated())

	annotation := AnnotationAccept
	insight.Annotation = &annotation
	assert.True(t, insight.Annotated())
}

func TestInsightDataString(t *testing.T) {
	t.Parallel()

	insight := &ProductInsight{Data: map[string]any{
		"image_key": "front_fr",
		"rotation":  90,
	}}

	v, ok := insight.DataString("image_key")
	assert.True(t, ok)
	assert.Equal(t, "front_fr", v)

	_, ok = insight.DataString("rotation")
	assert.False(t, ok, "non-string value")

	_, ok = insight.DataString("missing")
	assert.False(t, ok)
}

func TestImportResultAdd(t *testing.T) {
	t.Parallel()

	r := ImportResult{PredictionsCreated: 2, InsightsCreated: 1}
	r.Add(ImportResult{
		PredictionsCreated: 3,
		InsightsCreated:    2,
		InsightsUpdated:    1,
		InsightsDeleted:    4,
		Errors:             []string{"boom"},
	})

	assert.Equal(t, 5, r.PredictionsCreated)
	assert.Equal(t, 3, r.InsightsCreated)
	assert.Equal(t, 1, r.InsightsUpdated)
	assert.Equal(t, 4, r.InsightsDeleted)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

func TestIsHumanFlagLabel(t *testing.T) {
	t.Parallel()

	assert.True(t, IsHumanFlagLabel("face"))
	assert.True(t, IsHumanFlagLabel("facial expression"))
	assert.False(t, IsHumanFlagLabel("dog"))
	assert.False(t, IsHumanFlagLabel(""))
}
