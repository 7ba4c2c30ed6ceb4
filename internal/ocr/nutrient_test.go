package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrybase/insight-cli/internal/model"
)

func TestFindNutrientValues(t *testing.T) {
	text := "Valeurs nutritionnelles pour 100 g\n" +
		"diesel 10 g\n" +
		"Énergie : 549 kJ\n" +
		"Calories : 131 kcal\n" +
		"Matières grasses 3,5 g\n" +
		"dont saturés 1,2 g\n" +
		"Glucides 17 g\n" +
		"dont sucres 15 g\n" +
		"Protéines 7,3g\n" +
		"Sel : 0,18 g"

	preds := FindNutrientValues(text)
	require.Len(t, preds, 1)

	p := preds[0]
	assert.Equal(t, model.PredictionTypeNutrient, p.Type)
	assert.Equal(t, "regex", p.Predictor)
	assert.Equal(t, "1", p.PredictorVersion)
	assert.False(t, p.AutomaticProcessing)

	nutrients, ok := p.Data["nutrients"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"energy_kj": map[string]any{
			"raw":      "Énergie : 549 kJ",
			"nutrient": "energy",
			"value":    "549",
			"unit":     "kj",
		},
		"energy_kcal": map[string]any{
			"raw":      "Calories : 131 kcal",
			"nutrient": "energy",
			"value":    "131",
			"unit":     "kcal",
		},
		"fat_g": map[string]any{
			"raw":      "Matières grasses 3,5 g",
			"nutrient": "fat",
			"value":    "3.5",
			"unit":     "g",
		},
		"saturated_fat_g": map[string]any{
			"raw":      "dont saturés 1,2 g",
			"nutrient": "saturated_fat",
			"value":    "1.2",
			"unit":     "g",
		},
		"carbohydrate_g": map[string]any{
			"raw":      "Glucides 17 g",
			"nutrient": "carbohydrate",
			"value":    "17",
			"unit":     "g",
		},
		"sugar_g": map[string]any{
			"raw":      "sucres 15 g",
			"nutrient": "sugar",
			"value":    "15",
			"unit":     "g",
		},
		"protein_g": map[string]any{
			"raw":      "Protéines 7,3g",
			"nutrient": "protein",
			"value":    "7.3",
			"unit":     "g",
		},
		"salt_g": map[string]any{
			"raw":      "Sel : 0,18 g",
			"nutrient": "salt",
			"value":    "0.18",
			"unit":     "g",
		},
	}, nutrients)
}

func TestFindNutrientValues_FirstHitWins(t *testing.T) {
	preds := FindNutrientValues("sel 1,2 g, sel 0,3 g et sel 2 mg")
	require.Len(t, preds, 1)

	nutrients, ok := preds[0].Data["nutrients"].(map[string]any)
	require.True(t, ok)
	require.Len(t, nutrients, 2)

	saltG, ok := nutrients["salt_g"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.2", saltG["value"])

	saltMg, ok := nutrients["salt_mg"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2", saltMg["value"])
}

func TestFindNutrientValues_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty text", text: ""},
		{name: "mention without value", text: "ingrédients: eau, sucre"},
		{name: "mention inside a word", text: "diesel 10 g"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, FindNutrientValues(tt.text))
		})
	}
}

func TestFindNutrientMentions(t *testing.T) {
	text := "Valeurs nutritionnelles\nÉnergie\nZucker"

	preds := FindNutrientMentions(text, nil)
	require.Len(t, preds, 1)

	p := preds[0]
	assert.Equal(t, model.PredictionTypeNutrientMention, p.Type)
	assert.Equal(t, "regex", p.Predictor)
	assert.Equal(t, "1", p.PredictorVersion)

	mentions, ok := p.Data["mentions"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"nutrition_values": []any{map[string]any{
			"raw":       "Valeurs nutritionnelles",
			"span":      []int{0, 23},
			"languages": []string{"fr"},
		}},
		"energy": []any{map[string]any{
			"raw":       "Énergie",
			"span":      []int{24, 32},
			"languages": []string{"fr"},
		}},
		"sugar": []any{map[string]any{
			"raw":       "Zucker",
			"span":      []int{33, 39},
			"languages": []string{"de"},
		}},
	}, mentions)
}

func TestFindNutrientMentions_LanguageFilter(t *testing.T) {
	text := "Valeurs nutritionnelles\nÉnergie\nZucker"

	preds := FindNutrientMentions(text, []string{"fr"})
	require.Len(t, preds, 1)

	mentions, ok := preds[0].Data["mentions"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, mentions, 2)
	assert.Contains(t, mentions, "nutrition_values")
	assert.Contains(t, mentions, "energy")

	assert.Nil(t, FindNutrientMentions(text, []string{"en"}))
}

func TestFindNutrientMentions_OrderedSpans(t *testing.T) {
	preds := FindNutrientMentions("sucre et dont sucres", nil)
	require.Len(t, preds, 1)

	mentions, ok := preds[0].Data["mentions"].(map[string]any)
	require.True(t, ok)
	require.Len(t, mentions, 1)
	assert.Equal(t, []any{
		map[string]any{
			"raw":       "sucre",
			"span":      []int{0, 5},
			"languages": []string{"fr"},
		},
		map[string]any{
			"raw":       "sucres",
			"span":      []int{14, 20},
			"languages": []string{"fr"},
		},
	}, mentions["sugar"])
}

func TestFindNutrientMentions_BareValues(t *testing.T) {
	preds := FindNutrientMentions("Énergie 549 kJ", nil)
	require.Len(t, preds, 1)

	mentions, ok := preds[0].Data["mentions"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"energy": []any{map[string]any{
			"raw":       "Énergie",
			"span":      []int{0, 8},
			"languages": []string{"fr"},
		}},
		"nutrient_value": []any{map[string]any{
			"raw":  "549 kJ",
			"span": []int{9, 15},
		}},
	}, mentions)
}

func TestFindNutrientMentions_NoMatch(t *testing.T) {
	assert.Nil(t, FindNutrientMentions("", nil))
	assert.Nil(t, FindNutrientMentions("rien à signaler", nil))
}
