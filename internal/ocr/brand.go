package ocr

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/pantrybase/insight-cli/internal/model"
	"github.com/pantrybase/insight-cli/pkg/keywords"
)

const brandPredictorVersion = "1"

//go:embed data/brands.yaml
var brandsYAML []byte

var brandExtractor = mustBuildBrandExtractor(brandsYAML)

func mustBuildBrandExtractor(raw []byte) *keywords.Extractor {
	var entries []struct {
		Tag   string   `yaml:"tag"`
		Names []string `yaml:"names"`
	}
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		panic(eris.Wrap(err, "ocr: parse brand corpus"))
	}

	ex := keywords.NewExtractor()
	for _, e := range entries {
		if len(e.Names) == 0 {
			continue
		}
		tag := e.Tag
		if tag == "" {
			tag = NormalizeTag(e.Names[0])
		}
		for _, name := range e.Names {
			ex.Add(name, tag)
		}
	}
	return ex
}

// FindBrands matches the curated brand list against OCR text and emits
// one brand prediction per occurrence. Brand edits are too risky to
// apply unreviewed, so the predictions are never marked automatic.
func FindBrands(text string) []model.Prediction {
	matches := brandExtractor.Extract(text)
	if len(matches) == 0 {
		return nil
	}

	preds := make([]model.Prediction, 0, len(matches))
	for _, m := range matches {
		preds = append(preds, model.Prediction{
			Type:     model.PredictionTypeBrand,
			Value:    m.Keyword,
			ValueTag: m.Tag,
			Data: map[string]any{
				"text": text[m.Start:m.End],
				"span": []int{m.Start, m.End},
			},
			Predictor:        "curated-list",
			PredictorVersion: brandPredictorVersion,
		})
	}
	return preds
}
