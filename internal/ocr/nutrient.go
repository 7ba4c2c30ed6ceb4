package ocr

import (
	_ "embed"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/pantrybase/insight-cli/internal/model"
)

// Bump when a corpus or regex change should invalidate stored
// predictions and their pending insights.
const nutrientPredictorVersion = "1"

//go:embed data/nutrient_mentions.yaml
var nutrientMentionsYAML []byte

// nutrientUnits lists the units accepted per nutrient by the value
// regexes. Nutrients without an entry are mention-only.
var nutrientUnits = map[string][]string{
	"energy":        {"kj", "kcal"},
	"saturated_fat": {"g"},
	"fat":           {"g"},
	"sugar":         {"g"},
	"carbohydrate":  {"g"},
	"protein":       {"g"},
	"salt":          {"g", "mg"},
	"fiber":         {"g"},
}

type mentionEntry struct {
	re        *regexp.Regexp
	languages []string
}

var (
	nutrientMentions = mustParseMentions(nutrientMentionsYAML)
	valueRegexes     = buildValueRegexes(nutrientMentions)
)

func mustParseMentions(raw []byte) map[string][]mentionEntry {
	var table map[string][]struct {
		Pattern   string   `yaml:"pattern"`
		Languages []string `yaml:"languages"`
	}
	if err := yaml.Unmarshal(raw, &table); err != nil {
		panic(eris.Wrap(err, "ocr: parse nutrient mention corpus"))
	}

	out := make(map[string][]mentionEntry, len(table))
	for nutrient, entries := range table {
		compiled := make([]mentionEntry, 0, len(entries))
		for _, e := range entries {
			compiled = append(compiled, mentionEntry{
				re:        regexp.MustCompile(`(?i)` + e.Pattern),
				languages: e.Languages,
			})
		}
		out[nutrient] = compiled
	}
	return out
}

// buildValueRegexes combines each nutrient's mention patterns with its
// accepted units into one value-capturing regex, e.g. for salt:
// "sel : 0,18 g" -> value "0,18", unit "g".
func buildValueRegexes(mentions map[string][]mentionEntry) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(nutrientUnits))
	for nutrient, units := range nutrientUnits {
		entries, ok := mentions[nutrient]
		if !ok {
			continue
		}
		patterns := make([]string, 0, len(entries))
		for _, e := range entries {
			patterns = append(patterns, e.re.String())
		}
		out[nutrient] = regexp.MustCompile(
			`(?i)(?:` + strings.Join(patterns, "|") + `) ?(?:[:-] ?)?` +
				`(?P<value>[0-9]+[,.]?[0-9]*) ?(?P<unit>` + strings.Join(units, "|") + `)`,
		)
	}
	return out
}

// FindNutrientValues extracts "<mention> <value> <unit>" occurrences
// from OCR text. All hits are collected into a single nutrient
// prediction, keyed "<nutrient>_<unit>"; for repeated hits on the same
// key the leftmost occurrence wins.
func FindNutrientValues(text string) []model.Prediction {
	nutrients := map[string]any{}
	for nutrient, re := range valueRegexes {
		valueIdx, unitIdx := re.SubexpIndex("value"), re.SubexpIndex("unit")
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			if !boundedMatch(text, idx[0], idx[1]) {
				continue
			}
			value := strings.ReplaceAll(text[idx[2*valueIdx]:idx[2*valueIdx+1]], ",", ".")
			unit := strings.ToLower(text[idx[2*unitIdx]:idx[2*unitIdx+1]])

			key := nutrient + "_" + unit
			if _, seen := nutrients[key]; seen {
				continue
			}
			nutrients[key] = map[string]any{
				"raw":      text[idx[0]:idx[1]],
				"nutrient": nutrient,
				"value":    value,
				"unit":     unit,
			}
		}
	}

	if len(nutrients) == 0 {
		return nil
	}
	return []model.Prediction{{
		Type:             model.PredictionTypeNutrient,
		Data:             map[string]any{"nutrients": nutrients},
		Predictor:        "regex",
		PredictorVersion: nutrientPredictorVersion,
	}}
}

// nutrientValueRe matches bare "<number> <unit>" tokens. They carry no
// language and are exempt from the languages filter.
var nutrientValueRe = regexp.MustCompile(`(?i)[0-9]+[,.]?[0-9]* ?(?:g|kj|kcal)`)

// FindNutrientMentions extracts bare nutrient mentions ("énergie",
// "zucker") from OCR text. When languages is non-empty, only patterns
// for those languages are tried. All mentions are collected into one
// nutrient_mention prediction with their byte spans; bare value tokens
// land under the nutrient_value key.
func FindNutrientMentions(text string, languages []string) []model.Prediction {
	mentions := map[string]any{}
	for nutrient, entries := range nutrientMentions {
		var found []any
		seen := map[[2]int]bool{}
		for _, entry := range entries {
			if len(languages) > 0 && !intersects(entry.languages, languages) {
				continue
			}
			for _, idx := range entry.re.FindAllStringIndex(text, -1) {
				if !boundedMatch(text, idx[0], idx[1]) {
					continue
				}
				span := [2]int{idx[0], idx[1]}
				if seen[span] {
					continue
				}
				seen[span] = true
				found = append(found, map[string]any{
					"raw":       text[idx[0]:idx[1]],
					"span":      []int{idx[0], idx[1]},
					"languages": entry.languages,
				})
			}
		}
		if len(found) > 0 {
			sort.Slice(found, func(i, j int) bool {
				a := found[i].(map[string]any)["span"].([]int)
				b := found[j].(map[string]any)["span"].([]int)
				return a[0] < b[0] || (a[0] == b[0] && a[1] < b[1])
			})
			mentions[nutrient] = found
		}
	}

	var values []any
	for _, idx := range nutrientValueRe.FindAllStringIndex(text, -1) {
		if !boundedMatch(text, idx[0], idx[1]) {
			continue
		}
		values = append(values, map[string]any{
			"raw":  text[idx[0]:idx[1]],
			"span": []int{idx[0], idx[1]},
		})
	}
	if len(values) > 0 {
		mentions["nutrient_value"] = values
	}

	if len(mentions) == 0 {
		return nil
	}
	return []model.Prediction{{
		Type:             model.PredictionTypeNutrientMention,
		Data:             map[string]any{"mentions": mentions},
		Predictor:        "regex",
		PredictorVersion: nutrientPredictorVersion,
	}}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
