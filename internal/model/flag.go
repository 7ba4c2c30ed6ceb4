package model

// humanFlagLabels are image-flag labels that indicate a visible person.
// Flagged images matching one of these are reported to moderators with
// reason "human".
var humanFlagLabels = map[string]struct{}{
	"face":              {},
	"head":              {},
	"selfie":            {},
	"hair":              {},
	"forehead":          {},
	"chin":              {},
	"cheek":             {},
	"tooth":             {},
	"eyebrow":           {},
	"ear":               {},
	"neck":              {},
	"nose":              {},
	"facial expression": {},
	"child":             {},
	"baby":              {},
	"human":             {},
}

// IsHumanFlagLabel reports whether an image-flag label denotes a person.
func IsHumanFlagLabel(label string) bool {
	_, ok := humanFlagLabels[label]
	return ok
}
