// Package ocr extracts predictions from plain OCR text: nutrient values
// and mentions via per-nutrient regex corpora, brands via keyword span
// extraction. The corpora are embedded YAML files under data/.
package ocr

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTag canonicalizes a display name into a tag: lowercase,
// accents folded, runs of non-alphanumeric runes collapsed into a
// single dash ("Nestlé & Co" -> "nestle-co").
func NormalizeTag(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// boundedMatch reports whether text[start:end] sits on word boundaries.
// The regexp package has no lookaround, so the check runs on the match
// indices instead.
func boundedMatch(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
