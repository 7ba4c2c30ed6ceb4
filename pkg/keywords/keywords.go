// Package keywords provides whole-word keyword extraction with byte
// spans. Keywords are stored in a rune trie and matched case
// insensitively; at each position the longest keyword wins and matches
// never overlap.
package keywords

import (
	"strings"
	"unicode"
)

// Match is one keyword occurrence in the scanned text. Start and End are
// byte offsets into the original text.
type Match struct {
	Keyword string
	Tag     string
	Start   int
	End     int
}

type node struct {
	children map[rune]*node
	terminal bool
	keyword  string
	tag      string
}

// Extractor matches a fixed keyword set against text. Not safe for
// concurrent mutation; build it once, then share freely.
type Extractor struct {
	root *node
	size int
}

func NewExtractor() *Extractor {
	return &Extractor{root: &node{}}
}

// Add registers a keyword with its tag payload. Adding the same keyword
// twice replaces the tag. Empty keywords are ignored.
func (e *Extractor) Add(keyword, tag string) {
	trimmed := strings.TrimSpace(keyword)
	if trimmed == "" {
		return
	}

	n := e.root
	for _, r := range trimmed {
		r = unicode.ToLower(r)
		child, ok := n.children[r]
		if !ok {
			if n.children == nil {
				n.children = make(map[rune]*node)
			}
			child = &node{}
			n.children[r] = child
		}
		n = child
	}
	if !n.terminal {
		e.size++
	}
	n.terminal = true
	n.keyword = trimmed
	n.tag = tag
}

// Len returns the number of distinct keywords registered.
func (e *Extractor) Len() int {
	return e.size
}

// Extract returns all keyword occurrences in text, left to right. A
// keyword only matches when delimited by word boundaries on both sides,
// so "nestle" does not match inside "unnestled". Keywords may contain
// boundary runes ("coca-cola"); the boundary rule applies at the edges
// of the match only.
func (e *Extractor) Extract(text string) []Match {
	if e.size == 0 || text == "" {
		return nil
	}

	runes := make([]rune, 0, len(text))
	offs := make([]int, 0, len(text))
	for i, r := range text {
		runes = append(runes, r)
		offs = append(offs, i)
	}
	byteEnd := func(i int) int {
		if i < len(runes) {
			return offs[i]
		}
		return len(text)
	}

	var matches []Match
	i := 0
	for i < len(runes) {
		// Advance to the next word start; the loop below always leaves i
		// on a boundary, so a word rune here begins a word.
		if !wordRune(runes[i]) {
			i++
			continue
		}

		n := e.root
		best := -1
		var bestNode *node
		for j := i; j < len(runes); j++ {
			child, ok := n.children[unicode.ToLower(runes[j])]
			if !ok {
				break
			}
			n = child
			if n.terminal && (j+1 == len(runes) || !wordRune(runes[j+1])) {
				best = j + 1
				bestNode = n
			}
		}

		if best >= 0 {
			matches = append(matches, Match{
				Keyword: bestNode.keyword,
				Tag:     bestNode.tag,
				Start:   offs[i],
				End:     byteEnd(best),
			})
			i = best
			continue
		}
		for i < len(runes) && wordRune(runes[i]) {
			i++
		}
	}
	return matches
}

func wordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
