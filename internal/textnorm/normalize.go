package textnorm

import (
	"strings"
	"unicode"
)

// Normalizer lowercases text, strips punctuation and digits, and drops
// stopwords. It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	stopwords map[string]struct{}
}

func NewNormalizer(stopwords []string) *Normalizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return &Normalizer{stopwords: set}
}

func (n *Normalizer) IsStopword(w string) bool {
	_, ok := n.stopwords[w]
	return ok
}

// Normalize may return "" when nothing but stopwords and punctuation remain.
func (n *Normalizer) Normalize(text string) string {
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		// word characters and whitespace survive; decimal digits go too
		if unicode.IsDigit(r) {
			continue
		}
		if isWordRune(r) || isSpace(r) {
			b.WriteRune(r)
		}
	}

	words := strings.FieldsFunc(b.String(), isSpace)
	kept := words[:0]
	for _, w := range words {
		if n.IsStopword(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isSpace also treats the ASCII file, group, record and unit separators
// (U+001C..U+001F) as whitespace, like Python's str.split.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
