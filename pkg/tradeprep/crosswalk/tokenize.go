package crosswalk

import (
	"strings"
	"unicode"
)

// MinKeywordLen is the shortest token length accepted as an index keyword.
const MinKeywordLen = 4

// Tokenizer splits titles into alphabetic tokens and filters keywords
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the given stopword list
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		stops[w] = struct{}{}
	}
	return &Tokenizer{stopwords: stops}
}

// Words returns the lowercased maximal runs of letters in text, in order.
// Digits and punctuation separate tokens and never appear inside one.
func (t *Tokenizer) Words(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) {
			current.WriteRune(unicode.ToLower(r))
			continue
		}
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// Keywords returns the tokens of text that qualify for the keyword index:
// longer than three characters and not a stopword. Order and duplicates are
// preserved.
func (t *Tokenizer) Keywords(text string) []string {
	words := t.Words(text)
	out := words[:0]
	for _, w := range words {
		if t.IsKeyword(w) {
			out = append(out, w)
		}
	}
	return out
}

// Terms returns the tokens of text used for similarity ranking: at least
// two characters and not a stopword.
func (t *Tokenizer) Terms(text string) []string {
	var out []string
	for _, w := range t.Words(text) {
		if len([]rune(w)) >= 2 && !t.IsStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// IsKeyword reports whether a lowercased token is indexable.
func (t *Tokenizer) IsKeyword(word string) bool {
	if len([]rune(word)) < MinKeywordLen {
		return false
	}
	return !t.IsStopword(word)
}

// IsStopword reports whether word is in the stopword list
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// DistinctWords returns the set of distinct tokens of text
func (t *Tokenizer) DistinctWords(text string) map[string]struct{} {
	words := t.Words(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
