package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches word-like sequences: letters, digits, underscores.
var tokenRegex = regexp.MustCompile(`[\pL\pN_]+`)

// Tokenizer turns document and query text into index terms. Both sides
// of the index must use the same tokenizer or scores are meaningless.
type Tokenizer struct {
	minLength int
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the given minimum term length
// and stop-word list.
func NewTokenizer(minLength int, stopWords []string) *Tokenizer {
	if minLength <= 0 {
		minLength = 3
	}
	return &Tokenizer{
		minLength: minLength,
		stopWords: BuildStopWordMap(stopWords),
	}
}

// Tokenize lowercases text, extracts word sequences, and drops terms
// shorter than the minimum length or present in the stop-word list.
func (t *Tokenizer) Tokenize(text string) []string {
	words := tokenRegex.FindAllString(strings.ToLower(text), -1)

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < t.minLength {
			continue
		}
		if _, stop := t.stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
