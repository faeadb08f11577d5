package normalize

import (
	"strings"
	"unicode"
)

// Language identifies a supported corpus language.
type Language string

const (
	// English is the primary language: detection defaults to it and its
	// tokens are lemmatized.
	English Language = "english"
	// Spanish is the secondary language: its tokens are stemmed.
	Spanish Language = "spanish"
)

// Marker words counted by DetectLanguage. They are deliberately short and
// frequent so a few sentences are enough to decide.
var (
	englishMarkers = map[string]struct{}{
		"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "a": {}, "is": {},
		"that": {}, "for": {}, "on": {}, "with": {}, "by": {}, "as": {},
	}
	spanishMarkers = map[string]struct{}{
		"el": {}, "la": {}, "los": {}, "las": {}, "de": {}, "que": {}, "y": {},
		"en": {}, "un": {}, "una": {}, "es": {}, "por": {}, "con": {},
	}
)

// DetectLanguage counts whole-word occurrences of each language's marker
// words and returns the language with the higher count. Empty text and ties
// return English.
func DetectLanguage(text string) Language {
	var en, es int
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := englishMarkers[w]; ok {
			en++
		}
		if _, ok := spanishMarkers[w]; ok {
			es++
		}
	}
	if es > en {
		return Spanish
	}
	return English
}
