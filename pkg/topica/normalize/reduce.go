package normalize

import (
	"fmt"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/kljensen/snowball"
)

// Lemmatizer maps an English word to its dictionary form.
type Lemmatizer interface {
	Lemma(word string) (string, error)
}

// LemmatizerKind names the lemmatizer a Normalizer settled on.
type LemmatizerKind string

const (
	LemmatizerDictionary LemmatizerKind = "dictionary"
	LemmatizerRules      LemmatizerKind = "rules"
)

// dictLemmatizer looks words up in the golem English dictionary.
type dictLemmatizer struct {
	lem *golem.Lemmatizer
}

// NewDictionaryLemmatizer loads the English lemma dictionary.
// Loading is expensive; build one and share it between normalizers.
func NewDictionaryLemmatizer() (Lemmatizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load lemma dictionary: %w", err)
	}
	return &dictLemmatizer{lem: lem}, nil
}

func (d *dictLemmatizer) Lemma(word string) (string, error) {
	lemma := d.lem.Lemma(word)
	if lemma == "" {
		return "", fmt.Errorf("no lemma for %q", word)
	}
	return lemma, nil
}

// ruleLemmatizer strips regular noun inflections with a small exception
// table. It is the fallback when no dictionary can be loaded.
type ruleLemmatizer struct{}

var irregularNouns = map[string]string{
	"children":   "child",
	"men":        "man",
	"women":      "woman",
	"feet":       "foot",
	"teeth":      "tooth",
	"geese":      "goose",
	"mice":       "mouse",
	"criteria":   "criterion",
	"phenomena":  "phenomenon",
	"analyses":   "analysis",
	"crises":     "crisis",
	"theses":     "thesis",
	"hypotheses": "hypothesis",
	"indices":    "index",
}

// invariantEndings mark words that end in "s" without being plurals.
var invariantEndings = []string{"ss", "us", "is", "ous", "ics"}

func (ruleLemmatizer) Lemma(word string) (string, error) {
	w := strings.ToLower(word)
	if lemma, ok := irregularNouns[w]; ok {
		return lemma, nil
	}
	if len(w) <= 3 {
		return w, nil
	}
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y", nil
	case strings.HasSuffix(w, "sses"),
		strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "zes"),
		strings.HasSuffix(w, "ches"),
		strings.HasSuffix(w, "shes"):
		return w[:len(w)-2], nil
	}
	for _, end := range invariantEndings {
		if strings.HasSuffix(w, end) {
			return w, nil
		}
	}
	if strings.HasSuffix(w, "s") {
		return w[:len(w)-1], nil
	}
	return w, nil
}

// spanishStem applies the Snowball Spanish stemmer.
func spanishStem(tok string) (string, error) {
	return snowball.Stem(tok, "spanish", true)
}

// reduceToken lemmatizes English tokens and stems Spanish ones. Any failure,
// including a panic inside a third-party reducer, yields the token unchanged.
func reduceToken(lem Lemmatizer, lang Language, tok string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = tok
		}
	}()

	var (
		reduced string
		err     error
	)
	if lang == Spanish {
		reduced, err = spanishStem(tok)
	} else {
		reduced, err = lem.Lemma(tok)
	}
	if err != nil || reduced == "" {
		return tok
	}
	return reduced
}
