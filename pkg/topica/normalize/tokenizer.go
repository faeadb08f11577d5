package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits cleaned text into raw word tokens. Filtering happens
// afterwards so every tokenizer is subject to the same rules.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// TokenizerKind names the tokenizer a Normalizer settled on.
type TokenizerKind string

const (
	TokenizerFull     TokenizerKind = "unicode"
	TokenizerFallback TokenizerKind = "regex"
)

// unicodeTokenizer scans runes and groups letters, combining marks, digits
// and underscores into words. Anything else separates tokens.
type unicodeTokenizer struct{}

func (unicodeTokenizer) Tokenize(text string) ([]string, error) {
	var tokens []string
	var current strings.Builder

	for _, r := range text {
		if r == utf8.RuneError {
			return nil, fmt.Errorf("tokenize: invalid UTF-8 input")
		}
		if unicode.IsLetter(r) || unicode.Is(unicode.M, r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}

var wordRegex = regexp.MustCompile(`\p{L}+`)

// regexTokenizer is the fallback splitter. It cannot fail.
type regexTokenizer struct{}

func (regexTokenizer) Tokenize(text string) ([]string, error) {
	return wordRegex.FindAllString(text, -1), nil
}

// keepToken reports whether a token passes the length and alphabet rules:
// more than two characters, all of them letters.
func keepToken(tok string) bool {
	if utf8.RuneCountInString(tok) <= 2 {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// probeText is tokenized once at construction to check a tokenizer works.
const probeText = "probe tokenizer sentence añadido"

// probeTokenizer runs t over probeText, converting panics into errors.
func probeTokenizer(t Tokenizer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tokenizer panicked: %v", r)
		}
	}()
	toks, err := t.Tokenize(probeText)
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		return fmt.Errorf("tokenizer produced no tokens for probe text")
	}
	return nil
}
