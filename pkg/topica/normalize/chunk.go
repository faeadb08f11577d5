package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChunkThreshold is the input size above which text is chunked.
	DefaultChunkThreshold = 500_000
	// DefaultChunkSize bounds each chunk.
	DefaultChunkSize = 1_000_000
)

// SplitChunks splits text into pieces of at most size bytes when it is longer
// than threshold. Cuts land on the last whitespace before the limit, or on a
// rune boundary when a chunk contains no whitespace. Concatenating the chunks
// yields text.
func SplitChunks(text string, threshold, size int) []string {
	if len(text) <= threshold || size <= 0 {
		return []string{text}
	}

	var chunks []string
	for len(text) > size {
		cut := strings.LastIndexFunc(text[:size], unicode.IsSpace)
		if cut <= 0 {
			cut = size
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
