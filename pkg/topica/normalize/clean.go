package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	pageMarkerRegex = regexp.MustCompile(`-{3}\s*Page\s+\d+\s*-{3}`)
	digitRegex      = regexp.MustCompile(`\p{Nd}+`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)
	spaceRegex      = regexp.MustCompile(`\s+`)
)

// Clean strips page-break markers left by page-based extraction, digits and
// punctuation, collapses whitespace and lowercases.
//
//	Clean("--- Page 3 ---\nHello, World! 123") == "hello world"
func Clean(text string) string {
	if text == "" {
		return ""
	}
	// Compose accents first so a decomposed "é" is not split as punctuation.
	text = norm.NFC.String(text)
	text = pageMarkerRegex.ReplaceAllString(text, "")
	text = digitRegex.ReplaceAllString(text, "")
	text = punctRegex.ReplaceAllString(text, " ")
	text = strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
	// Casers hold state; one per call keeps Clean safe for concurrent use.
	return cases.Lower(language.Und).String(text)
}

// CountPageMarkers reports how many page-break markers text contains.
func CountPageMarkers(text string) int {
	return len(pageMarkerRegex.FindAllStringIndex(text, -1))
}

// StripMarkup extracts the text nodes of an HTML document.
// If parsing fails the input is returned unchanged.
func StripMarkup(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)

	return strings.TrimSpace(spaceRegex.ReplaceAllString(buf.String(), " "))
}
