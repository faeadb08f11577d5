package stoplist

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stopwords.yaml
var defaultLists []byte

// Lists is the serialized form of a stopword resource: base lists keyed by
// language name plus a custom noise list applied to every language.
type Lists struct {
	Languages map[string][]string `yaml:"languages"`
	Custom    []string            `yaml:"custom"`
}

// Default returns the lists compiled into the binary.
func Default() (*Lists, error) {
	return Parse(defaultLists)
}

// Load reads a stopword resource from a YAML file.
func Load(path string) (*Lists, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a stopword resource.
func Parse(data []byte) (*Lists, error) {
	var l Lists
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse stopwords: %w", err)
	}
	if len(l.Languages) == 0 {
		return nil, fmt.Errorf("parse stopwords: no languages defined")
	}
	return &l, nil
}

// Manager answers stopword queries for each language.
// It is not safe for concurrent mutation; build it fully before sharing it.
type Manager struct {
	stops map[string]map[string]struct{}
}

// NewManager builds per-language sets: base(lang) ∪ custom.
// A nil lists value yields a manager holding only the given extra words.
func NewManager(lists *Lists, extra ...string) *Manager {
	m := &Manager{stops: make(map[string]map[string]struct{})}
	if lists != nil {
		for lang, words := range lists.Languages {
			set := m.set(lang)
			for _, w := range words {
				set[strings.ToLower(w)] = struct{}{}
			}
			for _, w := range lists.Custom {
				set[strings.ToLower(w)] = struct{}{}
			}
		}
	}
	for _, w := range extra {
		m.Add("", w)
	}
	return m
}

func (m *Manager) set(lang string) map[string]struct{} {
	s, ok := m.stops[lang]
	if !ok {
		s = make(map[string]struct{})
		m.stops[lang] = s
	}
	return s
}

// Clone returns an independent copy of m.
func (m *Manager) Clone() *Manager {
	c := &Manager{stops: make(map[string]map[string]struct{}, len(m.stops))}
	for lang, words := range m.stops {
		set := make(map[string]struct{}, len(words))
		for w := range words {
			set[w] = struct{}{}
		}
		c.stops[lang] = set
	}
	return c
}

// IsStop checks if a token is a stopword for the language.
// Words added for every language (lang "") are checked as well.
func (m *Manager) IsStop(lang, token string) bool {
	if _, ok := m.stops[lang][token]; ok {
		return true
	}
	_, ok := m.stops[""][token]
	return ok
}

// Add adds a token to the list of one language, or to every language when
// lang is empty.
func (m *Manager) Add(lang, token string) {
	m.set(lang)[strings.ToLower(token)] = struct{}{}
}

// Remove removes a token from the list of one language.
func (m *Manager) Remove(lang, token string) {
	delete(m.stops[lang], strings.ToLower(token))
}

// All returns the sorted stopwords that apply to lang.
func (m *Manager) All(lang string) []string {
	seen := make(map[string]struct{}, len(m.stops[lang])+len(m.stops[""]))
	for w := range m.stops[lang] {
		seen[w] = struct{}{}
	}
	for w := range m.stops[""] {
		seen[w] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for w := range seen {
		result = append(result, w)
	}
	sort.Strings(result)
	return result
}

// Languages returns the languages with a base list.
func (m *Manager) Languages() []string {
	var langs []string
	for lang := range m.stops {
		if lang != "" {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}
