// Package analytics aggregates corpus statistics over normalized documents.
package analytics

import (
	"sort"
	"sync"
)

// Analyzer aggregates document-level token and language stats.
// It is safe for concurrent use.
type Analyzer struct {
	mu          sync.Mutex
	totalDocs   int64
	totalTokens int64
	tokenDF     map[string]int64
	tokenFreq   map[string]int64
	languages   map[string]int64
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		tokenDF:   make(map[string]int64),
		tokenFreq: make(map[string]int64),
		languages: make(map[string]int64),
	}
}

// Process consumes one document's language and tokens.
func (a *Analyzer) Process(language string, tokens []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalDocs++
	a.languages[language]++

	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		a.totalTokens++
		a.tokenFreq[tok]++
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		a.tokenDF[tok]++
	}
}

// Stats exposes the aggregated counts.
type Stats struct {
	TotalDocs   int64            `json:"total_docs" msgpack:"total_docs"`
	TotalTokens int64            `json:"total_tokens" msgpack:"total_tokens"`
	Languages   map[string]int64 `json:"languages" msgpack:"languages"`
	TokenDF     map[string]int64 `json:"-" msgpack:"-"`
	TokenFreq   map[string]int64 `json:"-" msgpack:"-"`
}

// Snapshot returns a copy of the accumulated statistics.
func (a *Analyzer) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		TotalDocs:   a.totalDocs,
		TotalTokens: a.totalTokens,
		Languages:   copyCounts(a.languages),
		TokenDF:     copyCounts(a.tokenDF),
		TokenFreq:   copyCounts(a.tokenFreq),
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UniqueTerms returns the number of distinct tokens.
func (s Stats) UniqueTerms() int {
	return len(s.TokenFreq)
}

// TermStat is one term with its corpus counts.
type TermStat struct {
	Term  string  `json:"term"`
	Freq  int64   `json:"freq"`
	DF    int64   `json:"df"`
	Share float64 `json:"share"` // DF / TotalDocs
}

func (s Stats) termStat(term string) TermStat {
	ts := TermStat{Term: term, Freq: s.TokenFreq[term], DF: s.TokenDF[term]}
	if s.TotalDocs > 0 {
		ts.Share = float64(ts.DF) / float64(s.TotalDocs)
	}
	return ts
}

// TopTerms returns the n most frequent terms, ties broken alphabetically.
func (s Stats) TopTerms(n int) []TermStat {
	out := make([]TermStat, 0, len(s.TokenFreq))
	for term := range s.TokenFreq {
		out = append(out, s.termStat(term))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Freq != out[j].Freq {
			return out[i].Freq > out[j].Freq
		}
		return out[i].Term < out[j].Term
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Ubiquitous lists terms present in at least minShare of the documents,
// most widespread first. They are candidates for the removal list: words
// that appear everywhere end up at the top of every topic.
func (s Stats) Ubiquitous(minShare float64) []TermStat {
	var out []TermStat
	if s.TotalDocs == 0 {
		return out
	}
	for term := range s.TokenDF {
		ts := s.termStat(term)
		if ts.Share >= minShare {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DF != out[j].DF {
			return out[i].DF > out[j].DF
		}
		return out[i].Term < out[j].Term
	})
	return out
}
