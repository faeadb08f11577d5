// Package vocab builds the term dictionary of a corpus and encodes token
// sequences as bag-of-words vectors against it.
package vocab

import (
	"fmt"
	"sort"

	"github.com/cognicore/topica/pkg/topica/internalerr"
)

// TermCount is one entry of a bag-of-words vector.
type TermCount struct {
	ID    int `json:"id" msgpack:"id"`
	Count int `json:"count" msgpack:"count"`
}

// BOW is a sparse document vector sorted by ascending term id.
type BOW []TermCount

// Len returns the total token count of the document.
func (b BOW) Len() int {
	total := 0
	for _, tc := range b {
		total += tc.Count
	}
	return total
}

// Corpus is a sequence of BOW vectors index-aligned with the documents.
type Corpus []BOW

// Thresholds controls frequency pruning.
type Thresholds struct {
	// NoBelow drops terms appearing in fewer documents.
	NoBelow int `json:"no_below" msgpack:"no_below" yaml:"no_below"`
	// NoAbove drops terms appearing in more than this fraction of documents.
	NoAbove float64 `json:"no_above" msgpack:"no_above" yaml:"no_above"`
	// KeepN keeps only the N most frequent survivors. 0 keeps all.
	KeepN int `json:"keep_n" msgpack:"keep_n" yaml:"keep_n"`
}

// DefaultThresholds returns the pruning used for the reference corpus.
func DefaultThresholds() Thresholds {
	return Thresholds{NoBelow: 5, NoAbove: 0.4, KeepN: 100000}
}

// Validate checks the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.NoBelow < 0 {
		return fmt.Errorf("%w: no_below must be >= 0, got %d", internalerr.ErrInvalidConfig, t.NoBelow)
	}
	if t.NoAbove <= 0 || t.NoAbove > 1 {
		return fmt.Errorf("%w: no_above must be in (0, 1], got %g", internalerr.ErrInvalidConfig, t.NoAbove)
	}
	if t.KeepN < 0 {
		return fmt.Errorf("%w: keep_n must be >= 0, got %d", internalerr.ErrInvalidConfig, t.KeepN)
	}
	return nil
}

// Vocabulary maps terms to dense integer ids. It is immutable once built and
// safe for concurrent reads.
type Vocabulary struct {
	Terms      []string   `json:"terms" msgpack:"terms"`
	DocFreq    []int      `json:"doc_freq" msgpack:"doc_freq"`
	NumDocs    int        `json:"num_docs" msgpack:"num_docs"`
	Thresholds Thresholds `json:"thresholds" msgpack:"thresholds"`

	index map[string]int
}

// Build counts document frequencies over docs, prunes by th and assigns ids
// in first-seen order. It fails with ErrEmptyVocabulary when nothing
// survives pruning.
func Build(docs [][]string, th Thresholds) (*Vocabulary, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("build vocabulary: %w", internalerr.ErrEmptyCorpus)
	}

	var order []string
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, tok := range doc {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			if df[tok] == 0 {
				order = append(order, tok)
			}
			df[tok]++
		}
	}

	// A small slack keeps boundaries such as 6 of 10 at 0.6 inclusive despite
	// float rounding.
	maxDF := th.NoAbove*float64(len(docs)) + 1e-9
	kept := make([]string, 0, len(order))
	for _, term := range order {
		n := df[term]
		if n < th.NoBelow || float64(n) > maxDF {
			continue
		}
		kept = append(kept, term)
	}

	if th.KeepN > 0 && len(kept) > th.KeepN {
		byFreq := make([]int, len(kept))
		for i := range byFreq {
			byFreq[i] = i
		}
		sort.SliceStable(byFreq, func(a, b int) bool {
			return df[kept[byFreq[a]]] > df[kept[byFreq[b]]]
		})
		top := byFreq[:th.KeepN]
		sort.Ints(top)
		trimmed := make([]string, 0, th.KeepN)
		for _, i := range top {
			trimmed = append(trimmed, kept[i])
		}
		kept = trimmed
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("build vocabulary from %d documents: %w", len(docs), internalerr.ErrEmptyVocabulary)
	}

	v := &Vocabulary{
		Terms:      kept,
		DocFreq:    make([]int, len(kept)),
		NumDocs:    len(docs),
		Thresholds: th,
	}
	for i, term := range kept {
		v.DocFreq[i] = df[term]
	}
	if err := v.Reindex(); err != nil {
		return nil, err
	}
	return v, nil
}

// Reindex rebuilds the term lookup after the exported fields were decoded.
func (v *Vocabulary) Reindex() error {
	if len(v.DocFreq) != len(v.Terms) {
		return fmt.Errorf("%w: %d terms but %d document frequencies",
			internalerr.ErrIncompatibleResult, len(v.Terms), len(v.DocFreq))
	}
	index := make(map[string]int, len(v.Terms))
	for id, term := range v.Terms {
		if _, dup := index[term]; dup {
			return fmt.Errorf("%w: duplicate term %q", internalerr.ErrIncompatibleResult, term)
		}
		index[term] = id
	}
	v.index = index
	return nil
}

// Size returns the number of terms.
func (v *Vocabulary) Size() int {
	return len(v.Terms)
}

// ID returns the id of term.
func (v *Vocabulary) ID(term string) (int, bool) {
	id, ok := v.index[term]
	return id, ok
}

// Term returns the term for id, or "" when id is out of range.
func (v *Vocabulary) Term(id int) string {
	if id < 0 || id >= len(v.Terms) {
		return ""
	}
	return v.Terms[id]
}

// Doc2Bow encodes tokens as a BOW vector. Unknown terms are ignored and
// repeated terms are summed.
func (v *Vocabulary) Doc2Bow(tokens []string) BOW {
	counts := make(map[int]int)
	for _, tok := range tokens {
		if id, ok := v.index[tok]; ok {
			counts[id]++
		}
	}
	bow := make(BOW, 0, len(counts))
	for id, c := range counts {
		bow = append(bow, TermCount{ID: id, Count: c})
	}
	sort.Slice(bow, func(i, j int) bool { return bow[i].ID < bow[j].ID })
	return bow
}

// Encode encodes every document. The result is index-aligned with docs.
func (v *Vocabulary) Encode(docs [][]string) Corpus {
	corpus := make(Corpus, len(docs))
	for i, doc := range docs {
		corpus[i] = v.Doc2Bow(doc)
	}
	return corpus
}
