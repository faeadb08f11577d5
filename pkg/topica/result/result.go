// Package result defines the serializable bundle a training run produces and
// its JSON and msgpack codecs.
package result

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cognicore/topica/pkg/topica/assign"
	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// SchemaVersion is bumped whenever the bundle layout changes incompatibly.
const SchemaVersion = 1

// Meta describes the dimensions of a bundle so a reader can check them
// without trusting the payload.
type Meta struct {
	RunID         string    `json:"run_id" msgpack:"run_id"`
	CreatedAt     time.Time `json:"created_at" msgpack:"created_at"`
	K             int       `json:"k" msgpack:"k"`
	VocabSize     int       `json:"vocab_size" msgpack:"vocab_size"`
	NumDocs       int       `json:"num_docs" msgpack:"num_docs"`
	SchemaVersion int       `json:"schema_version" msgpack:"schema_version"`
}

// DocumentInfo identifies one trained document.
type DocumentInfo struct {
	ID         string `json:"id" msgpack:"id"`
	Language   string `json:"language" msgpack:"language"`
	TokenCount int    `json:"token_count" msgpack:"token_count"`
}

// PassRecord is the per-pass training trace.
type PassRecord struct {
	Pass         int     `json:"pass" msgpack:"pass"`
	PerWordBound float64 `json:"per_word_bound" msgpack:"per_word_bound"`
	TopicChange  float64 `json:"topic_change" msgpack:"topic_change"`
}

// TopicModel holds the learned distributions: WordTopic is K×V,
// DocumentTopic is N×K, and the priors have lengths K and V.
type TopicModel struct {
	K              int          `json:"k" msgpack:"k"`
	WordTopic      [][]float64  `json:"word_topic" msgpack:"word_topic"`
	DocumentTopic  [][]float64  `json:"document_topic" msgpack:"document_topic"`
	DocTopicPrior  []float64    `json:"doc_topic_prior" msgpack:"doc_topic_prior"`
	TopicWordPrior []float64    `json:"topic_word_prior" msgpack:"topic_word_prior"`
	Passes         int          `json:"passes" msgpack:"passes"`
	Termination    string       `json:"termination" msgpack:"termination"`
	Trace          []PassRecord `json:"trace,omitempty" msgpack:"trace,omitempty"`
}

// TrainingResult is everything a run produces.
type TrainingResult struct {
	Meta       Meta              `json:"meta" msgpack:"meta"`
	Documents  []DocumentInfo    `json:"documents" msgpack:"documents"`
	Vocabulary *vocab.Vocabulary `json:"vocabulary" msgpack:"vocabulary"`
	Corpus     vocab.Corpus      `json:"corpus" msgpack:"corpus"`
	Model      TopicModel        `json:"model" msgpack:"model"`
	Coherence  *coherence.Result `json:"coherence,omitempty" msgpack:"coherence,omitempty"`
	Dominant   []int             `json:"dominant" msgpack:"dominant"`
	Summary    assign.Summary    `json:"summary" msgpack:"summary"`
	Skipped    []string          `json:"skipped,omitempty" msgpack:"skipped,omitempty"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a time-ordered unique run id.
func NewRunID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Validate checks every dimension against Meta.
func (r *TrainingResult) Validate() error {
	m := r.Meta
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{internalerr.ErrIncompatibleResult}, args...)...)
	}

	if m.SchemaVersion != SchemaVersion {
		return bad("schema version %d, want %d", m.SchemaVersion, SchemaVersion)
	}
	if _, err := ulid.ParseStrict(m.RunID); err != nil {
		return bad("run id %q: %v", m.RunID, err)
	}
	if m.K <= 0 || r.Model.K != m.K {
		return bad("model has %d topics, meta %d", r.Model.K, m.K)
	}
	if r.Vocabulary == nil || r.Vocabulary.Size() != m.VocabSize {
		return bad("vocabulary size does not match meta %d", m.VocabSize)
	}
	if len(r.Model.WordTopic) != m.K {
		return bad("word-topic has %d rows, want %d", len(r.Model.WordTopic), m.K)
	}
	for k, row := range r.Model.WordTopic {
		if len(row) != m.VocabSize {
			return bad("topic %d has %d words, want %d", k, len(row), m.VocabSize)
		}
	}
	if len(r.Model.DocTopicPrior) != m.K {
		return bad("doc-topic prior has length %d, want %d", len(r.Model.DocTopicPrior), m.K)
	}
	if len(r.Model.TopicWordPrior) != m.VocabSize {
		return bad("topic-word prior has length %d, want %d", len(r.Model.TopicWordPrior), m.VocabSize)
	}

	for _, c := range []struct {
		name string
		n    int
	}{
		{"documents", len(r.Documents)},
		{"corpus", len(r.Corpus)},
		{"document-topic", len(r.Model.DocumentTopic)},
		{"dominant", len(r.Dominant)},
	} {
		if c.n != m.NumDocs {
			return bad("%s has %d entries, want %d", c.name, c.n, m.NumDocs)
		}
	}
	for d, row := range r.Model.DocumentTopic {
		if len(row) != m.K {
			return bad("document %d has %d topics, want %d", d, len(row), m.K)
		}
	}
	for d, bow := range r.Corpus {
		for _, tc := range bow {
			if tc.ID < 0 || tc.ID >= m.VocabSize {
				return bad("document %d references term %d", d, tc.ID)
			}
		}
	}
	for d, k := range r.Dominant {
		if k < assign.Unassigned || k >= m.K {
			return bad("document %d assigned to topic %d", d, k)
		}
	}
	if r.Coherence != nil && len(r.Coherence.PerTopic) != m.K {
		return bad("coherence has %d topics, want %d", len(r.Coherence.PerTopic), m.K)
	}
	return nil
}

// WordWeight is a term with its probability under a topic.
type WordWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// TopicTerms returns the n most probable terms of topic, highest first.
func (r *TrainingResult) TopicTerms(topic, n int) ([]WordWeight, error) {
	if topic < 0 || topic >= len(r.Model.WordTopic) {
		return nil, fmt.Errorf("%w: topic %d out of range", internalerr.ErrInvalidInput, topic)
	}
	row := r.Model.WordTopic[topic]
	ids := make([]int, len(row))
	for i := range ids {
		ids[i] = i
	}
	sort.SliceStable(ids, func(a, b int) bool { return row[ids[a]] > row[ids[b]] })
	if n > 0 && n < len(ids) {
		ids = ids[:n]
	}
	out := make([]WordWeight, len(ids))
	for i, id := range ids {
		out[i] = WordWeight{Term: r.Vocabulary.Term(id), Weight: row[id]}
	}
	return out, nil
}

// Format selects a codec.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "json":
		return FormatJSON, nil
	case "msgpack", "mpk", "mp":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("%w: unknown result format %q", internalerr.ErrInvalidInput, s)
}

// Encode writes r in format f.
func Encode(w io.Writer, r *TrainingResult, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(r)
	}
	return fmt.Errorf("%w: unknown result format %q", internalerr.ErrInvalidInput, f)
}

// Decode reads a bundle in format f and validates it.
func Decode(rd io.Reader, f Format) (*TrainingResult, error) {
	var r TrainingResult
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(rd).Decode(&r)
	case FormatMsgpack:
		err = msgpack.NewDecoder(rd).Decode(&r)
	default:
		return nil, fmt.Errorf("%w: unknown result format %q", internalerr.ErrInvalidInput, f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if r.Vocabulary != nil {
		if err := r.Vocabulary.Reindex(); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
