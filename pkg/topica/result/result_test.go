package result

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cognicore/topica/pkg/topica/assign"
	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

func fixture(t *testing.T) *TrainingResult {
	t.Helper()
	v, err := vocab.Build([][]string{{"network", "policy"}, {"policy", "research"}}, vocab.Thresholds{NoBelow: 1, NoAbove: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &TrainingResult{
		Meta: Meta{
			RunID:         NewRunID(created),
			CreatedAt:     created,
			K:             2,
			VocabSize:     3,
			NumDocs:       2,
			SchemaVersion: SchemaVersion,
		},
		Documents: []DocumentInfo{
			{ID: "a.txt", Language: "english", TokenCount: 2},
			{ID: "b.txt", Language: "spanish", TokenCount: 2},
		},
		Vocabulary: v,
		Corpus:     v.Encode([][]string{{"network", "policy"}, {"policy", "research"}}),
		Model: TopicModel{
			K:              2,
			WordTopic:      [][]float64{{0.7, 0.2, 0.1}, {0.1, 0.3, 0.6}},
			DocumentTopic:  [][]float64{{0.9, 0.1}, {0.25, 0.75}},
			DocTopicPrior:  []float64{0.4, 0.6},
			TopicWordPrior: []float64{0.1, 0.1, 0.1},
			Passes:         12,
			Termination:    "converged",
			Trace:          []PassRecord{{Pass: 1, PerWordBound: -7.5, TopicChange: 0.01}},
		},
		Coherence: &coherence.Result{Measure: coherence.MeasureNPMI, Overall: 0.1, PerTopic: []float64{0.3, -0.1}, TopN: 10, Window: 10},
		Dominant:  []int{0, 1},
		Summary:   assign.Aggregate([]int{0, 1}),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(string(f), func(t *testing.T) {
			want := fixture(t)
			var buf bytes.Buffer
			if err := Encode(&buf, want, f); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(&buf, f)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if !got.Meta.CreatedAt.Equal(want.Meta.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.Meta.CreatedAt, want.Meta.CreatedAt)
			}
			got.Meta.CreatedAt = want.Meta.CreatedAt
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}
			if id, ok := got.Vocabulary.ID("policy"); !ok || id != 1 {
				t.Errorf("decoded vocabulary lookup: ID(policy) = %d, %v", id, ok)
			}
		})
	}
}

func TestValidateRejectsMismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TrainingResult)
	}{
		{"schema version", func(r *TrainingResult) { r.Meta.SchemaVersion = 99 }},
		{"run id", func(r *TrainingResult) { r.Meta.RunID = "not-a-ulid" }},
		{"topic count", func(r *TrainingResult) { r.Meta.K = 3 }},
		{"vocabulary size", func(r *TrainingResult) { r.Meta.VocabSize = 4 }},
		{"word-topic row", func(r *TrainingResult) { r.Model.WordTopic[1] = r.Model.WordTopic[1][:2] }},
		{"document count", func(r *TrainingResult) { r.Documents = r.Documents[:1] }},
		{"document-topic row", func(r *TrainingResult) { r.Model.DocumentTopic[0] = []float64{1} }},
		{"corpus term", func(r *TrainingResult) { r.Corpus[0][0].ID = 7 }},
		{"dominant topic", func(r *TrainingResult) { r.Dominant[1] = 2 }},
		{"coherence topics", func(r *TrainingResult) { r.Coherence.PerTopic = []float64{0.1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fixture(t)
			tt.mutate(r)
			if err := r.Validate(); !errors.Is(err, internalerr.ErrIncompatibleResult) {
				t.Errorf("Validate = %v, want ErrIncompatibleResult", err)
			}
		})
	}

	if err := fixture(t).Validate(); err != nil {
		t.Errorf("valid fixture rejected: %v", err)
	}
}

func TestValidateReportsFirstCountMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TrainingResult)
		want   string
	}{
		{"every count off", func(r *TrainingResult) { r.Meta.NumDocs = 3 }, "documents has 2 entries, want 3"},
		{"corpus and dominant off", func(r *TrainingResult) {
			r.Corpus = r.Corpus[:1]
			r.Dominant = r.Dominant[:1]
		}, "corpus has 1 entries, want 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				r := fixture(t)
				tt.mutate(r)
				err := r.Validate()
				if !errors.Is(err, internalerr.ErrIncompatibleResult) {
					t.Fatalf("Validate = %v, want ErrIncompatibleResult", err)
				}
				if !strings.Contains(err.Error(), tt.want) {
					t.Fatalf("attempt %d: Validate = %q, want it to mention %q", i, err, tt.want)
				}
			}
		})
	}
}

func TestDecodeRejectsIncompatible(t *testing.T) {
	r := fixture(t)
	r.Meta.NumDocs = 5
	var buf bytes.Buffer
	if err := Encode(&buf, r, FormatMsgpack); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(&buf, FormatMsgpack); !errors.Is(err, internalerr.ErrIncompatibleResult) {
		t.Errorf("Decode = %v, want ErrIncompatibleResult", err)
	}
}

func TestTopicTerms(t *testing.T) {
	r := fixture(t)
	got, err := r.TopicTerms(1, 2)
	if err != nil {
		t.Fatalf("TopicTerms: %v", err)
	}
	want := []WordWeight{{Term: "research", Weight: 0.6}, {Term: "policy", Weight: 0.3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopicTerms = %v, want %v", got, want)
	}
	if _, err := r.TopicTerms(2, 1); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("out of range: err = %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"json": FormatJSON, ".JSON": FormatJSON, "msgpack": FormatMsgpack, ".mpk": FormatMsgpack}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("ParseFormat(xml) err = %v", err)
	}
}

func TestNewRunIDOrdered(t *testing.T) {
	now := time.Now()
	a, b := NewRunID(now), NewRunID(now)
	if a >= b {
		t.Errorf("run ids not increasing: %s then %s", a, b)
	}
}
