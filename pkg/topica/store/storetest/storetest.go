// Package storetest holds behavior checks shared by every store.Store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognicore/topica/pkg/topica/assign"
	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/result"
	"github.com/cognicore/topica/pkg/topica/store"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// Run builds a small valid result created at the given time.
func Run(t *testing.T, created time.Time) *result.TrainingResult {
	t.Helper()
	docs := [][]string{{"network", "policy", "network"}, {"policy", "research"}}
	v, err := vocab.Build(docs, vocab.Thresholds{NoBelow: 1, NoAbove: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	dominant := []int{0, 1}
	return &result.TrainingResult{
		Meta: result.Meta{
			RunID:         result.NewRunID(created),
			CreatedAt:     created.UTC(),
			K:             2,
			VocabSize:     v.Size(),
			NumDocs:       len(docs),
			SchemaVersion: result.SchemaVersion,
		},
		Documents: []result.DocumentInfo{
			{ID: "a.txt", Language: "english", TokenCount: 3},
			{ID: "b.txt", Language: "english", TokenCount: 2},
		},
		Vocabulary: v,
		Corpus:     v.Encode(docs),
		Model: result.TopicModel{
			K:              2,
			WordTopic:      [][]float64{{0.6, 0.3, 0.1}, {0.1, 0.3, 0.6}},
			DocumentTopic:  [][]float64{{0.8, 0.2}, {0.3, 0.7}},
			DocTopicPrior:  []float64{0.5, 0.5},
			TopicWordPrior: []float64{0.1, 0.1, 0.1},
			Passes:         4,
			Termination:    "max_passes",
		},
		Coherence: &coherence.Result{Measure: coherence.MeasureCV, Overall: 0.42, PerTopic: []float64{0.5, 0.34}, TopN: 3, Window: 110},
		Dominant:  dominant,
		Summary:   assign.Aggregate(dominant),
	}
}

// Conformance exercises the Store contract against st.
func Conformance(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	older := Run(t, base)
	newer := Run(t, base.Add(time.Hour))

	for _, r := range []*result.TrainingResult{older, newer} {
		if err := st.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun %s: %v", r.Meta.RunID, err)
		}
	}
	// Saving again replaces rather than duplicates.
	if err := st.SaveRun(ctx, newer); err != nil {
		t.Fatalf("SaveRun again: %v", err)
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(runs))
	}
	if runs[0].RunID != newer.Meta.RunID || runs[1].RunID != older.Meta.RunID {
		t.Errorf("ListRuns order = [%s %s], want newest first", runs[0].RunID, runs[1].RunID)
	}
	if runs[0].Measure != string(coherence.MeasureCV) || runs[0].Coherence != 0.42 || runs[0].K != 2 {
		t.Errorf("ListRuns info = %+v", runs[0])
	}
	if !runs[0].CreatedAt.Equal(newer.Meta.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", runs[0].CreatedAt, newer.Meta.CreatedAt)
	}

	got, err := st.GetRun(ctx, older.Meta.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Meta.RunID != older.Meta.RunID || got.Vocabulary.Size() != 3 {
		t.Errorf("GetRun = %+v", got.Meta)
	}
	if id, ok := got.Vocabulary.ID("research"); !ok || got.Vocabulary.Term(id) != "research" {
		t.Errorf("decoded vocabulary cannot look up research")
	}

	terms, err := st.TopicTerms(ctx, older.Meta.RunID, 1, 2)
	if err != nil {
		t.Fatalf("TopicTerms: %v", err)
	}
	if len(terms) != 2 || terms[0].Term != "research" || terms[1].Term != "policy" {
		t.Errorf("TopicTerms = %v, want [research policy]", terms)
	}
	if _, err := st.TopicTerms(ctx, older.Meta.RunID, 5, 2); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("TopicTerms out of range: err = %v", err)
	}

	if err := st.DeleteRun(ctx, older.Meta.RunID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := st.GetRun(ctx, older.Meta.RunID); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("GetRun after delete: err = %v", err)
	}
	if _, err := st.TopicTerms(ctx, older.Meta.RunID, 0, 1); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("TopicTerms after delete: err = %v", err)
	}
	if err := st.DeleteRun(ctx, older.Meta.RunID); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("DeleteRun twice: err = %v", err)
	}

	bad := Run(t, base)
	bad.Meta.K = 3
	if err := st.SaveRun(ctx, bad); !errors.Is(err, internalerr.ErrIncompatibleResult) {
		t.Errorf("SaveRun invalid: err = %v", err)
	}
}
