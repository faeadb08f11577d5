package topica

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/config"
	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/lda"
	"github.com/cognicore/topica/pkg/topica/normalize"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

func testCorpus() []normalize.Document {
	markets := "The market rallied while bankers watched bond yields, currency swaps and equity futures on the exchange floor."
	football := "The striker scored before the goalkeeper moved, and the referee checked the penalty with the stadium crowd."
	var docs []normalize.Document
	for i := 0; i < 6; i++ {
		docs = append(docs,
			normalize.Document{ID: fmt.Sprintf("markets-%d.txt", i), Text: markets},
			normalize.Document{ID: fmt.Sprintf("football-%d.txt", i), Text: football})
	}
	docs = append(docs,
		normalize.Document{ID: "blank.txt", Text: "   "},
		normalize.Document{ID: "numbers.txt", Text: "--- Page 1 --- 2023 45 67"})
	return docs
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := lda.DefaultConfig()
	cfg.K = 2
	cfg.Passes = 8
	cfg.Alpha = lda.Symmetric()
	cfg.Eta = lda.Fixed(0.1)
	return New(Options{
		Thresholds: vocab.Thresholds{NoBelow: 2, NoAbove: 0.9},
		LDA:        cfg,
		Coherence:  coherence.Options{Measure: coherence.MeasureNPMI, TopN: 5},
		Workers:    2,
	})
}

func TestPipelineRun(t *testing.T) {
	var passes int
	p := testPipeline(t)
	p.lda.OnPass = func(lda.Checkpoint) error {
		passes++
		return nil
	}

	rep, err := p.Run(context.Background(), testCorpus())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := rep.Result
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(r.Skipped) != 2 || r.Skipped[0] != "blank.txt" || r.Skipped[1] != "numbers.txt" {
		t.Errorf("Skipped = %v", r.Skipped)
	}
	if r.Meta.NumDocs != 12 || r.Meta.K != 2 {
		t.Errorf("Meta = %+v", r.Meta)
	}
	if rep.Stats.TotalDocs != 12 || rep.Stats.Languages["english"] != 12 {
		t.Errorf("Stats = %+v", rep.Stats)
	}

	if passes != r.Model.Passes || len(r.Model.Trace) != r.Model.Passes {
		t.Errorf("caller saw %d passes, trace has %d, model reports %d", passes, len(r.Model.Trace), r.Model.Passes)
	}
	for d, row := range r.Model.DocumentTopic {
		var sum float64
		for _, x := range row {
			sum += x
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("document %d topic mix sums to %v", d, sum)
		}
	}

	total := r.Summary.Unassigned
	for _, c := range r.Summary.Counts {
		total += c.Count
	}
	if total != r.Meta.NumDocs {
		t.Errorf("summary covers %d documents, want %d", total, r.Meta.NumDocs)
	}

	// Identical texts must land on the same topic, and the two themes apart.
	if r.Dominant[0] != r.Dominant[2] || r.Dominant[1] != r.Dominant[3] {
		t.Errorf("identical documents split across topics: %v", r.Dominant)
	}
	if r.Dominant[0] == r.Dominant[1] {
		t.Errorf("themes share topic %d", r.Dominant[0])
	}

	if r.Coherence == nil || len(r.Coherence.PerTopic) != 2 {
		t.Fatalf("Coherence = %+v", r.Coherence)
	}
	if r.Coherence.Overall < coherence.Floor || r.Coherence.Overall > 1 {
		t.Errorf("coherence %v outside [-1, 1]", r.Coherence.Overall)
	}
}

func TestPipelineDeterministic(t *testing.T) {
	a, err := testPipeline(t).Run(context.Background(), testCorpus())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := testPipeline(t).Run(context.Background(), testCorpus())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for k := range a.Result.Model.WordTopic {
		for w, x := range a.Result.Model.WordTopic[k] {
			if y := b.Result.Model.WordTopic[k][w]; x != y {
				t.Fatalf("topic %d word %d: %v vs %v", k, w, x, y)
			}
		}
	}
	if a.Result.Meta.RunID == b.Result.Meta.RunID {
		t.Error("two runs share a run id")
	}
}

func TestPipelineEmptyCorpus(t *testing.T) {
	docs := []normalize.Document{{ID: "a", Text: ""}, {ID: "b", Text: "12 34"}}
	_, err := testPipeline(t).Run(context.Background(), docs)
	if !errors.Is(err, internalerr.ErrEmptyCorpus) {
		t.Errorf("Run err = %v, want ErrEmptyCorpus", err)
	}
}

func TestPipelineEmptyVocabulary(t *testing.T) {
	p := testPipeline(t)
	p.th = vocab.Thresholds{NoBelow: 50, NoAbove: 1}
	_, err := p.Run(context.Background(), testCorpus())
	if !errors.Is(err, internalerr.ErrEmptyVocabulary) {
		t.Errorf("Run err = %v, want ErrEmptyVocabulary", err)
	}
}

func TestPipelineStopEarly(t *testing.T) {
	p := testPipeline(t)
	p.lda.OnPass = func(cp lda.Checkpoint) error {
		if cp.Pass == 2 {
			return lda.ErrStopTraining
		}
		return nil
	}
	rep, err := p.Run(context.Background(), testCorpus())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Result.Model.Passes != 2 || rep.Result.Model.Termination != string(lda.TerminationStopped) {
		t.Errorf("model = %d passes, %q", rep.Result.Model.Passes, rep.Result.Model.Termination)
	}
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testPipeline(t).Run(ctx, testCorpus()); !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
}

func TestFromComponents(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Topics = 2
	cfg.Model.Passes = 3
	cfg.Vocabulary = vocab.Thresholds{NoBelow: 2, NoAbove: 0.9}
	comp, err := cfg.Components(nil)
	if err != nil {
		t.Fatalf("Components: %v", err)
	}
	rep, err := FromComponents(comp, nil).Run(context.Background(), testCorpus())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Result.Coherence.Measure != coherence.MeasureCV {
		t.Errorf("measure = %q, want default c_v", rep.Result.Coherence.Measure)
	}
}
