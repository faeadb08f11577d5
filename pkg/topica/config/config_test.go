package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/lda"
	"github.com/cognicore/topica/pkg/topica/normalize"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
	if cfg.Model.Topics != 6 || cfg.Model.Passes != 50 || cfg.Model.Seed != 100 {
		t.Errorf("model defaults = %+v", cfg.Model)
	}
	if cfg.Vocabulary.NoBelow != 5 || cfg.Vocabulary.NoAbove != 0.4 || cfg.Vocabulary.KeepN != 100000 {
		t.Errorf("vocabulary defaults = %+v", cfg.Vocabulary)
	}

	lc, err := cfg.LDA()
	if err != nil {
		t.Fatalf("LDA: %v", err)
	}
	if lc.Alpha.Kind != lda.PriorEstimated || lc.Eta.Kind != lda.PriorEstimated {
		t.Errorf("priors = %v/%v, want estimated", lc.Alpha, lc.Eta)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Model.Topics != Default().Model.Topics {
		t.Errorf("Topics = %d", cfg.Model.Topics)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topica.yaml")
	content := `
workers: 2
normalize:
  remove_terms: [dataset, model]
vocabulary:
  no_below: 2
  no_above: 0.6
model:
  topics: 4
  alpha: symmetric
  eta: "0.05"
coherence:
  measure: c_npmi
  top_n: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Topics != 4 || cfg.Model.Passes != 50 {
		t.Errorf("model = %+v, want topics 4 and default passes", cfg.Model)
	}
	if cfg.Vocabulary.NoBelow != 2 || cfg.Vocabulary.NoAbove != 0.6 || cfg.Vocabulary.KeepN != 100000 {
		t.Errorf("vocabulary = %+v", cfg.Vocabulary)
	}
	if len(cfg.Normalize.RemoveTerms) != 2 {
		t.Errorf("remove_terms = %v", cfg.Normalize.RemoveTerms)
	}

	lc, err := cfg.LDA()
	if err != nil {
		t.Fatalf("LDA: %v", err)
	}
	if lc.Alpha.Kind != lda.PriorSymmetric {
		t.Errorf("alpha = %v, want symmetric", lc.Alpha)
	}
	if lc.Eta.Kind != lda.PriorFixed || lc.Eta.Value != 0.05 {
		t.Errorf("eta = %v, want fixed 0.05", lc.Eta)
	}
	if lc.Workers != 2 {
		t.Errorf("workers = %d", lc.Workers)
	}

	opts := cfg.CoherenceOptions()
	if opts.Measure != coherence.MeasureNPMI || opts.TopN != 5 || opts.Window != 0 {
		t.Errorf("coherence options = %+v", opts)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown key", "modle:\n  topics: 3\n", internalerr.ErrInvalidConfig},
		{"bad yaml", "model: [", internalerr.ErrInvalidConfig},
		{"zero topics", "model:\n  topics: 0\n", internalerr.ErrInvalidConfig},
		{"bad prior", "model:\n  alpha: sometimes\n", internalerr.ErrInvalidConfig},
		{"no_above", "vocabulary:\n  no_above: 1.5\n", internalerr.ErrInvalidConfig},
		{"measure", "coherence:\n  measure: umass\n", internalerr.ErrInvalidConfig},
		{"top_n", "coherence:\n  top_n: 1\n", internalerr.ErrInvalidConfig},
		{"format", "store:\n  format: xml\n", internalerr.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, tt.want) {
				t.Errorf("Parse err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/topica.yaml"); !errors.Is(err, internalerr.ErrIO) {
		t.Errorf("Load missing file err = %v, want ErrIO", err)
	}
}

func TestComponents(t *testing.T) {
	cfg := Default()
	cfg.Normalize.StopwordsPath = "/nonexistent/stopwords.yaml"
	cfg.Normalize.RemoveTerms = []string{"dataset"}

	comp, err := cfg.Components(nil)
	if err != nil {
		t.Fatalf("Components: %v", err)
	}
	if comp.Normalizer == nil || comp.LDA.Logger == nil {
		t.Fatal("Components left nil fields")
	}
	if comp.Normalizer.Capabilities().Stopwords {
		t.Error("unreadable stopword file should be reported as unavailable")
	}
	if got := comp.Normalizer.Reduce([]string{"dataset", "network"}, normalize.English); len(got) != 1 || got[0] != "network" {
		t.Errorf("Reduce with remove_terms = %v", got)
	}

	cfg.Model.Topics = -1
	if _, err := cfg.Components(nil); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Components invalid err = %v", err)
	}
}
