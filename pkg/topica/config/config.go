// Package config reads topica.yaml and turns it into component options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/lda"
	"github.com/cognicore/topica/pkg/topica/result"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// Config is the on-disk configuration.
type Config struct {
	Normalize  Normalize        `yaml:"normalize"`
	Vocabulary vocab.Thresholds `yaml:"vocabulary"`
	Model      Model            `yaml:"model"`
	Coherence  Coherence        `yaml:"coherence"`
	Store      Store            `yaml:"store"`
	Workers    int              `yaml:"workers"` // <= 0 means runtime.NumCPU()
}

// Normalize configures text normalization.
type Normalize struct {
	StopwordsPath  string   `yaml:"stopwords_path"`
	ExtraStopwords []string `yaml:"extra_stopwords"`
	RemoveTerms    []string `yaml:"remove_terms"`
	ChunkThreshold int      `yaml:"chunk_threshold"`
	ChunkSize      int      `yaml:"chunk_size"`
}

// Model configures LDA training. Alpha and Eta use lda.ParsePrior syntax.
type Model struct {
	Topics         int     `yaml:"topics"`
	Passes         int     `yaml:"passes"`
	Iterations     int     `yaml:"iterations"`
	GammaThreshold float64 `yaml:"gamma_threshold"`
	Tolerance      float64 `yaml:"tolerance"`
	Alpha          string  `yaml:"alpha"`
	Eta            string  `yaml:"eta"`
	Seed           uint64  `yaml:"seed"`
	Shards         int     `yaml:"shards"`
}

// Coherence configures scoring.
type Coherence struct {
	Measure string `yaml:"measure"`
	TopN    int    `yaml:"top_n"`
	Window  int    `yaml:"window"` // 0 uses the measure's default
}

// Store configures persistence.
type Store struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // export format, json or msgpack
}

// Default returns the reference configuration.
func Default() Config {
	d := lda.DefaultConfig()
	return Config{
		Vocabulary: vocab.DefaultThresholds(),
		Model: Model{
			Topics:         d.K,
			Passes:         d.Passes,
			Iterations:     d.Iterations,
			GammaThreshold: d.GammaThreshold,
			Tolerance:      d.Tolerance,
			Alpha:          "auto",
			Eta:            "auto",
			Seed:           d.Seed,
			Shards:         d.Shards,
		},
		Coherence: Coherence{
			Measure: string(coherence.MeasureCV),
			TopN:    coherence.DefaultTopN,
		},
		Store: Store{
			Path:   "topica.db",
			Format: string(result.FormatJSON),
		},
	}
}

// Load reads a yaml file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read config: %v", internalerr.ErrIO, err)
	}
	return Parse(data)
}

// Parse decodes yaml over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: parse config: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Vocabulary.Validate(); err != nil {
		return err
	}
	lc, err := c.LDA()
	if err != nil {
		return err
	}
	if err := lc.Validate(); err != nil {
		return err
	}
	switch coherence.Measure(c.Coherence.Measure) {
	case coherence.MeasureNPMI, coherence.MeasureCV:
	default:
		return fmt.Errorf("%w: unknown coherence measure %q", internalerr.ErrInvalidConfig, c.Coherence.Measure)
	}
	if c.Coherence.TopN < 2 {
		return fmt.Errorf("%w: coherence top_n must be >= 2, got %d", internalerr.ErrInvalidConfig, c.Coherence.TopN)
	}
	if _, err := result.ParseFormat(c.Store.Format); err != nil {
		return fmt.Errorf("%w: store format %q", internalerr.ErrInvalidConfig, c.Store.Format)
	}
	return nil
}

// LDA converts the model section. Logger and OnPass are left for the caller.
func (c Config) LDA() (lda.Config, error) {
	alpha, err := lda.ParsePrior(c.Model.Alpha)
	if err != nil {
		return lda.Config{}, fmt.Errorf("alpha: %w", err)
	}
	eta, err := lda.ParsePrior(c.Model.Eta)
	if err != nil {
		return lda.Config{}, fmt.Errorf("eta: %w", err)
	}
	return lda.Config{
		K:              c.Model.Topics,
		Passes:         c.Model.Passes,
		Iterations:     c.Model.Iterations,
		GammaThreshold: c.Model.GammaThreshold,
		Tolerance:      c.Model.Tolerance,
		Alpha:          alpha,
		Eta:            eta,
		Seed:           c.Model.Seed,
		Workers:        c.Workers,
		Shards:         c.Model.Shards,
	}, nil
}

// CoherenceOptions converts the coherence section.
func (c Config) CoherenceOptions() coherence.Options {
	return coherence.Options{
		Measure: coherence.Measure(c.Coherence.Measure),
		TopN:    c.Coherence.TopN,
		Window:  c.Coherence.Window,
		Workers: c.Workers,
	}
}
