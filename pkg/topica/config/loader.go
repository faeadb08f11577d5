package config

import (
	"go.uber.org/zap"

	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/lda"
	"github.com/cognicore/topica/pkg/topica/normalize"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// Components holds everything a pipeline is assembled from.
type Components struct {
	Normalizer *normalize.Normalizer
	Thresholds vocab.Thresholds
	LDA        lda.Config
	Coherence  coherence.Options
	Workers    int
}

// Components builds the configured components. Stopword resource problems
// degrade the normalizer instead of failing here.
func (c Config) Components(logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	lc, err := c.LDA()
	if err != nil {
		return nil, err
	}
	lc.Logger = logger.Named("lda")

	norm := normalize.New(normalize.Options{
		StopwordsPath:  c.Normalize.StopwordsPath,
		ExtraStopwords: c.Normalize.ExtraStopwords,
		RemoveTerms:    c.Normalize.RemoveTerms,
		ChunkThreshold: c.Normalize.ChunkThreshold,
		ChunkSize:      c.Normalize.ChunkSize,
		Logger:         logger.Named("normalize"),
	})

	return &Components{
		Normalizer: norm,
		Thresholds: c.Vocabulary,
		LDA:        lc,
		Coherence:  c.CoherenceOptions(),
		Workers:    c.Workers,
	}, nil
}
