// Package topica wires normalization, vocabulary construction, LDA training,
// coherence scoring and topic assignment into a single training run.
package topica

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/topica/pkg/topica/analytics"
	"github.com/cognicore/topica/pkg/topica/assign"
	"github.com/cognicore/topica/pkg/topica/coherence"
	"github.com/cognicore/topica/pkg/topica/config"
	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/lda"
	"github.com/cognicore/topica/pkg/topica/normalize"
	"github.com/cognicore/topica/pkg/topica/result"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// Pipeline is the main training facade
type Pipeline struct {
	norm      *normalize.Normalizer
	th        vocab.Thresholds
	lda       lda.Config
	coherence coherence.Options
	workers   int
	logger    *zap.Logger
	now       func() time.Time
}

// Options configures a Pipeline
type Options struct {
	Normalizer *normalize.Normalizer
	Thresholds vocab.Thresholds
	LDA        lda.Config
	Coherence  coherence.Options
	Workers    int
	Logger     *zap.Logger
}

// New creates a Pipeline. A nil Normalizer gets one with default resources.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	norm := opts.Normalizer
	if norm == nil {
		norm = normalize.New(normalize.Options{Logger: logger.Named("normalize")})
	}
	return &Pipeline{
		norm:      norm,
		th:        opts.Thresholds,
		lda:       opts.LDA,
		coherence: opts.Coherence,
		workers:   opts.Workers,
		logger:    logger,
		now:       time.Now,
	}
}

// FromComponents creates a Pipeline from loaded configuration.
func FromComponents(c *config.Components, logger *zap.Logger) *Pipeline {
	return New(Options{
		Normalizer: c.Normalizer,
		Thresholds: c.Thresholds,
		LDA:        c.LDA,
		Coherence:  c.Coherence,
		Workers:    c.Workers,
		Logger:     logger,
	})
}

// Normalizer returns the normalizer the pipeline uses.
func (p *Pipeline) Normalizer() *normalize.Normalizer { return p.norm }

// Prepared is a normalized corpus ready for vocabulary construction.
type Prepared struct {
	Docs    []normalize.Document // documents with at least one token
	Skipped []string             // ids of documents left empty
	Stats   analytics.Stats
}

// Preprocess normalizes docs, drops the empty ones and collects corpus
// statistics over the rest.
func (p *Pipeline) Preprocess(ctx context.Context, docs []normalize.Document) (*Prepared, error) {
	empty, err := p.norm.NormalizeCorpus(ctx, docs, p.workers)
	if err != nil {
		return nil, err
	}
	skip := make(map[int]bool, len(empty))
	for _, i := range empty {
		skip[i] = true
	}

	prep := &Prepared{}
	an := analytics.NewAnalyzer()
	for i, d := range docs {
		if skip[i] {
			prep.Skipped = append(prep.Skipped, d.ID)
			continue
		}
		prep.Docs = append(prep.Docs, d)
		an.Process(string(d.Language), d.Tokens)
	}
	prep.Stats = an.Snapshot()

	p.logger.Info("corpus normalized",
		zap.Int("documents", len(prep.Docs)),
		zap.Int("skipped", len(prep.Skipped)),
		zap.Int64("tokens", prep.Stats.TotalTokens),
		zap.Int("unique_terms", prep.Stats.UniqueTerms()))
	return prep, nil
}

// Report is a finished run with the statistics of its corpus.
type Report struct {
	Result *result.TrainingResult
	Stats  analytics.Stats
}

// Run trains a model on docs and assembles the result bundle. Documents with
// no tokens after normalization are listed in Result.Skipped; if none remain
// the run fails with ErrEmptyCorpus.
func (p *Pipeline) Run(ctx context.Context, docs []normalize.Document) (*Report, error) {
	prep, err := p.Preprocess(ctx, docs)
	if err != nil {
		return nil, err
	}
	if len(prep.Docs) == 0 {
		return nil, fmt.Errorf("%d documents, none with tokens: %w", len(docs), internalerr.ErrEmptyCorpus)
	}

	tokens := make([][]string, len(prep.Docs))
	for i, d := range prep.Docs {
		tokens[i] = d.Tokens
	}
	v, err := vocab.Build(tokens, p.th)
	if err != nil {
		return nil, err
	}
	corpus := v.Encode(tokens)
	p.logger.Info("vocabulary built",
		zap.Int("terms", v.Size()),
		zap.Int("no_below", p.th.NoBelow),
		zap.Float64("no_above", p.th.NoAbove))

	var trace []result.PassRecord
	cfg := p.lda
	if cfg.Workers <= 0 {
		cfg.Workers = p.workers
	}
	if cfg.Logger == nil {
		cfg.Logger = p.logger.Named("lda")
	}
	onPass := cfg.OnPass
	cfg.OnPass = func(cp lda.Checkpoint) error {
		trace = append(trace, result.PassRecord{Pass: cp.Pass, PerWordBound: cp.PerWordBound, TopicChange: cp.TopicChange})
		if onPass != nil {
			return onPass(cp)
		}
		return nil
	}

	model, err := lda.Train(ctx, corpus, v.Size(), cfg)
	if err != nil {
		return nil, err
	}

	coh := p.coherence
	if coh.Workers <= 0 {
		coh.Workers = p.workers
	}
	score, err := coherence.Score(ctx, model, v, tokens, coh)
	if err != nil {
		return nil, err
	}
	p.logger.Info("coherence scored",
		zap.String("measure", string(score.Measure)),
		zap.Float64("overall", score.Overall))

	docTopic := lda.Rows(model.DocumentTopicMatrix())
	dominant := assign.DominantAll(docTopic)

	created := p.now().UTC()
	res := &result.TrainingResult{
		Meta: result.Meta{
			RunID:         result.NewRunID(created),
			CreatedAt:     created,
			K:             model.K(),
			VocabSize:     v.Size(),
			NumDocs:       len(prep.Docs),
			SchemaVersion: result.SchemaVersion,
		},
		Documents:  make([]result.DocumentInfo, len(prep.Docs)),
		Vocabulary: v,
		Corpus:     corpus,
		Model: result.TopicModel{
			K:              model.K(),
			WordTopic:      lda.Rows(model.TopicWordMatrix()),
			DocumentTopic:  docTopic,
			DocTopicPrior:  model.Alpha(),
			TopicWordPrior: model.Eta(),
			Passes:         model.Passes(),
			Termination:    string(model.Termination()),
			Trace:          trace,
		},
		Coherence: score,
		Dominant:  dominant,
		Summary:   assign.Aggregate(dominant),
		Skipped:   prep.Skipped,
	}
	for i, d := range prep.Docs {
		res.Documents[i] = result.DocumentInfo{ID: d.ID, Language: string(d.Language), TokenCount: len(d.Tokens)}
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return &Report{Result: res, Stats: prep.Stats}, nil
}
