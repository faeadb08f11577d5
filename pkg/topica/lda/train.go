package lda

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// Train fits a model with cfg to corpus, whose term ids must lie in
// [0, vocabSize). Invalid parameters fail before any iteration runs.
func Train(ctx context.Context, corpus vocab.Corpus, vocabSize int, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: corpus has no documents", internalerr.ErrInvalidConfig)
	}
	if vocabSize <= 0 {
		return nil, fmt.Errorf("%w: vocabulary size must be > 0, got %d", internalerr.ErrInvalidConfig, vocabSize)
	}
	var tokens int
	for d, bow := range corpus {
		for _, tc := range bow {
			if tc.ID < 0 || tc.ID >= vocabSize {
				return nil, fmt.Errorf("%w: document %d has term id %d outside [0, %d)",
					internalerr.ErrInvalidInput, d, tc.ID, vocabSize)
			}
			tokens += tc.Count
		}
	}
	cfg.applyDefaults()

	m := &Model{cfg: cfg, k: cfg.K, v: vocabSize}
	m.initialize()
	if err := m.train(ctx, corpus, tokens); err != nil {
		return nil, err
	}
	return m, nil
}

// initialize draws the starting topic-word parameters and priors.
func (m *Model) initialize() {
	dist := gammaDist(docSource(m.cfg.Seed, initStream, 0))
	m.lambda = mat.NewDense(m.k, m.v, nil)
	for k := 0; k < m.k; k++ {
		row := m.lambda.RawRowView(k)
		for w := range row {
			row[w] = dist.Rand()
		}
	}
	m.elogbeta = mat.NewDense(m.k, m.v, nil)
	m.expElogbeta = mat.NewDense(m.k, m.v, nil)
	m.refreshBeta()

	m.alpha = m.cfg.Alpha.initial(m.k, m.k)
	m.eta = m.cfg.Eta.initial(m.v, m.k)
	m.state = StateInitialized
}

func (m *Model) refreshBeta() {
	for k := 0; k < m.k; k++ {
		dirichletExpectation(m.elogbeta.RawRowView(k), m.lambda.RawRowView(k))
		exp := m.expElogbeta.RawRowView(k)
		for w, x := range m.elogbeta.RawRowView(k) {
			exp[w] = math.Exp(x)
		}
	}
}

func (m *Model) train(ctx context.Context, corpus vocab.Corpus, tokens int) error {
	log := m.cfg.Logger
	m.state = StateTraining
	n := float64(len(corpus))

	for pass := 0; pass < m.cfg.Passes; pass++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("train pass %d: %w", pass+1, err)
		}

		stats, err := m.estep(ctx, corpus, uint64(pass+1), true)
		if err != nil {
			return fmt.Errorf("train pass %d: %w", pass+1, err)
		}
		rho := math.Pow(float64(pass+1), -0.5)

		if m.cfg.Alpha.Kind == PriorEstimated {
			floats.Scale(1/n, stats.elogthetaSum)
			if !updateDirichletPrior(m.alpha, n, stats.elogthetaSum, rho) {
				log.Debug("alpha update rejected", zap.Int("pass", pass+1))
			}
		}

		before := m.TopicWordMatrix()
		m.mstep(stats.sstats)
		if m.cfg.Eta.Kind == PriorEstimated {
			m.updateEta(rho)
		}
		m.refreshBeta()
		change := maxTopicChange(before, m.TopicWordMatrix())

		bound, err := m.bound(ctx, corpus, stats.gamma)
		if err != nil {
			return fmt.Errorf("train pass %d: %w", pass+1, err)
		}
		m.passes = pass + 1

		cp := Checkpoint{
			Pass:        m.passes,
			Bound:       bound,
			TopicChange: change,
			Alpha:       m.Alpha(),
			Eta:         m.Eta(),
		}
		if tokens > 0 {
			cp.PerWordBound = bound / float64(tokens)
		}
		log.Debug("pass complete",
			zap.Int("pass", cp.Pass),
			zap.Float64("per_word_bound", cp.PerWordBound),
			zap.Float64("topic_change", cp.TopicChange))

		if m.cfg.OnPass != nil {
			if err := m.cfg.OnPass(cp); err != nil {
				if !errors.Is(err, ErrStopTraining) {
					return fmt.Errorf("train pass %d: %w", m.passes, err)
				}
				m.term = TerminationStopped
				break
			}
		}
		if change < m.cfg.Tolerance {
			m.term = TerminationConverged
			break
		}
	}
	if m.term == TerminationNone {
		m.term = TerminationMaxPasses
	}

	final, err := m.estep(ctx, corpus, finalStream, false)
	if err != nil {
		return fmt.Errorf("final inference: %w", err)
	}
	m.gamma = final.gamma
	m.state = StateReady

	log.Info("training finished",
		zap.Int("topics", m.k),
		zap.Int("documents", len(corpus)),
		zap.Int("passes", m.passes),
		zap.String("termination", string(m.term)))
	return nil
}

// passStats are the reduced results of one local step.
type passStats struct {
	sstats       *mat.Dense // K×V expected topic-word counts
	elogthetaSum []float64  // Σ_d E[log θ_d]
	gamma        *mat.Dense // N×K
}

// estep runs the local step over every document. Each shard accumulates its
// own sparse statistics. Finished shards are folded into the total strictly
// in shard order, so the sum does not depend on scheduling and only shards
// still waiting for an earlier one stay buffered.
func (m *Model) estep(ctx context.Context, corpus vocab.Corpus, stream uint64, collect bool) (*passStats, error) {
	ranges := shardRanges(len(corpus), m.cfg.Shards)
	stats := &passStats{
		elogthetaSum: make([]float64, m.k),
		gamma:        mat.NewDense(len(corpus), m.k, nil),
	}
	if collect {
		stats.sstats = mat.NewDense(m.k, m.v, nil)
	}

	type shardResult struct {
		ss  *shardStats
		sum []float64
	}
	var (
		mu      sync.Mutex
		pending = make(map[int]shardResult)
		next    int
	)
	fold := func(s int, r shardResult) {
		mu.Lock()
		defer mu.Unlock()
		pending[s] = r
		for {
			ready, ok := pending[next]
			if !ok {
				return
			}
			delete(pending, next)
			if ready.ss != nil {
				ready.ss.addTo(stats.sstats)
			}
			floats.Add(stats.elogthetaSum, ready.sum)
			next++
		}
	}

	err := m.forEachShard(ctx, ranges, func(s, lo, hi int) error {
		var ss *shardStats
		if collect {
			ss = newShardStats(m.k)
		}
		sum := make([]float64, m.k)
		sc := newScratch(m.k)
		for d := lo; d < hi; d++ {
			g := m.inferDoc(corpus[d], docSource(m.cfg.Seed, stream, d), sc, ss)
			stats.gamma.SetRow(d, g)
			floats.Add(sum, sc.elogtheta)
		}
		fold(s, shardResult{ss: ss, sum: sum})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// mstep sets lambda to eta plus the expected counts.
func (m *Model) mstep(sstats *mat.Dense) {
	for k := 0; k < m.k; k++ {
		row := m.lambda.RawRowView(k)
		copy(row, sstats.RawRowView(k))
		floats.Add(row, m.eta)
	}
}

// updateEta re-estimates the topic-word prior from the mean E[log β] over
// topics.
func (m *Model) updateEta(rho float64) {
	logphat := make([]float64, m.v)
	elog := make([]float64, m.v)
	for k := 0; k < m.k; k++ {
		dirichletExpectation(elog, m.lambda.RawRowView(k))
		floats.Add(logphat, elog)
	}
	floats.Scale(1/float64(m.k), logphat)
	if !updateDirichletPrior(m.eta, float64(m.k), logphat, rho) {
		m.cfg.Logger.Debug("eta update rejected", zap.Int("pass", m.passes+1))
	}
}

// shardRanges splits n documents into at most shards contiguous ranges of
// near-equal size. The split depends only on n and shards.
func shardRanges(n, shards int) [][2]int {
	if shards > n {
		shards = n
	}
	ranges := make([][2]int, 0, shards)
	for s := 0; s < shards; s++ {
		lo, hi := s*n/shards, (s+1)*n/shards
		if hi > lo {
			ranges = append(ranges, [2]int{lo, hi})
		}
	}
	return ranges
}

// forEachShard runs fn for every shard on the worker pool.
func (m *Model) forEachShard(ctx context.Context, ranges [][2]int, fn func(shard, lo, hi int) error) error {
	workers := m.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for s, r := range ranges {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(s, r[0], r[1])
		})
	}
	return g.Wait()
}

// maxTopicChange is the largest L1 distance between matching rows of a and
// b. Rows are distributions, so it lies in [0, 2] whatever the vocabulary
// size.
func maxTopicChange(a, b *mat.Dense) float64 {
	r, _ := a.Dims()
	var largest float64
	for i := 0; i < r; i++ {
		ra, rb := a.RawRowView(i), b.RawRowView(i)
		var l1 float64
		for j := range ra {
			l1 += math.Abs(ra[j] - rb[j])
		}
		largest = math.Max(largest, l1)
	}
	return largest
}
