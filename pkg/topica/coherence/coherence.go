// Package coherence scores how semantically consistent the top words of each
// topic are, using co-occurrence statistics from sliding windows over the
// normalized documents.
package coherence

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/lda"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// Measure selects the coherence formula.
type Measure string

const (
	// MeasureNPMI averages normalized PMI over all pairs of top words.
	MeasureNPMI Measure = "c_npmi"
	// MeasureCV compares each top word's NPMI context vector with the
	// topic's summed context vector by cosine similarity.
	MeasureCV Measure = "c_v"
)

// Floor replaces pair scores for words that never co-occur and any
// non-finite intermediate value.
const Floor = -1.0

const (
	DefaultTopN    = 10
	DefaultEpsilon = 1e-12
)

// DefaultWindow returns the sliding window size used with m.
func DefaultWindow(m Measure) int {
	if m == MeasureCV {
		return 110
	}
	return 10
}

// Options configures scoring. Zero fields take defaults.
type Options struct {
	Measure Measure
	TopN    int
	Window  int
	Epsilon float64
	Workers int
}

func (o *Options) applyDefaults() error {
	if o.Measure == "" {
		o.Measure = MeasureNPMI
	}
	if o.Measure != MeasureNPMI && o.Measure != MeasureCV {
		return fmt.Errorf("%w: unknown coherence measure %q", internalerr.ErrInvalidConfig, o.Measure)
	}
	if o.TopN == 0 {
		o.TopN = DefaultTopN
	}
	if o.TopN < 2 {
		return fmt.Errorf("%w: coherence needs at least 2 top words, got %d", internalerr.ErrInvalidConfig, o.TopN)
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow(o.Measure)
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	return nil
}

// TopicModel is the part of a trained model coherence needs.
type TopicModel interface {
	K() int
	TopicWords(topic, topN int) ([]lda.TermWeight, error)
}

// Result holds per-topic and overall coherence.
type Result struct {
	Measure  Measure   `json:"measure" msgpack:"measure"`
	Overall  float64   `json:"overall" msgpack:"overall"`
	PerTopic []float64 `json:"per_topic" msgpack:"per_topic"`
	TopN     int       `json:"top_n" msgpack:"top_n"`
	Window   int       `json:"window" msgpack:"window"`
}

// Score computes coherence of every topic of model against docs, the
// normalized token sequences of the corpus (not their BOW vectors: window
// counting needs token order).
func Score(ctx context.Context, model TopicModel, v *vocab.Vocabulary, docs [][]string, opts Options) (*Result, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	k := model.K()
	if k <= 0 {
		return nil, fmt.Errorf("%w: model has no topics", internalerr.ErrInvalidInput)
	}

	// Collect the top words of every topic and index the distinct ones.
	index := make(map[string]int)
	topics := make([][]int, k)
	for t := 0; t < k; t++ {
		words, err := model.TopicWords(t, opts.TopN)
		if err != nil {
			return nil, fmt.Errorf("coherence topic %d: %w", t, err)
		}
		for _, w := range words {
			term := v.Term(w.ID)
			if term == "" {
				return nil, fmt.Errorf("%w: topic %d term id %d not in vocabulary", internalerr.ErrInvalidInput, t, w.ID)
			}
			idx, ok := index[term]
			if !ok {
				idx = len(index)
				index[term] = idx
			}
			topics[t] = append(topics[t], idx)
		}
	}

	counts, err := countWindows(ctx, docs, index, opts.Window, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("count windows: %w", err)
	}

	s := scorer{counts: counts, eps: opts.Epsilon}
	res := &Result{
		Measure:  opts.Measure,
		PerTopic: make([]float64, k),
		TopN:     opts.TopN,
		Window:   opts.Window,
	}
	for t, words := range topics {
		if opts.Measure == MeasureCV {
			res.PerTopic[t] = s.cv(words)
		} else {
			res.PerTopic[t] = s.meanNPMI(words)
		}
	}
	res.Overall = floats.Sum(res.PerTopic) / float64(k)
	return res, nil
}

type scorer struct {
	counts *Counter
	eps    float64
}

// npmi is log(p(a,b)/(p(a)p(b))) / -log p(a,b) with p(a,b) smoothed by eps.
// Pairs that never share a window score Floor.
func (s scorer) npmi(a, b int) float64 {
	c := s.counts
	nab := c.PairCount(a, b)
	if nab == 0 || c.N == 0 {
		return Floor
	}
	n := float64(c.N)
	pa, pb := float64(c.Nx[a])/n, float64(c.Nx[b])/n
	pab := float64(nab)/n + s.eps
	return finiteOrFloor(math.Log(pab/(pa*pb)) / -math.Log(pab))
}

func (s scorer) meanNPMI(words []int) float64 {
	var sum float64
	var pairs int
	for i := range words {
		for j := i + 1; j < len(words); j++ {
			sum += s.npmi(words[i], words[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// cv scores each word's context vector against the topic vector, the sum of
// all the topic's context vectors, and averages the cosines.
func (s scorer) cv(words []int) float64 {
	if len(words) == 0 {
		return 0
	}
	vectors := make([][]float64, len(words))
	topic := make([]float64, len(words))
	for i, w := range words {
		vec := make([]float64, len(words))
		for j, u := range words {
			vec[j] = s.npmi(w, u)
		}
		vectors[i] = vec
		floats.Add(topic, vec)
	}

	var sum float64
	for _, vec := range vectors {
		sum += finiteOrFloor(cosine(vec, topic))
	}
	return sum / float64(len(words))
}

func cosine(a, b []float64) float64 {
	return floats.Dot(a, b) / (floats.Norm(a, 2) * floats.Norm(b, 2))
}

func finiteOrFloor(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Floor
	}
	return x
}
