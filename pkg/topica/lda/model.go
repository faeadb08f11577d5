// Package lda fits Latent Dirichlet Allocation topic models with batch
// variational Bayes.
//
// Training alternates a local step, which fits per-document topic
// proportions against fixed topic-word parameters, and a global step, which
// rebuilds the topic-word parameters from the accumulated statistics. The
// local step runs on a worker pool over a fixed set of document shards whose
// statistics are reduced in shard order, so a given seed produces the same
// model whatever the number of workers.
package lda

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/vocab"
)

// ErrStopTraining may be returned from Config.OnPass to end training at the
// current pass boundary and keep the model.
var ErrStopTraining = errors.New("stop training")

// State is the lifecycle position of a Model.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateTraining
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateTraining:
		return "training"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Termination records why training stopped.
type Termination string

const (
	TerminationNone      Termination = ""
	TerminationConverged Termination = "converged"
	TerminationMaxPasses Termination = "max_passes"
	TerminationStopped   Termination = "stopped"
)

// Checkpoint describes the model after one pass.
type Checkpoint struct {
	Pass         int       // 1-based
	Bound        float64   // variational lower bound on the corpus log likelihood
	PerWordBound float64   // Bound divided by the corpus token count
	TopicChange  float64   // largest L1 change of any topic-word distribution
	Alpha        []float64 // document-topic prior after the pass
	Eta          []float64 // topic-word prior after the pass
}

// TermWeight is a term id with its probability under a topic.
type TermWeight struct {
	ID     int
	Weight float64
}

// TopicProb is a topic id with its probability in a document.
type TopicProb struct {
	Topic int
	Prob  float64
}

// Model is a trained topic model. After Train returns it is read-only and
// safe for concurrent use.
type Model struct {
	cfg   Config
	k, v  int
	state State
	term  Termination

	lambda      *mat.Dense // K×V variational topic-word parameters
	elogbeta    *mat.Dense // E[log β] under lambda
	expElogbeta *mat.Dense
	alpha       []float64 // K
	eta         []float64 // V
	gamma       *mat.Dense // N×K variational document parameters of the final local step

	passes int
}

// K returns the number of topics.
func (m *Model) K() int { return m.k }

// VocabSize returns the number of term ids the model covers.
func (m *Model) VocabSize() int { return m.v }

// NumDocs returns the number of training documents.
func (m *Model) NumDocs() int {
	if m.gamma == nil {
		return 0
	}
	r, _ := m.gamma.Dims()
	return r
}

// State returns the lifecycle state.
func (m *Model) State() State { return m.state }

// Termination returns why training stopped.
func (m *Model) Termination() Termination { return m.term }

// Passes returns the number of completed passes.
func (m *Model) Passes() int { return m.passes }

// Alpha returns a copy of the document-topic prior.
func (m *Model) Alpha() []float64 { return append([]float64(nil), m.alpha...) }

// Eta returns a copy of the topic-word prior.
func (m *Model) Eta() []float64 { return append([]float64(nil), m.eta...) }

func (m *Model) checkTopic(topic int) error {
	if topic < 0 || topic >= m.k {
		return fmt.Errorf("%w: topic %d out of range [0, %d)", internalerr.ErrInvalidInput, topic, m.k)
	}
	return nil
}

// TopicWordDistribution returns the normalized word distribution of topic.
func (m *Model) TopicWordDistribution(topic int) ([]float64, error) {
	if err := m.checkTopic(topic); err != nil {
		return nil, err
	}
	return normalized(m.lambda.RawRowView(topic)), nil
}

// TopicWords returns the topN most probable terms of topic, highest first.
// Equal weights are ordered by ascending term id.
func (m *Model) TopicWords(topic, topN int) ([]TermWeight, error) {
	dist, err := m.TopicWordDistribution(topic)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(dist))
	for i := range ids {
		ids[i] = i
	}
	sort.SliceStable(ids, func(a, b int) bool { return dist[ids[a]] > dist[ids[b]] })
	if topN > 0 && topN < len(ids) {
		ids = ids[:topN]
	}
	out := make([]TermWeight, len(ids))
	for i, id := range ids {
		out[i] = TermWeight{ID: id, Weight: dist[id]}
	}
	return out, nil
}

// TopicWordMatrix returns the K×V matrix of topic-word distributions.
func (m *Model) TopicWordMatrix() *mat.Dense {
	out := mat.NewDense(m.k, m.v, nil)
	for k := 0; k < m.k; k++ {
		out.SetRow(k, normalized(m.lambda.RawRowView(k)))
	}
	return out
}

// DocumentTopicMatrix returns the N×K matrix of document-topic distributions
// of the training documents.
func (m *Model) DocumentTopicMatrix() *mat.Dense {
	if m.gamma == nil {
		return nil
	}
	n, _ := m.gamma.Dims()
	out := mat.NewDense(n, m.k, nil)
	for d := 0; d < n; d++ {
		out.SetRow(d, normalized(m.gamma.RawRowView(d)))
	}
	return out
}

// Rows converts a dense matrix into row slices.
func Rows(d *mat.Dense) [][]float64 {
	if d == nil {
		return nil
	}
	r, _ := d.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), d.RawRowView(i)...)
	}
	return out
}

// InferDocument returns the full topic distribution of an unseen document.
// Inference is seeded, so the same document always yields the same vector.
func (m *Model) InferDocument(bow vocab.BOW) ([]float64, error) {
	if m.state != StateReady {
		return nil, fmt.Errorf("%w: model is %s", internalerr.ErrInvalidInput, m.state)
	}
	for _, tc := range bow {
		if tc.ID < 0 || tc.ID >= m.v {
			return nil, fmt.Errorf("%w: term id %d out of range [0, %d)", internalerr.ErrInvalidInput, tc.ID, m.v)
		}
	}
	sc := newScratch(m.k)
	gamma := m.inferDoc(bow, docSource(m.cfg.Seed, inferStream, 0), sc, nil)
	return normalized(gamma), nil
}

// DocumentTopics returns the topics of an unseen document whose probability
// is at least minProb, ordered by topic id.
func (m *Model) DocumentTopics(bow vocab.BOW, minProb float64) ([]TopicProb, error) {
	theta, err := m.InferDocument(bow)
	if err != nil {
		return nil, err
	}
	var out []TopicProb
	for k, p := range theta {
		if p >= minProb {
			out = append(out, TopicProb{Topic: k, Prob: p})
		}
	}
	return out, nil
}

func normalized(row []float64) []float64 {
	out := append([]float64(nil), row...)
	sum := floats.Sum(out)
	if sum <= 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	floats.Scale(1/sum, out)
	return out
}
