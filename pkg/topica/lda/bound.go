package lda

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/topica/pkg/topica/vocab"
)

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// bound computes the variational lower bound of corpus under the current
// topic-word parameters and the given document parameters. Document terms
// are summed per shard and the shards combined in order.
func (m *Model) bound(ctx context.Context, corpus vocab.Corpus, gamma *mat.Dense) (float64, error) {
	ranges := shardRanges(len(corpus), m.cfg.Shards)
	partial := make([]float64, len(ranges))

	var sumAlpha, lgammaAlpha float64
	for _, a := range m.alpha {
		sumAlpha += a
		lgammaAlpha += lgamma(a)
	}

	err := m.forEachShard(ctx, ranges, func(s, lo, hi int) error {
		elogtheta := make([]float64, m.k)
		terms := make([]float64, m.k)
		var score float64
		for d := lo; d < hi; d++ {
			g := gamma.RawRowView(d)
			dirichletExpectation(elogtheta, g)

			for _, tc := range corpus[d] {
				for k := range terms {
					terms[k] = elogtheta[k] + m.elogbeta.At(k, tc.ID)
				}
				score += float64(tc.Count) * floats.LogSumExp(terms)
			}
			for k, gk := range g {
				score += (m.alpha[k]-gk)*elogtheta[k] + lgamma(gk)
			}
			score += lgamma(sumAlpha) - lgammaAlpha - lgamma(floats.Sum(g))
		}
		partial[s] = score
		return nil
	})
	if err != nil {
		return 0, err
	}

	var score float64
	for _, p := range partial {
		score += p
	}

	var sumEta, lgammaEta float64
	for _, e := range m.eta {
		sumEta += e
		lgammaEta += lgamma(e)
	}
	for k := 0; k < m.k; k++ {
		lambda := m.lambda.RawRowView(k)
		elog := m.elogbeta.RawRowView(k)
		for w, l := range lambda {
			score += (m.eta[w]-l)*elog[w] + lgamma(l)
		}
		score += lgamma(sumEta) - lgammaEta - lgamma(floats.Sum(lambda))
	}
	return score, nil
}
