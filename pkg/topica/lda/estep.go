package lda

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cognicore/topica/pkg/topica/vocab"
)

// phiFloor keeps normalizers away from zero when expectations underflow.
const phiFloor = 1e-100

// Random streams. Pass p of training uses stream p+1 for its documents.
const (
	initStream  uint64 = 0
	finalStream uint64 = 1 << 30
	inferStream uint64 = 1<<30 + 1
)

// docSource returns the random source for document d in stream.
func docSource(seed, stream uint64, d int) rand.Source {
	return rand.NewPCG(seed, stream<<32|uint64(uint32(d)))
}

// gammaDist is the Gamma(100, 1/100) initializer: mean 1, small variance.
func gammaDist(src rand.Source) distuv.Gamma {
	return distuv.Gamma{Alpha: 100, Beta: 100, Src: src}
}

// dirichletExpectation writes E[log θ] for θ ~ Dir(v) into dst.
func dirichletExpectation(dst, v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	psiSum := mathext.Digamma(sum)
	for i, x := range v {
		dst[i] = mathext.Digamma(x) - psiSum
	}
}

// trigamma is ψ'(x), the Hurwitz zeta function ζ(2, x).
func trigamma(x float64) float64 {
	return mathext.Zeta(2, x)
}

// scratch is per-worker working memory for the local step.
type scratch struct {
	gamma, lastGamma        []float64
	elogtheta, expElogtheta []float64
	phinorm                 []float64
}

func newScratch(k int) *scratch {
	return &scratch{
		gamma:        make([]float64, k),
		lastGamma:    make([]float64, k),
		elogtheta:    make([]float64, k),
		expElogtheta: make([]float64, k),
	}
}

func (s *scratch) setTheta() {
	dirichletExpectation(s.elogtheta, s.gamma)
	for i, x := range s.elogtheta {
		s.expElogtheta[i] = math.Exp(x)
	}
}

func (m *Model) setPhinorm(bow vocab.BOW, s *scratch) {
	for n, tc := range bow {
		var norm float64
		for k := 0; k < m.k; k++ {
			norm += s.expElogtheta[k] * m.expElogbeta.At(k, tc.ID)
		}
		s.phinorm[n] = norm + phiFloor
	}
}

// inferDoc runs the local step for one document and returns its gamma.
// The returned slice belongs to s and is overwritten by the next call.
// When sstats is non-nil the document's sufficient statistics are added to it.
func (m *Model) inferDoc(bow vocab.BOW, src rand.Source, s *scratch, sstats *shardStats) []float64 {
	dist := gammaDist(src)
	for k := range s.gamma {
		s.gamma[k] = dist.Rand()
	}
	if cap(s.phinorm) < len(bow) {
		s.phinorm = make([]float64, len(bow))
	}
	s.phinorm = s.phinorm[:len(bow)]

	s.setTheta()
	m.setPhinorm(bow, s)

	for it := 0; it < m.cfg.Iterations; it++ {
		copy(s.lastGamma, s.gamma)
		for k := 0; k < m.k; k++ {
			row := m.expElogbeta.RawRowView(k)
			var acc float64
			for n, tc := range bow {
				acc += float64(tc.Count) / s.phinorm[n] * row[tc.ID]
			}
			s.gamma[k] = m.alpha[k] + s.expElogtheta[k]*acc
		}
		s.setTheta()
		m.setPhinorm(bow, s)

		var change float64
		for k := range s.gamma {
			change += math.Abs(s.gamma[k] - s.lastGamma[k])
		}
		if change/float64(m.k) < m.cfg.GammaThreshold {
			break
		}
	}

	if sstats != nil {
		for n, tc := range bow {
			col := sstats.column(tc.ID)
			for k := range col {
				col[k] += s.expElogtheta[k] * float64(tc.Count) / s.phinorm[n] * m.expElogbeta.At(k, tc.ID)
			}
		}
	}
	return s.gamma
}

// shardStats holds the expected topic-word counts of one shard for the terms
// its documents use, so a shard costs K values per distinct term rather than
// K×V. Column c of vals belongs to term ids[c].
type shardStats struct {
	k    int
	ids  []int
	col  map[int]int
	vals []float64
}

func newShardStats(k int) *shardStats {
	return &shardStats{k: k, col: make(map[int]int)}
}

// column returns the K counts of term id. The slice is valid until the next
// call adds a term.
func (s *shardStats) column(id int) []float64 {
	c, ok := s.col[id]
	if !ok {
		c = len(s.ids)
		s.col[id] = c
		s.ids = append(s.ids, id)
		s.vals = append(s.vals, make([]float64, s.k)...)
	}
	return s.vals[c*s.k : (c+1)*s.k]
}

// addTo adds the shard's counts into the K×V matrix dst.
func (s *shardStats) addTo(dst *mat.Dense) {
	for c, id := range s.ids {
		for k, x := range s.vals[c*s.k : (c+1)*s.k] {
			dst.Set(k, id, dst.At(k, id)+x)
		}
	}
}

// updateDirichletPrior takes one Newton step on a Dirichlet prior given the
// mean expected log probabilities logphat over n draws, damped by rho. The
// step is rejected when it would make any component non-positive.
func updateDirichletPrior(prior []float64, n float64, logphat []float64, rho float64) bool {
	var sum float64
	for _, p := range prior {
		sum += p
	}
	psiSum := mathext.Digamma(sum)
	c := n * trigamma(sum)

	gradf := make([]float64, len(prior))
	q := make([]float64, len(prior))
	var ratio, invQ float64
	for i, p := range prior {
		gradf[i] = n * (psiSum - mathext.Digamma(p) + logphat[i])
		q[i] = -n * trigamma(p)
		ratio += gradf[i] / q[i]
		invQ += 1 / q[i]
	}
	b := ratio / (1/c + invQ)

	next := make([]float64, len(prior))
	for i, p := range prior {
		next[i] = p - rho*(gradf[i]-b)/q[i]
		if !(next[i] > 0) || math.IsInf(next[i], 0) {
			return false
		}
	}
	copy(prior, next)
	return true
}
