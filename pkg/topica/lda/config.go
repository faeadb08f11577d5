package lda

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/topica/pkg/topica/internalerr"
)

// PriorKind selects how a Dirichlet prior evolves during training.
type PriorKind int

const (
	// PriorSymmetric keeps 1/K constant.
	PriorSymmetric PriorKind = iota
	// PriorFixed keeps a user-supplied scalar constant.
	PriorFixed
	// PriorEstimated starts from an initial value and is re-estimated from
	// the current expectations once per pass.
	PriorEstimated
)

func (k PriorKind) String() string {
	switch k {
	case PriorFixed:
		return "fixed"
	case PriorSymmetric:
		return "symmetric"
	case PriorEstimated:
		return "estimated"
	default:
		return fmt.Sprintf("PriorKind(%d)", int(k))
	}
}

// Prior is a Dirichlet prior strategy.
type Prior struct {
	Kind  PriorKind
	Value float64 // scalar for PriorFixed, initial value for PriorEstimated
}

// Fixed returns a constant prior v.
func Fixed(v float64) Prior { return Prior{Kind: PriorFixed, Value: v} }

// Symmetric returns the constant prior 1/K.
func Symmetric() Prior { return Prior{Kind: PriorSymmetric} }

// Estimated returns a learned prior starting at init; init <= 0 starts at 1/K.
func Estimated(init float64) Prior { return Prior{Kind: PriorEstimated, Value: init} }

func (p Prior) String() string {
	if p.Kind == PriorSymmetric {
		return p.Kind.String()
	}
	return fmt.Sprintf("%s(%g)", p.Kind, p.Value)
}

// ParsePrior reads a prior from its configuration form: "symmetric",
// "auto" or "estimated" (learned from 1/K), "auto:<init>", or a number for a
// fixed prior.
func ParsePrior(s string) (Prior, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "symmetric":
		return Symmetric(), nil
	case "auto", "estimated":
		return Estimated(0), nil
	}
	if rest, ok := strings.CutPrefix(s, "auto:"); ok {
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil || v <= 0 {
			return Prior{}, fmt.Errorf("%w: bad prior initial value %q", internalerr.ErrInvalidConfig, rest)
		}
		return Estimated(v), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Prior{}, fmt.Errorf("%w: unknown prior %q", internalerr.ErrInvalidConfig, s)
	}
	p := Fixed(v)
	return p, p.validate("prior")
}

func (p Prior) validate(name string) error {
	switch p.Kind {
	case PriorFixed:
		if p.Value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %g", internalerr.ErrInvalidConfig, name, p.Value)
		}
	case PriorSymmetric, PriorEstimated:
	default:
		return fmt.Errorf("%w: unknown %s prior kind %d", internalerr.ErrInvalidConfig, name, p.Kind)
	}
	return nil
}

// initial returns the starting prior vector of length n for k topics.
func (p Prior) initial(n, k int) []float64 {
	v := 1 / float64(k)
	if p.Kind == PriorFixed || (p.Kind == PriorEstimated && p.Value > 0) {
		v = p.Value
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Config holds training parameters.
type Config struct {
	K              int     // number of topics
	Passes         int     // maximum passes over the corpus
	Iterations     int     // maximum local iterations per document
	GammaThreshold float64 // local convergence on mean |Δγ|
	Tolerance      float64 // global convergence on the largest per-topic L1 change, 0 disables

	Alpha Prior // document-topic prior, symmetric when zero
	Eta   Prior // topic-word prior, symmetric when zero

	Seed    uint64
	Workers int // <= 0 means runtime.NumCPU()
	// Shards fixes how documents are grouped for the parallel local step.
	// Results depend on Seed and Shards, never on Workers.
	Shards int

	Logger *zap.Logger
	// OnPass is called after every pass. Returning ErrStopTraining ends
	// training early with a usable model; any other error aborts it.
	OnPass func(Checkpoint) error
}

// DefaultConfig returns the parameters of the reference run: six topics,
// fifty passes, seed 100 and both priors learned from the data.
func DefaultConfig() Config {
	return Config{
		K:              6,
		Passes:         50,
		Iterations:     50,
		GammaThreshold: 0.001,
		Tolerance:      1e-5,
		Alpha:          Estimated(0),
		Eta:            Estimated(0),
		Seed:           100,
		Shards:         32,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Iterations <= 0 {
		c.Iterations = d.Iterations
	}
	if c.GammaThreshold <= 0 {
		c.GammaThreshold = d.GammaThreshold
	}
	if c.Shards <= 0 {
		c.Shards = d.Shards
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Validate checks the parameters that cannot be defaulted.
func (c Config) Validate() error {
	if c.K <= 0 {
		return fmt.Errorf("%w: K must be > 0, got %d", internalerr.ErrInvalidConfig, c.K)
	}
	if c.Passes <= 0 {
		return fmt.Errorf("%w: passes must be > 0, got %d", internalerr.ErrInvalidConfig, c.Passes)
	}
	if err := c.Alpha.validate("alpha"); err != nil {
		return err
	}
	return c.Eta.validate("eta")
}
