// Package store persists training runs.
package store

import (
	"context"
	"time"

	"github.com/cognicore/topica/pkg/topica/result"
)

// TopTermsStored is how many terms per topic a store indexes for
// TopicTerms queries.
const TopTermsStored = 30

// Store persists training results keyed by run id.
type Store interface {
	Close() error

	// SaveRun inserts or replaces a run.
	SaveRun(ctx context.Context, r *result.TrainingResult) error
	// GetRun returns a run or an error wrapping ErrNotFound.
	GetRun(ctx context.Context, runID string) (*result.TrainingResult, error)
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]RunInfo, error)
	// DeleteRun removes a run. Deleting a missing run wraps ErrNotFound.
	DeleteRun(ctx context.Context, runID string) error

	// TopicTerms returns up to n indexed terms of one topic of a run,
	// highest weight first, without decoding the whole bundle.
	TopicTerms(ctx context.Context, runID string, topic, n int) ([]result.WordWeight, error)
}

// RunInfo is the listing view of a run.
type RunInfo struct {
	RunID       string
	CreatedAt   time.Time
	K           int
	VocabSize   int
	NumDocs     int
	Passes      int
	Termination string
	Measure     string
	Coherence   float64
}

// Info extracts the listing view of r.
func Info(r *result.TrainingResult) RunInfo {
	info := RunInfo{
		RunID:       r.Meta.RunID,
		CreatedAt:   r.Meta.CreatedAt,
		K:           r.Meta.K,
		VocabSize:   r.Meta.VocabSize,
		NumDocs:     r.Meta.NumDocs,
		Passes:      r.Model.Passes,
		Termination: r.Model.Termination,
	}
	if r.Coherence != nil {
		info.Measure = string(r.Coherence.Measure)
		info.Coherence = r.Coherence.Overall
	}
	return info
}
