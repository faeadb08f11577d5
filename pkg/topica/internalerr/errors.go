package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Corpus-level failures abort a run before training starts.
	ErrEmptyCorpus     = errors.New("empty corpus")
	ErrEmptyVocabulary = errors.New("empty vocabulary")

	// Per-document failures are logged and the document is skipped.
	ErrIO            = errors.New("document unreadable")
	ErrNormalization = errors.New("normalization resource unavailable")

	// ErrIncompatibleResult is returned when a decoded result bundle does not
	// match its own dimensional metadata.
	ErrIncompatibleResult = errors.New("incompatible result bundle")
)
