// Package normalize turns raw multilingual text into per-document token
// sequences: language detection, cleaning, tokenizing, stopword filtering and
// lemmatization (English) or stemming (Spanish).
package normalize

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/stoplist"
)

// Options configures a Normalizer. The zero value is usable.
type Options struct {
	// StopwordsPath overrides the embedded stopword resource.
	StopwordsPath string
	// Stopwords, when set, replaces the resource and StopwordsPath is ignored.
	// ExtraStopwords are added to it.
	Stopwords *stoplist.Manager
	// ExtraStopwords are added for every language.
	ExtraStopwords []string
	// RemoveTerms are dropped after reduction (domain words such as an
	// organization name that dominate every topic).
	RemoveTerms []string

	// Tokenizer replaces the built-in Unicode tokenizer. It is probed once at
	// construction; a failing tokenizer is replaced by the regex fallback.
	Tokenizer Tokenizer
	// Lemmatizer replaces the dictionary lemmatizer. When nil the golem
	// dictionary is loaded, falling back to suffix rules if that fails.
	Lemmatizer Lemmatizer

	ChunkThreshold int // default DefaultChunkThreshold
	ChunkSize      int // default DefaultChunkSize

	Logger *zap.Logger
}

// Capabilities reports which resources a Normalizer ended up with.
type Capabilities struct {
	Tokenizer  TokenizerKind
	Lemmatizer LemmatizerKind
	// Stopwords is false when no stopword resource could be read and only
	// the configured extra words are filtered.
	Stopwords bool
}

func (c Capabilities) String() string {
	return fmt.Sprintf("tokenizer=%s lemmatizer=%s stopwords=%t", c.Tokenizer, c.Lemmatizer, c.Stopwords)
}

// Normalizer converts raw text into filtered, reduced tokens.
// It is safe for concurrent use once constructed.
type Normalizer struct {
	stops     *stoplist.Manager
	remove    map[string]struct{}
	tokenizer Tokenizer
	lemma     Lemmatizer
	caps      Capabilities
	threshold int
	size      int
	logger    *zap.Logger
}

// New builds a Normalizer. Resource problems never fail construction: they
// are logged and the matching fallback is used for the Normalizer's lifetime.
func New(opts Options) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{
		remove:    make(map[string]struct{}, len(opts.RemoveTerms)),
		threshold: opts.ChunkThreshold,
		size:      opts.ChunkSize,
		logger:    logger,
	}
	if n.threshold <= 0 {
		n.threshold = DefaultChunkThreshold
	}
	if n.size <= 0 {
		n.size = DefaultChunkSize
	}
	for _, t := range opts.RemoveTerms {
		n.remove[strings.ToLower(t)] = struct{}{}
	}

	n.stops, n.caps.Stopwords = loadStopwords(opts, logger)

	n.tokenizer, n.caps.Tokenizer = unicodeTokenizer{}, TokenizerFull
	if opts.Tokenizer != nil {
		n.tokenizer = opts.Tokenizer
	}
	if err := probeTokenizer(n.tokenizer); err != nil {
		logger.Warn("tokenizer unavailable, using regex fallback",
			zap.Error(fmt.Errorf("%w: %v", internalerr.ErrNormalization, err)))
		n.tokenizer, n.caps.Tokenizer = regexTokenizer{}, TokenizerFallback
	}

	n.lemma, n.caps.Lemmatizer = opts.Lemmatizer, LemmatizerDictionary
	if n.lemma == nil {
		lem, err := NewDictionaryLemmatizer()
		if err != nil {
			logger.Warn("lemma dictionary unavailable, using suffix rules",
				zap.Error(fmt.Errorf("%w: %v", internalerr.ErrNormalization, err)))
			lem = ruleLemmatizer{}
			n.caps.Lemmatizer = LemmatizerRules
		}
		n.lemma = lem
	}

	logger.Debug("normalizer ready", zap.Stringer("capabilities", n.caps))
	return n
}

func loadStopwords(opts Options, logger *zap.Logger) (*stoplist.Manager, bool) {
	if opts.Stopwords != nil {
		if len(opts.ExtraStopwords) == 0 {
			return opts.Stopwords, true
		}
		stops := opts.Stopwords.Clone()
		for _, w := range opts.ExtraStopwords {
			stops.Add("", w)
		}
		return stops, true
	}

	var (
		lists *stoplist.Lists
		err   error
	)
	if opts.StopwordsPath != "" {
		lists, err = stoplist.Load(opts.StopwordsPath)
	} else {
		lists, err = stoplist.Default()
	}
	if err != nil {
		logger.Warn("stopword resource unavailable, filtering extra words only",
			zap.String("path", opts.StopwordsPath),
			zap.Error(fmt.Errorf("%w: %v", internalerr.ErrNormalization, err)))
		return stoplist.NewManager(nil, opts.ExtraStopwords...), false
	}
	return stoplist.NewManager(lists, opts.ExtraStopwords...), true
}

// Capabilities reports the tokenizer, lemmatizer and stopword resource in use.
func (n *Normalizer) Capabilities() Capabilities {
	return n.caps
}

// TokenizeFilter splits text into tokens and keeps those longer than two
// characters, purely alphabetic, and not stopwords for lang.
func (n *Normalizer) TokenizeFilter(text string, lang Language) []string {
	raw, err := n.tokenizer.Tokenize(text)
	if err != nil {
		n.logger.Debug("tokenizer failed on input, using regex splitter", zap.Error(err))
		raw, _ = regexTokenizer{}.Tokenize(text)
	}

	tokens := raw[:0]
	for _, tok := range raw {
		tok = strings.ToLower(tok)
		if !keepToken(tok) || n.stops.IsStop(string(lang), tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Reduce lemmatizes English tokens and stems Spanish ones. A token whose
// reduction fails is kept unchanged. Configured removal terms are dropped.
func (n *Normalizer) Reduce(tokens []string, lang Language) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		r := reduceToken(n.lemma, lang, tok)
		if _, drop := n.remove[r]; drop {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Normalize runs the full chain on one text and returns its tokens together
// with the detected language. Large inputs are processed in chunks; the
// language is detected once on the whole text.
func (n *Normalizer) Normalize(text string) ([]string, Language) {
	if strings.TrimSpace(text) == "" {
		return nil, English
	}
	lang := DetectLanguage(text)

	var tokens []string
	for _, chunk := range SplitChunks(text, n.threshold, n.size) {
		cleaned := Clean(chunk)
		tokens = append(tokens, n.Reduce(n.TokenizeFilter(cleaned, lang), lang)...)
	}
	return tokens, lang
}

// Document is one corpus entry. Language and Tokens are filled by
// NormalizeCorpus.
type Document struct {
	ID       string
	Text     string
	Language Language
	Tokens   []string
}

// NormalizeCorpus normalizes docs in place on a pool of workers (<= 0 means
// runtime.NumCPU()). Each worker writes only its own document. It returns
// the indices of documents left with no tokens, in ascending order.
func (n *Normalizer) NormalizeCorpus(ctx context.Context, docs []Document, workers int) ([]int, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i].Tokens, docs[i].Language = n.Normalize(docs[i].Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalize corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("normalize corpus: %w", err)
	}

	var empty []int
	for i := range docs {
		if len(docs[i].Tokens) == 0 {
			empty = append(empty, i)
			n.logger.Info("document has no tokens after normalization, skipping",
				zap.String("doc", docs[i].ID))
		}
	}
	return empty, nil
}
