package coherence

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// wordPair is an unordered pair of word indices with A < B.
type wordPair struct {
	A, B int
}

func pairOf(a, b int) wordPair {
	if a > b {
		a, b = b, a
	}
	return wordPair{A: a, B: b}
}

// Counter holds boolean sliding-window counts for a fixed set of words.
type Counter struct {
	N   int64              // number of windows
	Nx  []int64            // windows containing each word
	Nxy map[wordPair]int64 // windows containing both words
}

func newCounter(words int) *Counter {
	return &Counter{Nx: make([]int64, words), Nxy: make(map[wordPair]int64)}
}

func (c *Counter) merge(o *Counter) {
	c.N += o.N
	for i, n := range o.Nx {
		c.Nx[i] += n
	}
	for p, n := range o.Nxy {
		c.Nxy[p] += n
	}
}

// PairCount returns the number of windows holding both words.
func (c *Counter) PairCount(a, b int) int64 {
	if a == b {
		return c.Nx[a]
	}
	return c.Nxy[pairOf(a, b)]
}

// addDocument counts the windows of one token sequence. Windows advance one
// token at a time; a sequence shorter than the window is a single window.
// Tokens outside index only occupy positions.
func (c *Counter) addDocument(tokens []string, index map[string]int, window int) {
	if len(tokens) == 0 {
		return
	}
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := index[tok]
		if !ok {
			id = -1
		}
		ids[i] = id
	}

	if len(ids) <= window {
		c.addWindow(presentIn(ids))
		return
	}

	// inWindow tracks how many times each word occurs in the current window.
	inWindow := make(map[int]int)
	for _, id := range ids[:window] {
		if id >= 0 {
			inWindow[id]++
		}
	}
	c.addWindow(keys(inWindow))
	for start := 1; start+window <= len(ids); start++ {
		if out := ids[start-1]; out >= 0 {
			if inWindow[out]--; inWindow[out] == 0 {
				delete(inWindow, out)
			}
		}
		if in := ids[start+window-1]; in >= 0 {
			inWindow[in]++
		}
		c.addWindow(keys(inWindow))
	}
}

func (c *Counter) addWindow(present []int) {
	c.N++
	for i, a := range present {
		c.Nx[a]++
		for _, b := range present[i+1:] {
			c.Nxy[pairOf(a, b)]++
		}
	}
}

func presentIn(ids []int) []int {
	seen := make(map[int]int)
	for _, id := range ids {
		if id >= 0 {
			seen[id]++
		}
	}
	return keys(seen)
}

func keys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// countWindows counts windows over docs on a worker pool. Counts are
// integers, so the merge order does not affect the result.
func countWindows(ctx context.Context, docs [][]string, index map[string]int, window, workers int) (*Counter, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(docs) {
		workers = len(docs)
	}

	total := newCounter(len(index))
	if workers == 0 {
		return total, nil
	}
	partial := make([]*Counter, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			c := newCounter(len(index))
			for d := w; d < len(docs); d += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				c.addDocument(docs[d], index, window)
			}
			partial[w] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, c := range partial {
		total.merge(c)
	}
	return total, nil
}
