// Package assign picks the dominant topic of each document and summarizes
// how documents spread over topics.
package assign

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Unassigned marks a document with no topic of positive probability.
const Unassigned = -1

// Dominant returns the index of the highest probability. Ties go to the
// lowest index. It returns Unassigned when no probability is positive.
func Dominant(probs []float64) int {
	best := Unassigned
	bestP := 0.0
	for k, p := range probs {
		if p > bestP {
			best, bestP = k, p
		}
	}
	return best
}

// DominantAll applies Dominant to every row.
func DominantAll(matrix [][]float64) []int {
	out := make([]int, len(matrix))
	for d, row := range matrix {
		out[d] = Dominant(row)
	}
	return out
}

// TopicCount is the number of documents whose dominant topic is Topic.
type TopicCount struct {
	Topic int `json:"topic" msgpack:"topic"`
	Count int `json:"count" msgpack:"count"`
}

// Summary aggregates dominant-topic assignments.
type Summary struct {
	// Counts is ordered by descending count, then ascending topic.
	Counts     []TopicCount `json:"counts" msgpack:"counts"`
	Unassigned int          `json:"unassigned" msgpack:"unassigned"`
}

// Aggregate counts documents per dominant topic.
func Aggregate(assignments []int) Summary {
	counts := make(map[int]int)
	var s Summary
	for _, a := range assignments {
		if a == Unassigned {
			s.Unassigned++
			continue
		}
		counts[a]++
	}
	s.Counts = make([]TopicCount, 0, len(counts))
	for topic, n := range counts {
		s.Counts = append(s.Counts, TopicCount{Topic: topic, Count: n})
	}
	sort.Slice(s.Counts, func(i, j int) bool {
		if s.Counts[i].Count != s.Counts[j].Count {
			return s.Counts[i].Count > s.Counts[j].Count
		}
		return s.Counts[i].Topic < s.Counts[j].Topic
	})
	return s
}

// Weights returns the total probability mass each topic receives across the
// documents of an N×K matrix, scaled so the heaviest topic is 1.
func Weights(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, c)
	for k := 0; k < c; k++ {
		col := mat.Col(nil, k, m)
		out[k] = floats.Sum(col)
	}
	if r == 0 || c == 0 {
		return out
	}
	if top := floats.Max(out); top > 0 {
		floats.Scale(1/top, out)
	}
	return out
}

// Matrix packs equal-length rows into a dense matrix. No rows gives an empty
// matrix.
func Matrix(rows [][]float64) *mat.Dense {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}
