package vecindex

import (
	"fmt"
	"sort"
)

// Flat is an exact inner-product index over a fixed matrix. It is
// immutable after Build and safe for concurrent Search calls.
type Flat struct {
	dim  int
	rows [][]float32
}

// Build creates an index over the given rows. Rows are L2-normalized so
// that inner product equals cosine similarity. Every row must share a
// dimension.
func Build(rows [][]float32) (*Flat, error) {
	f := &Flat{rows: make([][]float32, len(rows))}
	for i, r := range rows {
		if i == 0 {
			f.dim = len(r)
		} else if len(r) != f.dim {
			return nil, fmt.Errorf("row %d has dimension %d, want %d", i, len(r), f.dim)
		}
		f.rows[i] = Normalize(r)
	}
	return f, nil
}

// Len returns the number of indexed rows.
func (f *Flat) Len() int { return len(f.rows) }

// Dim returns the vector dimension, or 0 for an empty index.
func (f *Flat) Dim() int { return f.dim }

// Search returns up to k row indices ordered by descending inner product
// with q, along with their scores. q is used as given; callers normalize
// it when they want cosine scores. Ties keep row order.
func (f *Flat) Search(q []float32, k int) ([]int, []float32, error) {
	if len(f.rows) == 0 || k <= 0 {
		return nil, nil, nil
	}
	if len(q) != f.dim {
		return nil, nil, fmt.Errorf("query dimension %d, index dimension %d", len(q), f.dim)
	}

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, len(f.rows))
	for i, r := range f.rows {
		hits[i] = hit{idx: i, score: Dot(q, r)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if k > len(hits) {
		k = len(hits)
	}
	idx := make([]int, k)
	scores := make([]float32, k)
	for i := range k {
		idx[i] = hits[i].idx
		scores[i] = float32(hits[i].score)
	}
	return idx, scores, nil
}
