// Package centroid holds the fixed centroid set and performs batched
// nearest-centroid assignment and centroid lookup.
package centroid

import (
	"context"
	"fmt"

	"github.com/hupe1980/rescodec/internal/kernel"
)

// DefaultScoreBudget bounds the number of score-matrix cells a single
// assignment chunk may materialize, keeping peak memory proportional to
// chunkRows × C instead of N × C.
const DefaultScoreBudget = 1 << 27

// Index is an immutable, positionally addressed centroid table.
//
// The table is read-only after construction and safe for concurrent use
// by any number of Assign/Lookup callers.
type Index struct {
	data        []float32 // row-major C×dim
	dim         int
	count       int
	backend     kernel.Backend
	scoreBudget int
}

// Option configures an Index.
type Option func(*Index)

// WithBackend sets the execution backend. Defaults to the process-wide
// auto-selected backend.
func WithBackend(be kernel.Backend) Option {
	return func(ix *Index) {
		if be != nil {
			ix.backend = be
		}
	}
}

// WithScoreBudget overrides the assignment score-matrix budget (in cells).
func WithScoreBudget(budget int) Option {
	return func(ix *Index) {
		if budget > 0 {
			ix.scoreBudget = budget
		}
	}
}

// New creates an index over row-major centroid data of width dim.
// The data slice is retained, not copied; callers must not mutate it.
func New(data []float32, dim int, opts ...Option) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid centroid dimension: %d", dim)
	}
	if len(data) == 0 || len(data)%dim != 0 {
		return nil, fmt.Errorf("centroid data length %d is not a positive multiple of dim %d", len(data), dim)
	}

	ix := &Index{
		data:        data,
		dim:         dim,
		count:       len(data) / dim,
		backend:     kernel.New(kernel.DefaultKind()),
		scoreBudget: DefaultScoreBudget,
	}
	for _, opt := range opts {
		opt(ix)
	}

	return ix, nil
}

// FromRows creates an index from per-centroid rows, copying them into a
// contiguous table.
func FromRows(rows [][]float32, opts ...Option) (*Index, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty centroid set")
	}

	dim := len(rows[0])
	data := make([]float32, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("centroid %d has dimension %d, want %d", i, len(row), dim)
		}
		data = append(data, row...)
	}

	return New(data, dim, opts...)
}

// Count returns the number of centroids C.
func (ix *Index) Count() int {
	return ix.count
}

// Dim returns the centroid dimensionality D.
func (ix *Index) Dim() int {
	return ix.dim
}

// Data returns the backing row-major table. Read-only.
func (ix *Index) Data() []float32 {
	return ix.data
}

// Backend returns the execution backend in use.
func (ix *Index) Backend() kernel.Backend {
	return ix.backend
}

// assignChunkRows returns how many query rows one assignment chunk may
// carry under the score budget.
func (ix *Index) assignChunkRows() int {
	rows := ix.scoreBudget / ix.count
	if rows < 1 {
		rows = 1
	}
	return rows
}

// Assign writes the id of the max-inner-product centroid for each query
// row into out. queries is row-major N×dim and out has length N. The
// computation runs in bounded-size chunks; ctx cancellation abandons the
// remaining chunks.
func (ix *Index) Assign(ctx context.Context, queries []float32, out []uint32) error {
	rows := len(out)
	chunkRows := ix.assignChunkRows()

	for start := 0; start < rows; start += chunkRows {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + chunkRows
		if end > rows {
			end = rows
		}

		ix.backend.Assign(ix.data, queries[start*ix.dim:end*ix.dim], ix.dim, out[start:end])
	}

	return nil
}

// Row returns the centroid vector for id. An id outside [0, C) is a
// programming error and panics. Read-only.
func (ix *Index) Row(id uint32) []float32 {
	offset := int(id) * ix.dim
	return ix.data[offset : offset+ix.dim]
}

// Lookup copies the centroid row for each id into the corresponding row
// of dst, a row-major len(ids)×dim buffer.
func (ix *Index) Lookup(ids []uint32, dst []float32) {
	for i, id := range ids {
		copy(dst[i*ix.dim:(i+1)*ix.dim], ix.Row(id))
	}
}
