package kernel

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// blasBackend implements Backend on top of gonum's float32 BLAS bindings.
// Assign materializes the chunk×centroid score matrix with a single GEMM
// and reduces it row-wise; callers bound the chunk size so the score
// matrix stays within the configured memory budget.
type blasBackend struct{}

func (blasBackend) Name() string { return "blas" }

func (blasBackend) Assign(centroids, queries []float32, dim int, out []uint32) {
	numCentroids := len(centroids) / dim
	numQueries := len(out)

	a := blas32.General{
		Rows:   numQueries,
		Cols:   dim,
		Stride: dim,
		Data:   queries,
	}
	b := blas32.General{
		Rows:   numCentroids,
		Cols:   dim,
		Stride: dim,
		Data:   centroids,
	}
	scores := blas32.General{
		Rows:   numQueries,
		Cols:   numCentroids,
		Stride: numCentroids,
		Data:   make([]float32, numQueries*numCentroids),
	}

	// scores = queries × centroidsᵀ
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, a, b, 0, scores)

	for row := 0; row < numQueries; row++ {
		rowScores := scores.Data[row*numCentroids : (row+1)*numCentroids]

		best := uint32(0)
		bestScore := rowScores[0]
		for c := 1; c < numCentroids; c++ {
			if rowScores[c] > bestScore {
				bestScore = rowScores[c]
				best = uint32(c)
			}
		}
		out[row] = best
	}
}

func (blasBackend) Dot(a, b []float32) float32 {
	va := blas32.Vector{N: len(a), Inc: 1, Data: a}
	vb := blas32.Vector{N: len(b), Inc: 1, Data: b}
	return blas32.Dot(va, vb)
}

func (blasBackend) AddInPlace(dst, src []float32) {
	x := blas32.Vector{N: len(src), Inc: 1, Data: src}
	y := blas32.Vector{N: len(dst), Inc: 1, Data: dst}
	blas32.Axpy(1, x, y)
}

func (blasBackend) ScaleInPlace(a []float32, s float32) {
	blas32.Scal(s, blas32.Vector{N: len(a), Inc: 1, Data: a})
}
