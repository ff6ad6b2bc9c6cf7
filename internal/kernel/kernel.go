package kernel

// Backend executes the numeric inner loops of the codec.
//
// All methods are safe for concurrent use: backends are stateless and
// operate only on caller-owned buffers.
type Backend interface {
	// Name returns the backend identifier ("generic" or "blas").
	Name() string

	// Assign writes, for each row of queries, the id of the centroid with
	// the maximal inner product. centroids is row-major C×dim, queries is
	// row-major N×dim, out has length N. Ties resolve to the lowest id so
	// that both backends agree on the same input.
	Assign(centroids, queries []float32, dim int, out []uint32)

	// Dot returns the inner product of a and b. Lengths must match.
	Dot(a, b []float32) float32

	// AddInPlace adds src to dst element-wise.
	AddInPlace(dst, src []float32)

	// ScaleInPlace multiplies every element of a by s.
	ScaleInPlace(a []float32, s float32)
}

// New returns the backend implementation for kind.
func New(kind Kind) Backend {
	if kind == BLAS {
		return blasBackend{}
	}
	return genericBackend{}
}
