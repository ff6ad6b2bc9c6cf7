package kernel

// genericBackend implements Backend with plain Go loops. It is the
// portable fallback and the reference for cross-backend agreement tests.
type genericBackend struct{}

func (genericBackend) Name() string { return "generic" }

func (genericBackend) Assign(centroids, queries []float32, dim int, out []uint32) {
	numCentroids := len(centroids) / dim
	for row := range out {
		q := queries[row*dim : (row+1)*dim]

		best := uint32(0)
		bestScore := dotGeneric(q, centroids[:dim])
		for c := 1; c < numCentroids; c++ {
			score := dotGeneric(q, centroids[c*dim:(c+1)*dim])
			if score > bestScore {
				bestScore = score
				best = uint32(c)
			}
		}
		out[row] = best
	}
}

func (genericBackend) Dot(a, b []float32) float32 { return dotGeneric(a, b) }

func (genericBackend) AddInPlace(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func (genericBackend) ScaleInPlace(a []float32, s float32) {
	for i := range a {
		a[i] *= s
	}
}

func dotGeneric(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}
