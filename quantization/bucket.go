// Package quantization provides the learned scalar quantizer and the
// sub-byte bit packing used for residual compression.
package quantization

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnsupportedBits is returned when the bits-per-dimension value is
	// not one of the supported widths.
	ErrUnsupportedBits = errors.New("unsupported bits per dimension")

	// ErrInvalidTable is returned when the cutoff or weight table does not
	// match the declared bit width.
	ErrInvalidTable = errors.New("invalid bucket table")
)

// Bucket implements learned non-uniform scalar quantization.
//
// The real line is partitioned into 2^nbits half-open intervals by an
// ordered cutoff table; each interval carries one reconstruction weight.
// Encode maps a scalar to its interval index, Decode maps an index back
// to its weight.
type Bucket struct {
	nbits   int
	cutoffs []float32 // 2^nbits - 1 strictly increasing thresholds
	weights []float32 // 2^nbits reconstruction values, non-decreasing
}

// NewBucket creates a bucket quantizer from learned cutoffs and weights.
// nbits must be 1, 2, 4 or 8; len(cutoffs) must be 2^nbits-1 and
// len(weights) must be 2^nbits.
func NewBucket(nbits int, cutoffs, weights []float32) (*Bucket, error) {
	if nbits != 1 && nbits != 2 && nbits != 4 && nbits != 8 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBits, nbits)
	}

	numBuckets := 1 << nbits
	if len(cutoffs) != numBuckets-1 {
		return nil, fmt.Errorf("%w: got %d cutoffs, want %d for nbits=%d",
			ErrInvalidTable, len(cutoffs), numBuckets-1, nbits)
	}
	if len(weights) != numBuckets {
		return nil, fmt.Errorf("%w: got %d weights, want %d for nbits=%d",
			ErrInvalidTable, len(weights), numBuckets, nbits)
	}

	for i := 1; i < len(cutoffs); i++ {
		if cutoffs[i] <= cutoffs[i-1] {
			return nil, fmt.Errorf("%w: cutoffs not strictly increasing at %d", ErrInvalidTable, i)
		}
	}
	for i := 1; i < len(weights); i++ {
		if weights[i] < weights[i-1] {
			return nil, fmt.Errorf("%w: weights decreasing at %d", ErrInvalidTable, i)
		}
	}

	return &Bucket{
		nbits:   nbits,
		cutoffs: cutoffs,
		weights: weights,
	}, nil
}

// Encode returns the bucket index for x: the count of cutoffs <= x.
// A value exactly on a cutoff lands in the higher bucket.
func (b *Bucket) Encode(x float32) uint8 {
	return uint8(sort.Search(len(b.cutoffs), func(i int) bool {
		return b.cutoffs[i] > x
	}))
}

// Decode returns the reconstruction weight for a bucket index.
// An index outside [0, 2^nbits) is a programming error and panics.
func (b *Bucket) Decode(code uint8) float32 {
	return b.weights[code]
}

// EncodeSlice quantizes src element-wise into dst. Both slices must have
// the same length; dst may alias previously used buffers.
func (b *Bucket) EncodeSlice(dst []uint8, src []float32) {
	// Small tables are faster to scan linearly than to binary-search.
	if len(b.cutoffs) <= 8 {
		for i, x := range src {
			var code uint8
			for _, c := range b.cutoffs {
				if c <= x {
					code++
				}
			}
			dst[i] = code
		}
		return
	}

	for i, x := range src {
		dst[i] = b.Encode(x)
	}
}

// DecodeSlice reconstructs src element-wise into dst.
func (b *Bucket) DecodeSlice(dst []float32, src []uint8) {
	for i, code := range src {
		dst[i] = b.weights[code]
	}
}

// NBits returns the bits-per-dimension value.
func (b *Bucket) NBits() int {
	return b.nbits
}

// NumBuckets returns 2^nbits.
func (b *Bucket) NumBuckets() int {
	return 1 << b.nbits
}

// Cutoffs returns the cutoff table.
func (b *Bucket) Cutoffs() []float32 {
	return b.cutoffs
}

// Weights returns the weight table.
func (b *Bucket) Weights() []float32 {
	return b.weights
}

// Resolution returns the largest gap between adjacent reconstruction
// weights. Per-dimension reconstruction error is bounded by this value
// for inputs inside the learned cutoff range.
func (b *Bucket) Resolution() float32 {
	var maxGap float32
	for i := 1; i < len(b.weights); i++ {
		if gap := b.weights[i] - b.weights[i-1]; gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}
