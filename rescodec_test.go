package rescodec

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rescodec/persistence"
)

// scenarioCodec builds the small reference codec: D=8, nbits=2, two
// axis-aligned centroids and a symmetric bucket table.
func scenarioCodec(t *testing.T, optFns ...Option) *Codec {
	t.Helper()

	codec, err := New(8, 2, Params{
		Centroids: [][]float32{
			{1, 0, 0, 0, 0, 0, 0, 0},
			{0, 1, 0, 0, 0, 0, 0, 0},
		},
		BucketCutoffs: []float32{-0.5, 0, 0.5},
		BucketWeights: []float32{-0.75, -0.25, 0.25, 0.75},
	}, optFns...)
	require.NoError(t, err)

	return codec
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / math.Sqrt(na*nb)
}

func TestCompressDecompress_Scenario(t *testing.T) {
	codec := scenarioCodec(t)
	ctx := context.Background()

	v := []float32{0.9, 0.3, 0, 0, 0, 0, 0, 0}
	batch, err := codec.Compress(ctx, [][]float32{v})
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())

	// c0 wins on inner product (0.9 vs 0.3).
	assert.Equal(t, uint32(0), batch.Codes[0])

	// Residual [-0.1, 0.3, 0×6] buckets to [1, 2, 2×6]: a value on a
	// cutoff lands in the higher bucket, so the zero dimensions take
	// bucket 2. Packed MSB-first that is 0x6A 0xAA.
	require.Len(t, batch.Residuals[0], 2)
	assert.Equal(t, []byte{0x6A, 0xAA}, batch.Residuals[0])

	out, err := codec.Decompress(ctx, batch)
	require.NoError(t, err)
	require.Len(t, out, 1)

	// Reconstruction: c0 + [-0.25, 0.25×7] is already unit norm.
	want := []float32{0.75, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25}
	assert.InDeltaSlice(t, want, out[0], 1e-6)

	// Output must be unit norm.
	var norm float64
	for _, x := range out[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-6)

	// The reconstruction points closer to v than to the bare centroid.
	assert.Greater(t, cosine(out[0], v), cosine(out[0], codec.centroids.Row(0)))
}

func TestCompressDecompress_RoundTripBound(t *testing.T) {
	const (
		dim          = 128
		numCentroids = 8
		n            = 64
	)

	rng := rand.New(rand.NewSource(11))

	centroids := make([][]float32, numCentroids)
	for i := range centroids {
		centroids[i] = make([]float32, dim)
		for j := range centroids[i] {
			centroids[i][j] = rng.Float32()*2 - 1
		}
		var norm float64
		for _, x := range centroids[i] {
			norm += float64(x) * float64(x)
		}
		inv := float32(1 / math.Sqrt(norm))
		for j := range centroids[i] {
			centroids[i][j] *= inv
		}
	}

	// Bucket table fitted to residual amplitude ±0.02: per-dimension
	// reconstruction error stays below 0.005.
	codec, err := New(dim, 2, Params{
		Centroids:     centroids,
		BucketCutoffs: []float32{-0.01, 0, 0.01},
		BucketWeights: []float32{-0.015, -0.005, 0.005, 0.015},
	})
	require.NoError(t, err)

	// Inputs are centroid plus small residual, so quantization operates
	// inside its learned range.
	vectors := make([][]float32, n)
	for i := range vectors {
		base := centroids[rng.Intn(numCentroids)]
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = base[j] + (rng.Float32()*0.04 - 0.02)
		}
	}

	ctx := context.Background()
	batch, err := codec.Compress(ctx, vectors)
	require.NoError(t, err)

	out, err := codec.Decompress(ctx, batch)
	require.NoError(t, err)

	for i := range out {
		var norm float64
		for _, x := range out[i] {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, norm, 1e-5, "row %d not unit norm", i)

		assert.Greater(t, cosine(out[i], vectors[i]), 0.99, "row %d angular error too large", i)
	}
}

func TestCompress_BatchSizeIndependent(t *testing.T) {
	const n = 1000

	rng := rand.New(rand.NewSource(5))
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, 8)
		for j := range vectors[i] {
			vectors[i][j] = rng.Float32()*2 - 1
		}
	}

	compress := func(chunkSize int) *CompressedBatch {
		codec := scenarioCodec(t, WithChunkSize(chunkSize), WithParallelism(4))
		batch, err := codec.Compress(context.Background(), vectors)
		require.NoError(t, err)
		return batch
	}

	whole := compress(10000)
	for _, chunkSize := range []int{1, 7, 100} {
		split := compress(chunkSize)
		assert.Equal(t, whole.Codes, split.Codes, "chunkSize=%d", chunkSize)
		assert.Equal(t, whole.Residuals, split.Residuals, "chunkSize=%d", chunkSize)
	}
}

func TestCompress_BackendAgreement(t *testing.T) {
	const (
		dim          = 16
		numCentroids = 8
		n            = 200
	)

	// Dyadic-grid inputs keep every inner product exact in float32, so
	// the integer/byte outputs must agree bit for bit across backends.
	rng := rand.New(rand.NewSource(23))
	grid := func() float32 { return float32(rng.Intn(129)-64) / 64 }

	centroids := make([][]float32, numCentroids)
	for i := range centroids {
		centroids[i] = make([]float32, dim)
		for j := range centroids[i] {
			centroids[i][j] = grid()
		}
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = grid()
		}
	}

	params := Params{
		Centroids:     centroids,
		BucketCutoffs: []float32{-0.5, 0, 0.5},
		BucketWeights: []float32{-0.75, -0.25, 0.25, 0.75},
	}

	generic, err := New(dim, 2, params, WithAccelerated(false))
	require.NoError(t, err)
	accelerated, err := New(dim, 2, params, WithAccelerated(true))
	require.NoError(t, err)

	assert.Equal(t, "generic", generic.BackendName())
	assert.Equal(t, "blas", accelerated.BackendName())

	ctx := context.Background()
	batchG, err := generic.Compress(ctx, vectors)
	require.NoError(t, err)
	batchA, err := accelerated.Compress(ctx, vectors)
	require.NoError(t, err)

	require.Equal(t, batchG.Codes, batchA.Codes)
	require.Equal(t, batchG.Residuals, batchA.Residuals)

	outG, err := generic.Decompress(ctx, batchG)
	require.NoError(t, err)
	outA, err := accelerated.Decompress(ctx, batchA)
	require.NoError(t, err)

	for i := range outG {
		assert.InDeltaSlice(t, outG[i], outA[i], 1e-6, "row %d", i)
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	valid := Params{
		Centroids:     [][]float32{{1, 0, 0, 0, 0, 0, 0, 0}},
		BucketCutoffs: []float32{-0.5, 0, 0.5},
		BucketWeights: []float32{-0.75, -0.25, 0.25, 0.75},
	}

	tests := []struct {
		name   string
		dim    int
		nbits  int
		mutate func(*Params)
	}{
		{"DimNotMultipleOf8", 12, 2, nil},
		{"DimZero", 0, 2, nil},
		{"BadNBits", 8, 3, nil},
		{"CutoffCount", 8, 2, func(p *Params) { p.BucketCutoffs = []float32{0} }},
		{"WeightCount", 8, 2, func(p *Params) { p.BucketWeights = []float32{0, 1} }},
		{"CentroidWidth", 8, 2, func(p *Params) { p.Centroids = [][]float32{{1, 2}} }},
		{"NoCentroids", 8, 2, func(p *Params) { p.Centroids = nil }},
		{"AvgResidualWidth", 8, 2, func(p *Params) { p.AvgResidual = []float32{1, 2, 3} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := valid
			if tt.mutate != nil {
				tt.mutate(&params)
			}

			_, err := New(tt.dim, tt.nbits, params)
			require.Error(t, err)

			var cfgErr *ErrInvalidConfig
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestCompress_ShapeMismatch(t *testing.T) {
	codec := scenarioCodec(t)

	_, err := codec.Compress(context.Background(), [][]float32{
		{1, 0, 0, 0, 0, 0, 0, 0},
		{1, 0, 0}, // wrong width
	})
	require.Error(t, err)

	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 8, shapeErr.Expected)
	assert.Equal(t, 3, shapeErr.Actual)
}

func TestDecompress_ShapeMismatch(t *testing.T) {
	codec := scenarioCodec(t)

	_, err := codec.Decompress(context.Background(), &CompressedBatch{
		Codes:     []uint32{0},
		Residuals: [][]byte{{1, 2, 3}}, // want D·nbits/8 = 2 bytes
	})
	require.Error(t, err)

	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 2, shapeErr.Expected)
	assert.Equal(t, 3, shapeErr.Actual)

	_, err = codec.Decompress(context.Background(), &CompressedBatch{
		Codes:     []uint32{0, 1},
		Residuals: [][]byte{{0, 0}},
	})
	require.ErrorAs(t, err, &shapeErr)
}

func TestCompress_Cancelled(t *testing.T) {
	codec := scenarioCodec(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := codec.Compress(ctx, [][]float32{{1, 0, 0, 0, 0, 0, 0, 0}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(comp.String(), func(t *testing.T) {
			dir := t.TempDir()

			original := scenarioCodec(t, WithCompression(comp))
			original.avgResidual = []float32{0.042}
			require.NoError(t, original.Save(dir))

			loaded, err := Load(dir)
			require.NoError(t, err)

			assert.Equal(t, original.Dim(), loaded.Dim())
			assert.Equal(t, original.NBits(), loaded.NBits())
			assert.Equal(t, original.NumCentroids(), loaded.NumCentroids())
			assert.Equal(t, []float32{0.042}, loaded.AvgResidual())

			// Loaded parameters must compress identically.
			vectors := [][]float32{
				{0.9, 0.3, 0, 0, 0, 0, 0, 0},
				{-0.2, 0.8, 0.1, 0, 0, 0, 0, 0},
			}
			ctx := context.Background()
			want, err := original.Compress(ctx, vectors)
			require.NoError(t, err)
			got, err := loaded.Compress(ctx, vectors)
			require.NoError(t, err)
			assert.Equal(t, want.Codes, got.Codes)
			assert.Equal(t, want.Residuals, got.Residuals)
		})
	}
}

func TestSaveLoad_NoAvgResidual(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scenarioCodec(t).Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, loaded.AvgResidual())
}

func TestLoad_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scenarioCodec(t).Save(dir))
	require.NoError(t, os.Remove(filepath.Join(dir, persistence.BucketsFileName)))

	_, err := Load(dir)
	assert.ErrorIs(t, err, persistence.ErrMissingArtifact)
}

func TestLoad_InconsistentShape(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, scenarioCodec(t).Save(dir))

	// A manifest declaring nbits=4 no longer matches the stored bucket
	// tables.
	m, err := persistence.LoadManifest(dir)
	require.NoError(t, err)
	m.NBits = 4
	require.NoError(t, persistence.SaveManifest(dir, m))

	_, err = Load(dir)
	assert.ErrorIs(t, err, persistence.ErrArtifactShape)
}

func TestLoad_EmptyDir(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, persistence.ErrMissingArtifact)
}

func TestMetrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	codec := scenarioCodec(t, WithMetricsCollector(mc))

	ctx := context.Background()
	vectors := [][]float32{{0.9, 0.3, 0, 0, 0, 0, 0, 0}}

	batch, err := codec.Compress(ctx, vectors)
	require.NoError(t, err)
	_, err = codec.Decompress(ctx, batch)
	require.NoError(t, err)
	require.NoError(t, codec.Save(t.TempDir()))

	_, _ = codec.Compress(ctx, [][]float32{{1}}) // shape error

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.CompressCount)
	assert.Equal(t, int64(1), stats.CompressErrors)
	assert.Equal(t, int64(1), stats.DecompressCount)
	assert.Equal(t, int64(1), stats.DecompressVectors)
	assert.Equal(t, int64(1), stats.SaveCount)
	assert.Equal(t, int64(0), stats.SaveErrors)
}

func TestCompress_Empty(t *testing.T) {
	codec := scenarioCodec(t)

	batch, err := codec.Compress(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Len())

	out, err := codec.Decompress(context.Background(), batch)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func BenchmarkCompress(b *testing.B) {
	const (
		dim          = 128
		numCentroids = 256
		n            = 1024
	)

	rng := rand.New(rand.NewSource(1))
	centroids := make([][]float32, numCentroids)
	for i := range centroids {
		centroids[i] = make([]float32, dim)
		for j := range centroids[i] {
			centroids[i][j] = rng.Float32()*2 - 1
		}
	}

	codec, err := New(dim, 2, Params{
		Centroids:     centroids,
		BucketCutoffs: []float32{-0.05, 0, 0.05},
		BucketWeights: []float32{-0.07, -0.02, 0.02, 0.07},
	})
	if err != nil {
		b.Fatal(err)
	}

	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = rng.Float32()*2 - 1
		}
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Compress(ctx, vectors); err != nil {
			b.Fatal(err)
		}
	}
}
