package rescodec

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rescodec/centroid"
	"github.com/hupe1980/rescodec/internal/kernel"
	"github.com/hupe1980/rescodec/persistence"
	"github.com/hupe1980/rescodec/quantization"
)

// Params holds the externally learned codec parameters. They are consumed
// at construction and immutable afterwards.
type Params struct {
	// Centroids is the ordered centroid set, C rows of dimension D.
	Centroids [][]float32

	// BucketCutoffs is the ordered scalar threshold table, 2^nbits - 1
	// strictly increasing values.
	BucketCutoffs []float32

	// BucketWeights is the reconstruction value table, 2^nbits
	// non-decreasing values.
	BucketWeights []float32

	// AvgResidual is an optional diagnostic value retained for format
	// compatibility: empty, a single scalar, or one value per dimension.
	// It does not participate in reconstruction.
	AvgResidual []float32
}

// CompressedBatch is the unit exchanged with the storage layer: one
// centroid id and one packed residual row per input vector.
type CompressedBatch struct {
	// Codes holds the assigned centroid id for each vector.
	Codes []uint32

	// Residuals holds the bit-packed per-dimension bucket codes, one row
	// of D·nbits/8 bytes per vector.
	Residuals [][]byte
}

// Len returns the number of vectors in the batch.
func (b *CompressedBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Codes)
}

// Codec compresses embedding vectors into (centroid id, packed residual)
// pairs and reconstructs approximate unit-norm embeddings from them.
//
// A constructed Codec is ready and immutable; it is safe for concurrent
// use by any number of goroutines. Changing parameters requires a new
// instance.
type Codec struct {
	dim      int
	nbits    int
	rowWidth int // packed residual bytes per vector

	centroids *centroid.Index
	bucket    *quantization.Bucket
	packer    *quantization.Packer
	unpacker  *quantization.Unpacker
	backend   kernel.Backend

	avgResidual []float32

	chunkSize   int
	parallelism int
	compression Compression
	logger      *Logger
	metrics     MetricsCollector
}

// New creates a ready codec for D-dimensional vectors quantized at nbits
// bits per dimension.
//
// Invariants checked here: D must be a positive multiple of 8 and of
// 8/nbits, nbits must be a supported width, and the bucket tables must
// match 2^nbits. Violations fail with ErrInvalidConfig.
func New(dim, nbits int, params Params, optFns ...Option) (*Codec, error) {
	if dim <= 0 || dim%8 != 0 {
		return nil, &ErrInvalidConfig{Reason: fmt.Sprintf("dim %d must be a positive multiple of 8", dim)}
	}
	if nbits > 0 && (dim*nbits)%8 != 0 {
		return nil, &ErrInvalidConfig{Reason: fmt.Sprintf("dim %d times nbits %d must be a multiple of 8", dim, nbits)}
	}

	bucket, err := quantization.NewBucket(nbits, params.BucketCutoffs, params.BucketWeights)
	if err != nil {
		return nil, &ErrInvalidConfig{Reason: err.Error(), cause: err}
	}
	packer, err := quantization.NewPacker(nbits)
	if err != nil {
		return nil, &ErrInvalidConfig{Reason: err.Error(), cause: err}
	}
	unpacker, err := quantization.NewUnpacker(nbits)
	if err != nil {
		return nil, &ErrInvalidConfig{Reason: err.Error(), cause: err}
	}

	switch len(params.AvgResidual) {
	case 0, 1, dim:
	default:
		return nil, &ErrInvalidConfig{Reason: fmt.Sprintf(
			"avg residual length %d must be 0, 1 or dim %d", len(params.AvgResidual), dim)}
	}

	o := applyOptions(optFns)
	backend := kernel.New(o.backendKind)

	ixOpts := []centroid.Option{centroid.WithBackend(backend)}
	if o.scoreBudget > 0 {
		ixOpts = append(ixOpts, centroid.WithScoreBudget(o.scoreBudget))
	}
	ix, err := centroid.FromRows(params.Centroids, ixOpts...)
	if err != nil {
		return nil, &ErrInvalidConfig{Reason: err.Error(), cause: err}
	}
	if ix.Dim() != dim {
		return nil, &ErrInvalidConfig{Reason: fmt.Sprintf(
			"centroid dimension %d does not match dim %d", ix.Dim(), dim)}
	}

	return &Codec{
		dim:         dim,
		nbits:       nbits,
		rowWidth:    packer.PackedLen(dim),
		centroids:   ix,
		bucket:      bucket,
		packer:      packer,
		unpacker:    unpacker,
		backend:     backend,
		avgResidual: params.AvgResidual,
		chunkSize:   o.chunkSize,
		parallelism: o.parallelism,
		compression: o.compression,
		logger:      o.logger,
		metrics:     o.metricsCollector,
	}, nil
}

// Dim returns the vector dimensionality D.
func (c *Codec) Dim() int { return c.dim }

// NBits returns the bits-per-dimension value.
func (c *Codec) NBits() int { return c.nbits }

// NumCentroids returns the size of the centroid set C.
func (c *Codec) NumCentroids() int { return c.centroids.Count() }

// PackedWidth returns the packed residual row width D·nbits/8.
func (c *Codec) PackedWidth() int { return c.rowWidth }

// BackendName returns the active execution backend ("generic" or "blas").
func (c *Codec) BackendName() string { return c.backend.Name() }

// AvgResidual returns the opaque diagnostic average residual, or nil.
func (c *Codec) AvgResidual() []float32 { return c.avgResidual }

// Resolution returns the largest gap between adjacent bucket weights,
// an upper bound on per-dimension reconstruction error inside the
// learned cutoff range.
func (c *Codec) Resolution() float32 { return c.bucket.Resolution() }

// Compress encodes a batch of vectors into centroid codes and packed
// residuals. Results are positionally aligned with the input. The batch
// is processed in bounded-memory chunks that may run in parallel; on any
// error (or ctx cancellation) no output is returned.
func (c *Codec) Compress(ctx context.Context, vectors [][]float32) (batch *CompressedBatch, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordCompress(len(vectors), time.Since(start), err)
		c.logger.LogCompress(ctx, len(vectors), err)
	}()

	for i, v := range vectors {
		if len(v) != c.dim {
			return nil, &ErrShapeMismatch{
				What:     fmt.Sprintf("vector %d width", i),
				Expected: c.dim,
				Actual:   len(v),
			}
		}
	}

	n := len(vectors)
	codes := make([]uint32, n)
	packed := make([]byte, n*c.rowWidth)

	err = c.runChunks(ctx, n, func(ctx context.Context, lo, hi int) error {
		rows := hi - lo

		// Residuals are computed in place on a chunk-local copy.
		flat := make([]float32, rows*c.dim)
		for i := 0; i < rows; i++ {
			copy(flat[i*c.dim:], vectors[lo+i])
		}

		if err := c.centroids.Assign(ctx, flat, codes[lo:hi]); err != nil {
			return err
		}

		for i := 0; i < rows; i++ {
			cent := c.centroids.Row(codes[lo+i])
			row := flat[i*c.dim : (i+1)*c.dim]
			for j := range row {
				row[j] -= cent[j]
			}
		}

		qcodes := make([]uint8, rows*c.dim)
		c.bucket.EncodeSlice(qcodes, flat)

		for i := 0; i < rows; i++ {
			dst := packed[(lo+i)*c.rowWidth : (lo+i+1)*c.rowWidth]
			if err := c.packer.Pack(dst, qcodes[i*c.dim:(i+1)*c.dim]); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	residuals := make([][]byte, n)
	for i := range residuals {
		residuals[i] = packed[i*c.rowWidth : (i+1)*c.rowWidth : (i+1)*c.rowWidth]
	}

	return &CompressedBatch{Codes: codes, Residuals: residuals}, nil
}

// Decompress reconstructs approximate embeddings from a compressed batch.
// Every output row is L2-normalized. Input shape is validated eagerly:
// a packed residual row whose width is not D·nbits/8 fails with
// ErrShapeMismatch before any work happens.
func (c *Codec) Decompress(ctx context.Context, batch *CompressedBatch) (out [][]float32, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordDecompress(batch.Len(), time.Since(start), err)
		c.logger.LogDecompress(ctx, batch.Len(), err)
	}()

	if batch == nil {
		return nil, &ErrShapeMismatch{What: "compressed batch (nil)"}
	}
	if len(batch.Residuals) != len(batch.Codes) {
		return nil, &ErrShapeMismatch{
			What:     "packed residual rows",
			Expected: len(batch.Codes),
			Actual:   len(batch.Residuals),
		}
	}
	for i, row := range batch.Residuals {
		if len(row) != c.rowWidth {
			return nil, &ErrShapeMismatch{
				What:     fmt.Sprintf("packed residual row %d width", i),
				Expected: c.rowWidth,
				Actual:   len(row),
			}
		}
	}

	n := len(batch.Codes)
	backing := make([]float32, n*c.dim)

	err = c.runChunks(ctx, n, func(_ context.Context, lo, hi int) error {
		rows := hi - lo

		qcodes := make([]uint8, rows*c.dim)
		for i := 0; i < rows; i++ {
			c.unpacker.Unpack(qcodes[i*c.dim:(i+1)*c.dim], batch.Residuals[lo+i])
		}

		resid := make([]float32, rows*c.dim)
		c.bucket.DecodeSlice(resid, qcodes)

		chunk := backing[lo*c.dim : hi*c.dim]
		c.centroids.Lookup(batch.Codes[lo:hi], chunk)

		for i := 0; i < rows; i++ {
			row := chunk[i*c.dim : (i+1)*c.dim]
			c.backend.AddInPlace(row, resid[i*c.dim:(i+1)*c.dim])

			// Reconstructed vectors are emitted unit-norm; a zero vector
			// stays zero.
			norm2 := c.backend.Dot(row, row)
			if norm2 > 0 {
				c.backend.ScaleInPlace(row, 1/float32(math.Sqrt(float64(norm2))))
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	out = make([][]float32, n)
	for i := range out {
		out[i] = backing[i*c.dim : (i+1)*c.dim : (i+1)*c.dim]
	}

	return out, nil
}

// runChunks processes [0, n) in chunkSize slices, fanning chunks out to
// at most parallelism workers. The first error cancels the remaining
// chunks and is returned; callers discard all output in that case.
func (c *Codec) runChunks(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)

	for lo := 0; lo < n; lo += c.chunkSize {
		lo := lo
		hi := lo + c.chunkSize
		if hi > n {
			hi = n
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, lo, hi)
		})
	}

	return g.Wait()
}

// Save persists the codec parameters as four artifacts under dir:
// manifest.json, centroids.rq, buckets.rq and avg_residual.rq.
func (c *Codec) Save(dir string) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordSave(time.Since(start), err)
		c.logger.LogSave(context.Background(), dir, err)
	}()

	if err = os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	m := &persistence.Manifest{
		Version:     persistence.ManifestVersion,
		Dim:         c.dim,
		NBits:       c.nbits,
		Centroids:   c.centroids.Count(),
		Compression: c.compression.String(),
	}
	if err = persistence.SaveManifest(dir, m); err != nil {
		return err
	}

	if err = persistence.WriteMatrix(
		filepath.Join(dir, persistence.CentroidsFileName),
		persistence.KindCentroids, c.compression,
		c.centroids.Count(), c.dim, c.centroids.Data(),
	); err != nil {
		return err
	}

	cutoffs := c.bucket.Cutoffs()
	weights := c.bucket.Weights()
	buckets := make([]float32, 0, len(cutoffs)+len(weights))
	buckets = append(buckets, cutoffs...)
	buckets = append(buckets, weights...)
	if err = persistence.WriteMatrix(
		filepath.Join(dir, persistence.BucketsFileName),
		persistence.KindBuckets, c.compression,
		1, len(buckets), buckets,
	); err != nil {
		return err
	}

	return persistence.WriteMatrix(
		filepath.Join(dir, persistence.AvgResidualFileName),
		persistence.KindAvgResidual, c.compression,
		1, len(c.avgResidual), c.avgResidual,
	)
}

// Load restores a codec from the artifacts written by Save. It fails
// clearly when any artifact is missing, corrupt, or shape-inconsistent
// with the manifest's dim/nbits.
func Load(dir string, optFns ...Option) (*Codec, error) {
	start := time.Now()
	o := applyOptions(optFns)

	codec, err := load(dir, optFns)

	o.metricsCollector.RecordLoad(time.Since(start), err)
	o.logger.LogLoad(context.Background(), dir, err)

	return codec, err
}

func load(dir string, optFns []Option) (*Codec, error) {
	m, err := persistence.LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	comp, ok := persistence.ParseCompression(m.Compression)
	if !ok {
		return nil, fmt.Errorf("%w: manifest compression %q", persistence.ErrArtifactShape, m.Compression)
	}

	rows, cols, cdata, err := persistence.ReadMatrix(
		filepath.Join(dir, persistence.CentroidsFileName), persistence.KindCentroids)
	if err != nil {
		return nil, err
	}
	if rows != m.Centroids || cols != m.Dim {
		return nil, fmt.Errorf("%w: centroids are %dx%d, manifest declares %dx%d",
			persistence.ErrArtifactShape, rows, cols, m.Centroids, m.Dim)
	}

	_, bcols, bdata, err := persistence.ReadMatrix(
		filepath.Join(dir, persistence.BucketsFileName), persistence.KindBuckets)
	if err != nil {
		return nil, err
	}
	numBuckets := 1 << m.NBits
	if bcols != numBuckets*2-1 {
		return nil, fmt.Errorf("%w: bucket table has %d values, want %d for nbits=%d",
			persistence.ErrArtifactShape, bcols, numBuckets*2-1, m.NBits)
	}

	_, acols, adata, err := persistence.ReadMatrix(
		filepath.Join(dir, persistence.AvgResidualFileName), persistence.KindAvgResidual)
	if err != nil {
		return nil, err
	}
	if acols != 0 && acols != 1 && acols != m.Dim {
		return nil, fmt.Errorf("%w: avg residual has %d values, want 0, 1 or %d",
			persistence.ErrArtifactShape, acols, m.Dim)
	}
	if acols == 0 {
		adata = nil
	}

	centroids := make([][]float32, rows)
	for i := range centroids {
		centroids[i] = cdata[i*cols : (i+1)*cols]
	}

	// The manifest's compression becomes the default for a later Save;
	// explicit options still win.
	optFns = append([]Option{WithCompression(comp)}, optFns...)

	return New(m.Dim, m.NBits, Params{
		Centroids:     centroids,
		BucketCutoffs: bdata[:numBuckets-1],
		BucketWeights: bdata[numBuckets-1:],
		AvgResidual:   adata,
	}, optFns...)
}
