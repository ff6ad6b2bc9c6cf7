// Package rescodec implements the residual vector-compression codec used
// inside dense-retrieval indexes.
//
// The codec compresses high-dimensional float32 embeddings into a compact
// integer form - a centroid id plus a bit-packed quantized residual - and
// reconstructs approximate unit-norm embeddings from that form:
//
//	vector → nearest centroid id + (vector − centroid)
//	residual → per-dimension bucket codes → packed bytes (nbits per dim)
//
// Decompression unpacks the codes, decodes them through the learned weight
// table, adds the centroid back and L2-normalizes the result.
//
// Codec parameters (centroids, bucket cutoffs/weights, average residual)
// are learned externally, loaded once, and immutable afterwards; a ready
// codec is safe for concurrent use. Batches are processed in bounded
// memory chunks that may run in parallel; results always come back in
// input order.
//
// Basic usage:
//
//	codec, err := rescodec.New(128, 2, rescodec.Params{
//	    Centroids:     centroids,
//	    BucketCutoffs: cutoffs,
//	    BucketWeights: weights,
//	})
//	if err != nil { ... }
//
//	batch, err := codec.Compress(ctx, vectors)
//	...
//	reconstructed, err := codec.Decompress(ctx, batch)
package rescodec
