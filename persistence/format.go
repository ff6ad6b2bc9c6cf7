// Package persistence stores and restores codec parameters as independent
// artifacts under a base directory.
package persistence

import "errors"

const (
	// MagicNumber identifies rescodec artifact files (ASCII: "RQC1").
	MagicNumber = 0x52514331
	// Version is the current artifact format version.
	Version = 0x00010000

	// ManifestFileName is the JSON manifest in the artifact directory.
	ManifestFileName = "manifest.json"
	// CentroidsFileName holds the C×D centroid matrix.
	CentroidsFileName = "centroids.rq"
	// BucketsFileName holds the cutoff and weight tables.
	BucketsFileName = "buckets.rq"
	// AvgResidualFileName holds the diagnostic average residual.
	AvgResidualFileName = "avg_residual.rq"
)

// Kind identifies the content of an artifact file.
type Kind uint8

const (
	// KindCentroids is the C×D centroid matrix.
	KindCentroids Kind = 1
	// KindBuckets is the concatenated cutoff and weight tables.
	KindBuckets Kind = 2
	// KindAvgResidual is the opaque average-residual vector.
	KindAvgResidual Kind = 3
)

var (
	// ErrInvalidMagic indicates the file is not a rescodec artifact.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidVersion indicates an unsupported artifact format version.
	ErrInvalidVersion = errors.New("unsupported version")
	// ErrInvalidKind indicates the artifact holds a different parameter
	// than the caller asked for.
	ErrInvalidKind = errors.New("unexpected artifact kind")
	// ErrChecksum indicates artifact corruption.
	ErrChecksum = errors.New("artifact checksum mismatch")
	// ErrMissingArtifact indicates a required parameter file is absent.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrArtifactShape indicates an artifact shape inconsistent with the
	// declared dim/nbits.
	ErrArtifactShape = errors.New("artifact shape mismatch")
	// ErrTruncated indicates a short or malformed artifact file.
	ErrTruncated = errors.New("truncated artifact")
)

// Binary artifact layout (little-endian):
//
//	magic    uint32
//	version  uint32
//	kind     uint8
//	comp     uint8
//	reserved [2]byte
//	rows     uint32
//	cols     uint32
//	rawLen   uint32  payload size before compression
//	compLen  uint32  payload size on disk; 0 means stored raw
//	payload  []byte
//	crc32    uint32  IEEE, over header and payload
const headerSize = 28
