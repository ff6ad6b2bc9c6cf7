package persistence

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
)

// WriteMatrix writes a rows×cols float32 matrix as a framed binary
// artifact at path. The write is atomic: data goes to a temp file that is
// renamed into place.
func WriteMatrix(path string, kind Kind, comp Compression, rows, cols int, data []float32) error {
	if len(data) != rows*cols {
		return fmt.Errorf("%w: %d values for %dx%d matrix", ErrArtifactShape, len(data), rows, cols)
	}

	payload := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}

	compressed, err := compressPayload(payload, comp)
	if err != nil {
		return fmt.Errorf("compress artifact %s: %w", path, err)
	}

	storedComp := comp
	stored := compressed
	compLen := len(compressed)
	if compressed == nil {
		storedComp = CompressionNone
		stored = payload
		compLen = 0
	}

	buf := make([]byte, headerSize+len(stored)+4)
	binary.LittleEndian.PutUint32(buf[0:], MagicNumber)
	binary.LittleEndian.PutUint32(buf[4:], Version)
	buf[8] = byte(kind)
	buf[9] = byte(storedComp)
	binary.LittleEndian.PutUint32(buf[12:], uint32(rows))
	binary.LittleEndian.PutUint32(buf[16:], uint32(cols))
	binary.LittleEndian.PutUint32(buf[20:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[24:], uint32(compLen))
	copy(buf[headerSize:], stored)

	sum := crc32.ChecksumIEEE(buf[:headerSize+len(stored)])
	binary.LittleEndian.PutUint32(buf[headerSize+len(stored):], sum)

	return atomicWrite(path, buf)
}

// ReadMatrix reads a framed binary artifact, verifying magic, version,
// kind and checksum. It returns the matrix shape and values.
func ReadMatrix(path string, kind Kind) (rows, cols int, data []float32, err error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil, fmt.Errorf("%w: %s", ErrMissingArtifact, filepath.Base(path))
		}
		return 0, 0, nil, err
	}

	if len(buf) < headerSize+4 {
		return 0, 0, nil, fmt.Errorf("%w: %s is %d bytes", ErrTruncated, filepath.Base(path), len(buf))
	}

	if got := binary.LittleEndian.Uint32(buf[0:]); got != MagicNumber {
		return 0, 0, nil, fmt.Errorf("%w: %#x", ErrInvalidMagic, got)
	}
	if got := binary.LittleEndian.Uint32(buf[4:]); got != Version {
		return 0, 0, nil, fmt.Errorf("%w: %#x", ErrInvalidVersion, got)
	}
	if got := Kind(buf[8]); got != kind {
		return 0, 0, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKind, got, kind)
	}
	comp := Compression(buf[9])

	rows = int(binary.LittleEndian.Uint32(buf[12:]))
	cols = int(binary.LittleEndian.Uint32(buf[16:]))
	rawLen := int(binary.LittleEndian.Uint32(buf[20:]))
	compLen := int(binary.LittleEndian.Uint32(buf[24:]))

	storedLen := rawLen
	if compLen > 0 {
		storedLen = compLen
	}
	if len(buf) != headerSize+storedLen+4 {
		return 0, 0, nil, fmt.Errorf("%w: %s has %d payload bytes, want %d",
			ErrTruncated, filepath.Base(path), len(buf)-headerSize-4, storedLen)
	}

	want := binary.LittleEndian.Uint32(buf[headerSize+storedLen:])
	if got := crc32.ChecksumIEEE(buf[:headerSize+storedLen]); got != want {
		return 0, 0, nil, fmt.Errorf("%w: %s", ErrChecksum, filepath.Base(path))
	}

	payload := buf[headerSize : headerSize+storedLen]
	if compLen > 0 {
		payload, err = decompressPayload(payload, comp, rawLen)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("decompress artifact %s: %w", filepath.Base(path), err)
		}
	}

	if rawLen != rows*cols*4 || len(payload) != rawLen {
		return 0, 0, nil, fmt.Errorf("%w: %s payload is %d bytes for %dx%d matrix",
			ErrArtifactShape, filepath.Base(path), len(payload), rows, cols)
	}

	data = make([]float32, rows*cols)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}

	return rows, cols, data, nil
}

// atomicWrite writes data to a temp file and renames it into place.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
