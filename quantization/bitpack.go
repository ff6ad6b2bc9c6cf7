package quantization

import "fmt"

// ErrCodeOutOfRange reports a quantization code outside [0, 2^nbits)
// reaching the packer. This is an internal invariant violation, not a
// user input error: the bucket quantizer guarantees the range.
type ErrCodeOutOfRange struct {
	Code  uint8
	NBits int
}

func (e *ErrCodeOutOfRange) Error() string {
	return fmt.Sprintf("quantization code %d out of range for %d bits", e.Code, e.NBits)
}

// Packer packs n-bit codes into a dense byte buffer.
//
// Canonical layout: codes fill each byte most-significant field first, so
// for nbits=2 the codes c0..c3 become c0<<6 | c1<<4 | c2<<2 | c3. The
// layout is fixed and backend-independent; Unpacker reverses it exactly.
type Packer struct {
	nbits    int
	perByte  int
	codeMask uint8
}

// NewPacker creates a packer for nbits-wide codes. nbits must be 1, 2,
// 4 or 8.
func NewPacker(nbits int) (*Packer, error) {
	if nbits != 1 && nbits != 2 && nbits != 4 && nbits != 8 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBits, nbits)
	}

	return &Packer{
		nbits:    nbits,
		perByte:  8 / nbits,
		codeMask: uint8(1<<nbits - 1),
	}, nil
}

// PackedLen returns the packed byte length for dims codes.
// dims must be a multiple of 8/nbits so rows pack without partial bytes.
func (p *Packer) PackedLen(dims int) int {
	return dims * p.nbits / 8
}

// Pack packs len(codes) codes into dst. len(codes) must be a multiple of
// 8/nbits and dst must have length PackedLen(len(codes)). A code outside
// [0, 2^nbits) fails with ErrCodeOutOfRange before any byte is written.
func (p *Packer) Pack(dst []byte, codes []uint8) error {
	for _, code := range codes {
		if code&^p.codeMask != 0 {
			return &ErrCodeOutOfRange{Code: code, NBits: p.nbits}
		}
	}

	for i := range dst {
		group := codes[i*p.perByte : (i+1)*p.perByte]

		var b uint8
		for _, code := range group {
			b = b<<p.nbits | code
		}
		dst[i] = b
	}

	return nil
}

// NBits returns the bits-per-code value.
func (p *Packer) NBits() int {
	return p.nbits
}

// CodesPerByte returns 8/nbits.
func (p *Packer) CodesPerByte() int {
	return p.perByte
}

// Unpacker is the exact inverse of Packer.
//
// It owns a construction-time lookup table mapping every possible byte to
// its 8/nbits constituent codes, rebuilt whenever nbits changes. The table
// is read-only after construction and safe for concurrent use.
type Unpacker struct {
	nbits   int
	perByte int
	table   []uint8 // 256 rows of perByte codes, flattened
}

// NewUnpacker creates an unpacker for nbits-wide codes.
func NewUnpacker(nbits int) (*Unpacker, error) {
	if nbits != 1 && nbits != 2 && nbits != 4 && nbits != 8 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBits, nbits)
	}

	perByte := 8 / nbits
	mask := uint8(1<<nbits - 1)

	table := make([]uint8, 256*perByte)
	for b := 0; b < 256; b++ {
		for j := 0; j < perByte; j++ {
			shift := 8 - (j+1)*nbits
			table[b*perByte+j] = uint8(b>>shift) & mask
		}
	}

	return &Unpacker{
		nbits:   nbits,
		perByte: perByte,
		table:   table,
	}, nil
}

// Unpack expands packed bytes into dst. dst must have length
// len(packed) * 8/nbits.
func (u *Unpacker) Unpack(dst []uint8, packed []byte) {
	for i, b := range packed {
		row := u.table[int(b)*u.perByte : (int(b)+1)*u.perByte]
		copy(dst[i*u.perByte:], row)
	}
}

// NBits returns the bits-per-code value.
func (u *Unpacker) NBits() int {
	return u.nbits
}
