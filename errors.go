package rescodec

import "fmt"

// ErrInvalidConfig indicates that dimension or bit-width invariants were
// violated at construction.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidConfig struct {
	Reason string
	cause  error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid codec configuration: %s", e.Reason)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

// ErrShapeMismatch indicates that an input matrix does not match the
// codec's declared shape: a compress input row whose width is not D, or a
// decompress input whose packed-residual row width is not D·nbits/8.
type ErrShapeMismatch struct {
	What     string
	Expected int
	Actual   int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shape mismatch: %s expected %d, got %d", e.What, e.Expected, e.Actual)
}
