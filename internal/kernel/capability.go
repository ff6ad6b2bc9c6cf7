package kernel

import (
	"os"
	"strings"
)

// Kind identifies a backend implementation.
type Kind uint8

const (
	// Generic is the pure-Go implementation.
	Generic Kind = iota
	// BLAS is the gonum-accelerated implementation.
	BLAS
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case Generic:
		return "generic"
	case BLAS:
		return "blas"
	default:
		return "unknown"
	}
}

// ParseKind parses a string into a Kind value.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "blas":
		return BLAS, true
	default:
		return Generic, false
	}
}

// Package-level state, written only during package init.
var (
	// defaultKind is the backend chosen when the codec does not request
	// one explicitly.
	defaultKind Kind

	// hasOverride is true if RESCODEC_BACKEND was set.
	hasOverride bool

	// hasWideSIMD is set by platform-specific init when the CPU carries
	// vector units wide enough for the BLAS path to pay off.
	hasWideSIMD bool
)

// initCapabilities is called from platform-specific init functions
// after CPU features are detected.
func initCapabilities() {
	if override := os.Getenv("RESCODEC_BACKEND"); override != "" {
		if kind, ok := ParseKind(override); ok {
			hasOverride = true
			defaultKind = kind
			return
		}
	}

	if hasWideSIMD {
		defaultKind = BLAS
	} else {
		defaultKind = Generic
	}
}

// DefaultKind returns the backend selected for this process.
func DefaultKind() Kind {
	return defaultKind
}

// IsOverridden returns true if RESCODEC_BACKEND was set.
func IsOverridden() bool {
	return hasOverride
}
