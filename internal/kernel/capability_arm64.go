//go:build arm64

package kernel

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

func init() {
	// cpu.ARM64 feature detection is unreliable on darwin; Apple Silicon
	// always has ASIMD.
	hasWideSIMD = cpu.ARM64.HasASIMD || runtime.GOOS == "darwin"
	initCapabilities()
}
