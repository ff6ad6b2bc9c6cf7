// Package kernel provides the numeric execution backends for the codec.
//
// Two interchangeable implementations satisfy the same contract: a generic
// pure-Go backend and a BLAS-accelerated backend. Selection happens once at
// codec construction; the choice affects throughput only, never results
// (up to floating-point accumulation order).
package kernel
