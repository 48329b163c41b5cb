// Package param provides smoothed control parameters for real-time
// processing blocks.
//
// A Param is a single-writer/single-reader pair: a control thread posts
// target values with Set, and the audio thread advances the smoothed
// value once per sample with Next. The only shared state is one atomic
// word holding the target, so neither side ever blocks or allocates.
// Smoothing is a linear ramp over a configurable time, which guarantees
// a monotonic, non-overshooting path between values.
//
// A Registry groups named parameters behind a single Set(id, value)
// entry point for host-facing control channels. Its topology is fixed
// after construction; only values change at runtime.
package param
