// Package block provides buffer-oriented audio processors behind a
// single Block interface.
//
// A Block is prepared once for a sample rate and maximum block size
// (allocation happens here) and then processes mono buffers in place on
// the audio thread without allocating, blocking, or panicking. Internal
// failures degrade the output; they never surface as errors or
// non-finite samples on the hot path.
//
// The package covers the linear staples (Gain, Mixer, Biquad), the
// memoryless Shaper, two circuit-level nonlinear processors (Clipper on
// a wave digital filter tree, Ladder on an implicit four-stage model)
// and an Oversampled wrapper that runs any inner Block at a multiple of
// the host rate.
package block
