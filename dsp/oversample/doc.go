// Package oversample provides integer-factor polyphase oversampling for
// nonlinear processing stages.
//
// An Oversampler raises a signal's sample rate by a fixed factor N
// (2, 4, or 8) through zero-stuffing plus a polyphase Kaiser-windowed
// lowpass, and decimates back through a matching anti-alias filter.
// Running a nonlinearity between Upsample and Downsample pushes its
// aliasing products above the audible band.
//
// Filter lengths are chosen so the round trip has a constant,
// input-independent group delay of exactly Latency() base-rate samples.
// Both transforms run over history buffers pre-sized by Prepare and
// never allocate per call.
package oversample
