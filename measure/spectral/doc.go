// Package spectral provides windowed FFT measurements for test and
// analysis workflows: tone amplitude, peak frequency, and an alias
// ratio that separates harmonic distortion from folded spectral
// content.
//
// The helpers are measurement tools, not audio-thread code: they
// allocate freely and trade speed for readable numbers.
package spectral
