package spectral

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-va/dsp/core"
)

const (
	minFFTSize = 16
	maxFFTSize = 1 << 20

	// guardBins is the half-width of the leakage skirt attributed to a
	// tone when locating or excluding it (Hann main lobe plus margin).
	guardBins = 3
)

// Analyzer computes Hann-windowed magnitude spectra. It reuses its
// internal buffers across calls and is not safe for concurrent use.
type Analyzer struct {
	size int
	plan *algofft.Plan[complex128]

	win    []float64
	winSum float64

	in  []complex128
	out []complex128
	re  []float64
	im  []float64
	mag []float64
}

// New constructs an analyzer for a power-of-two FFT size.
func New(fftSize int) (*Analyzer, error) {
	if fftSize < minFFTSize || fftSize > maxFFTSize || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("spectral: fft size must be a power of two in [%d, %d]: %d",
			minFFTSize, maxFFTSize, fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectral: %w", err)
	}

	a := &Analyzer{
		size: fftSize,
		plan: plan,
		win:  hann(fftSize),
		in:   make([]complex128, fftSize),
		out:  make([]complex128, fftSize),
		re:   make([]float64, fftSize/2+1),
		im:   make([]float64, fftSize/2+1),
		mag:  make([]float64, fftSize/2+1),
	}

	a.winSum = vecmath.Sum(a.win)

	return a, nil
}

// Size returns the FFT size.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the number of non-negative-frequency bins.
func (a *Analyzer) Bins() int { return a.size/2 + 1 }

// BinWidth returns the bin spacing in Hz for a sample rate.
func (a *Analyzer) BinWidth(sampleRate float64) float64 {
	return sampleRate / float64(a.size)
}

// Spectrum returns the windowed magnitude spectrum of signal, one value
// per bin from DC to Nyquist. Signals longer than the FFT size are
// truncated, shorter ones zero-padded. The returned slice is reused by
// the next call.
func (a *Analyzer) Spectrum(signal []float64) []float64 {
	n := len(signal)
	if n > a.size {
		n = a.size
	}

	for i := range a.size {
		if i < n {
			a.in[i] = complex(core.Sanitize(signal[i], 0)*a.win[i], 0)
		} else {
			a.in[i] = 0
		}
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		core.Zero(a.mag)
		return a.mag
	}

	for i := range a.re {
		a.re[i] = real(a.out[i])
		a.im[i] = imag(a.out[i])
	}

	vecmath.Magnitude(a.mag, a.re, a.im)

	return a.mag
}

// ToneAmplitude estimates the amplitude of a sine near freq Hz,
// normalized so a unit-amplitude sine reports approximately 1. The
// strongest bin within the leakage guard around freq is used.
func (a *Analyzer) ToneAmplitude(signal []float64, sampleRate, freq float64) float64 {
	if sampleRate <= 0 || freq <= 0 || freq >= sampleRate/2 {
		return 0
	}

	mag := a.Spectrum(signal)
	bin := int(math.Round(freq / a.BinWidth(sampleRate)))

	peak := peakIn(mag, bin-guardBins, bin+guardBins)

	return 2 * peak / a.winSum
}

// PeakBin returns the strongest non-DC bin of signal's spectrum.
func (a *Analyzer) PeakBin(signal []float64) int {
	mag := a.Spectrum(signal)

	best := 1
	for i := 2; i < len(mag); i++ {
		if mag[i] > mag[best] {
			best = i
		}
	}

	return best
}

// PeakFrequency returns the frequency of the strongest non-DC bin.
func (a *Analyzer) PeakFrequency(signal []float64, sampleRate float64) float64 {
	return float64(a.PeakBin(signal)) * a.BinWidth(sampleRate)
}

// AliasRatio measures energy that is neither the fundamental nor one of
// its first harmonics, relative to the fundamental level: the root sum
// of the residual bins divided by the fundamental's peak magnitude.
// Distortion that stays harmonic scores near zero; folded (aliased)
// components raise the ratio.
func (a *Analyzer) AliasRatio(signal []float64, sampleRate, fundamental float64, harmonics int) float64 {
	if sampleRate <= 0 || fundamental <= 0 || fundamental >= sampleRate/2 {
		return 0
	}

	if harmonics < 1 {
		harmonics = 1
	}

	mag := a.Spectrum(signal)
	binWidth := a.BinWidth(sampleRate)

	fundBin := int(math.Round(fundamental / binWidth))
	level := peakIn(mag, fundBin-guardBins, fundBin+guardBins)

	if level <= 0 {
		return 0
	}

	keep := make([]bool, len(mag))

	// DC skirt and every harmonic skirt up to Nyquist stay excluded.
	for i := 0; i <= guardBins && i < len(keep); i++ {
		keep[i] = true
	}

	for h := 1; h <= harmonics; h++ {
		center := int(math.Round(float64(h) * fundamental / binWidth))
		for b := center - guardBins; b <= center+guardBins; b++ {
			if b >= 0 && b < len(keep) {
				keep[b] = true
			}
		}
	}

	var residual float64

	for i, m := range mag {
		if !keep[i] {
			residual += m * m
		}
	}

	return math.Sqrt(residual) / level
}

// ToneAmplitude is a one-shot helper sized to the signal.
func ToneAmplitude(signal []float64, sampleRate, freq float64) float64 {
	a, err := New(fitSize(len(signal)))
	if err != nil {
		return 0
	}

	return a.ToneAmplitude(signal, sampleRate, freq)
}

// PeakFrequency is a one-shot helper sized to the signal.
func PeakFrequency(signal []float64, sampleRate float64) float64 {
	a, err := New(fitSize(len(signal)))
	if err != nil {
		return 0
	}

	return a.PeakFrequency(signal, sampleRate)
}

// AliasRatio is a one-shot helper sized to the signal.
func AliasRatio(signal []float64, sampleRate, fundamental float64, harmonics int) float64 {
	a, err := New(fitSize(len(signal)))
	if err != nil {
		return 0
	}

	return a.AliasRatio(signal, sampleRate, fundamental, harmonics)
}

func peakIn(mag []float64, lo, hi int) float64 {
	if lo < 1 {
		lo = 1
	}

	if hi > len(mag)-1 {
		hi = len(mag) - 1
	}

	var peak float64

	for i := lo; i <= hi; i++ {
		if mag[i] > peak {
			peak = mag[i]
		}
	}

	return peak
}

func fitSize(n int) int {
	size := minFFTSize
	for size < n && size < maxFFTSize {
		size <<= 1
	}

	return size
}

// hann returns the periodic Hann window, which keeps bin-centered
// tones confined to a three-bin skirt.
func hann(n int) []float64 {
	win := make([]float64, n)
	for i := range win {
		win[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}

	return win
}
