package spectral

import (
	"math"
	"testing"
)

const testRate = 48000.0

// binSine fills a buffer with a sine landing exactly on FFT bin k.
func binSine(n, k int, amp float64) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = amp * math.Sin(2*math.Pi*float64(k)*float64(i)/float64(n))
	}

	return buf
}

func TestNewValidation(t *testing.T) {
	for _, size := range []int{0, 8, 100, 1 << 21} {
		if _, err := New(size); err == nil {
			t.Fatalf("New(%d) succeeded, want error", size)
		}
	}

	if _, err := New(1024); err != nil {
		t.Fatalf("New(1024) error = %v", err)
	}
}

func TestToneAmplitudeUnitSine(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	signal := binSine(4096, 443, 1)
	freq := 443 * a.BinWidth(testRate)

	got := a.ToneAmplitude(signal, testRate, freq)
	if math.Abs(got-1) > 0.02 {
		t.Fatalf("ToneAmplitude = %v, want ~1", got)
	}

	// Amplitude scales linearly.
	half := a.ToneAmplitude(binSine(4096, 443, 0.5), testRate, freq)
	if math.Abs(half-0.5) > 0.01 {
		t.Fatalf("ToneAmplitude at 0.5 = %v", half)
	}

	// Far away from the tone there is only leakage floor.
	if off := a.ToneAmplitude(signal, testRate, freq*3); off > 1e-3 {
		t.Fatalf("off-tone amplitude = %v, want near 0", off)
	}
}

func TestPeakFrequencyFindsTone(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	signal := binSine(4096, 300, 0.8)
	want := 300 * a.BinWidth(testRate)

	got := a.PeakFrequency(signal, testRate)
	if math.Abs(got-want) > a.BinWidth(testRate) {
		t.Fatalf("PeakFrequency = %v, want %v", got, want)
	}
}

func TestAliasRatioSeparatesHarmonicFromFolded(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fund := 200 * a.BinWidth(testRate)

	// Pure tone: nothing outside the fundamental skirt.
	pure := binSine(4096, 200, 1)
	if r := a.AliasRatio(pure, testRate, fund, 5); r > 1e-3 {
		t.Fatalf("pure tone alias ratio = %v", r)
	}

	// Tone plus third harmonic: still harmonic, still near zero.
	harmonic := binSine(4096, 200, 1)
	third := binSine(4096, 600, 0.2)

	for i := range harmonic {
		harmonic[i] += third[i]
	}

	if r := a.AliasRatio(harmonic, testRate, fund, 5); r > 1e-3 {
		t.Fatalf("harmonic signal alias ratio = %v", r)
	}

	// An inharmonic component counts as folded content.
	folded := binSine(4096, 200, 1)
	stray := binSine(4096, 777, 0.1)

	for i := range folded {
		folded[i] += stray[i]
	}

	r := a.AliasRatio(folded, testRate, fund, 5)
	if r < 0.05 {
		t.Fatalf("folded signal alias ratio = %v, want clearly nonzero", r)
	}
}

func TestAliasRatioGuards(t *testing.T) {
	a, err := New(1024)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	silence := make([]float64, 1024)

	if r := a.AliasRatio(silence, testRate, 1000, 4); r != 0 {
		t.Fatalf("silence alias ratio = %v, want 0", r)
	}

	if r := a.AliasRatio(binSine(1024, 100, 1), testRate, -5, 4); r != 0 {
		t.Fatalf("invalid fundamental alias ratio = %v, want 0", r)
	}
}

func TestOneShotHelpersMatchAnalyzer(t *testing.T) {
	signal := binSine(4096, 128, 0.7)

	a, err := New(4096)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	freq := 128 * a.BinWidth(testRate)

	if got, want := ToneAmplitude(signal, testRate, freq), a.ToneAmplitude(signal, testRate, freq); got != want {
		t.Fatalf("one-shot ToneAmplitude = %v, analyzer = %v", got, want)
	}

	if got, want := PeakFrequency(signal, testRate), a.PeakFrequency(signal, testRate); got != want {
		t.Fatalf("one-shot PeakFrequency = %v, analyzer = %v", got, want)
	}
}

func TestSpectrumHandlesNonFinite(t *testing.T) {
	a, err := New(256)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	signal := make([]float64, 256)
	signal[10] = math.NaN()
	signal[20] = math.Inf(1)

	for _, m := range a.Spectrum(signal) {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			t.Fatal("spectrum contains non-finite magnitude")
		}
	}
}

func BenchmarkSpectrum(b *testing.B) {
	a, err := New(4096)
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}

	signal := binSine(4096, 443, 1)

	b.ReportAllocs()
	b.ResetTimer()

	for range b.N {
		a.Spectrum(signal)
	}
}
