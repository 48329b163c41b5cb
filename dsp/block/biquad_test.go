package block

import (
	"math"
	"testing"
	"time"
)

func rms(buf []float64) float64 {
	var sum float64
	for _, v := range buf {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(buf)))
}

func fillSine(buf []float64, freq, sampleRate float64) {
	for i := range buf {
		buf[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
}

func TestSectionLowpassPassesDC(t *testing.T) {
	s := NewSection(Lowpass(1000, defaultQ, 48000))

	var y float64
	for range 4096 {
		y = s.ProcessSample(1)
	}

	if math.Abs(y-1) > 1e-6 {
		t.Fatalf("lowpass DC gain = %v, want 1", y)
	}
}

func TestSectionHighpassBlocksDC(t *testing.T) {
	s := NewSection(Highpass(1000, defaultQ, 48000))

	var y float64
	for range 4096 {
		y = s.ProcessSample(1)
	}

	if math.Abs(y) > 1e-6 {
		t.Fatalf("highpass DC output = %v, want 0", y)
	}
}

func TestDesignOutOfRangeIsIdentity(t *testing.T) {
	tests := []struct {
		name string
		c    Coefficients
	}{
		{"zero_freq", Lowpass(0, defaultQ, 48000)},
		{"above_nyquist", Lowpass(30000, defaultQ, 48000)},
		{"nan_freq", Highpass(math.NaN(), defaultQ, 48000)},
		{"zero_rate", Lowpass(1000, defaultQ, 0)},
		{"nan_shelf_gain", LowShelf(1000, math.NaN(), defaultQ, 48000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.c != Identity() {
				t.Fatalf("coefficients = %+v, want identity", tt.c)
			}
		})
	}
}

func TestShelfGainAtExtremes(t *testing.T) {
	// A +12 dB low shelf boosts DC by 12 dB and leaves Nyquist alone.
	s := NewSection(LowShelf(1000, 12, defaultQ, 48000))

	var y float64
	for range 8192 {
		y = s.ProcessSample(1)
	}

	want := math.Pow(10, 12.0/20)
	if math.Abs(y-want) > 1e-3 {
		t.Fatalf("low shelf DC gain = %v, want %v", y, want)
	}
}

func TestBiquadBlockLowpassAttenuates(t *testing.T) {
	b, err := NewBiquad(500, WithFilterMode(ModeLowpass))
	if err != nil {
		t.Fatalf("NewBiquad() error = %v", err)
	}

	if err := b.Prepare(48000, 4096); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	buf := make([]float64, 4096)
	fillSine(buf, 8000, 48000)

	inRMS := rms(buf)
	b.Process(buf)

	// Skip the initial transient before measuring.
	outRMS := rms(buf[1024:])
	if outRMS > 0.05*inRMS {
		t.Fatalf("8 kHz through 500 Hz lowpass: out RMS %v vs in %v", outRMS, inRMS)
	}
}

func TestBiquadBlockPassband(t *testing.T) {
	b, err := NewBiquad(8000, WithFilterMode(ModeLowpass))
	if err != nil {
		t.Fatalf("NewBiquad() error = %v", err)
	}

	if err := b.Prepare(48000, 4096); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	buf := make([]float64, 4096)
	fillSine(buf, 100, 48000)

	inRMS := rms(buf)
	b.Process(buf)

	outRMS := rms(buf[1024:])
	if math.Abs(outRMS-inRMS) > 0.05*inRMS {
		t.Fatalf("100 Hz through 8 kHz lowpass: out RMS %v vs in %v", outRMS, inRMS)
	}
}

func TestBiquadCutoffRedesignsAtBlockRate(t *testing.T) {
	b, err := NewBiquad(500,
		WithFilterMode(ModeLowpass),
		WithCutoffSmoothing(time.Millisecond))
	if err != nil {
		t.Fatalf("NewBiquad() error = %v", err)
	}

	if err := b.Prepare(48000, 256); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	b.SetCutoffHz(8000)

	// After the 1 ms ramp the block must behave like an 8 kHz lowpass.
	buf := make([]float64, 256)
	for range 8 {
		fillSine(buf, 4000, 48000)
		b.Process(buf)
	}

	ref, err := NewBiquad(8000, WithFilterMode(ModeLowpass))
	if err != nil {
		t.Fatalf("NewBiquad() error = %v", err)
	}

	if err := ref.Prepare(48000, 4096); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	long := make([]float64, 4096)
	fillSine(long, 4000, 48000)
	ref.Process(long)
	refRMS := rms(long[1024:])

	fillSine(buf, 4000, 48000)
	b.Process(buf)

	if got := rms(buf); math.Abs(got-refRMS) > 0.1*refRMS {
		t.Fatalf("retuned filter RMS %v, reference %v", got, refRMS)
	}
}

func TestBiquadValidation(t *testing.T) {
	if _, err := NewBiquad(0); err == nil {
		t.Fatal("expected error for zero cutoff")
	}

	if _, err := NewBiquad(1000, WithQ(0)); err == nil {
		t.Fatal("expected error for zero q")
	}

	if _, err := NewBiquad(1000, WithShelfGainDB(99)); err == nil {
		t.Fatal("expected error for out-of-range shelf gain")
	}

	if _, err := NewBiquad(1000, WithFilterMode(FilterMode(42))); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestBiquadResetClearsState(t *testing.T) {
	b, err := NewBiquad(500, WithFilterMode(ModeLowpass))
	if err != nil {
		t.Fatalf("NewBiquad() error = %v", err)
	}

	if err := b.Prepare(48000, 64); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	buf := make([]float64, 64)
	fillSine(buf, 200, 48000)
	b.Process(buf)

	b.Reset()

	zero := make([]float64, 64)
	b.Process(zero)

	for i, v := range zero {
		if v != 0 {
			t.Fatalf("sample %d after Reset = %v, want 0", i, v)
		}
	}
}

func BenchmarkBiquadBlock(b *testing.B) {
	blk, err := NewBiquad(1000, WithFilterMode(ModeLowpass))
	if err != nil {
		b.Fatalf("NewBiquad() error = %v", err)
	}

	if err := blk.Prepare(48000, 1024); err != nil {
		b.Fatalf("Prepare() error = %v", err)
	}

	buf := make([]float64, 1024)
	fillSine(buf, 440, 48000)

	b.ReportAllocs()
	b.ResetTimer()

	for range b.N {
		blk.Process(buf)
	}
}
