package block

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-va/dsp/core"
	"github.com/cwbudde/algo-va/dsp/param"
)

const defaultQ = 1 / math.Sqrt2

// Coefficients holds one normalized second-order section. a0 is 1 and
// not stored.
//
// The sign convention follows Direct Form II Transposed:
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity returns pass-through coefficients.
func Identity() Coefficients { return Coefficients{B0: 1} }

// Section is one biquad with coefficients and delay state.
type Section struct {
	Coefficients

	d0, d1 float64
}

// NewSection returns a section with the given coefficients and zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// ProcessSample filters one sample.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y

	return y
}

// ProcessBlock filters buf in place. Zero-alloc.
func (s *Section) ProcessBlock(buf []float64) {
	b0, b1, b2 := s.B0, s.B1, s.B2
	a1, a2 := s.A1, s.A2
	d0, d1 := s.d0, s.d1

	for i, x := range buf {
		y := b0*x + d0
		d0 = b1*x - a1*y + d1
		d1 = b2*x - a2*y
		buf[i] = y
	}

	s.d0 = core.FlushDenormals(d0)
	s.d1 = core.FlushDenormals(d1)
}

// Reset clears the delay line.
func (s *Section) Reset() {
	s.d0 = 0
	s.d1 = 0
}

// Lowpass designs an RBJ lowpass at freq Hz with quality factor q.
// Out-of-range frequencies yield pass-through coefficients.
func Lowpass(freq, q, sampleRate float64) Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return Identity()
	}

	q = normalizedQ(q)
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b1 := 1 - cw
	b0 := b1 / 2

	return normalizeBiquad(b0, b1, b0, 1+alpha, -2*cw, 1-alpha)
}

// Highpass designs an RBJ highpass at freq Hz with quality factor q.
func Highpass(freq, q, sampleRate float64) Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return Identity()
	}

	q = normalizedQ(q)
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 := (1 + cw) / 2

	return normalizeBiquad(b0, -2*b0, b0, 1+alpha, -2*cw, 1-alpha)
}

// LowShelf designs an RBJ low shelf at freq Hz with gain in dB.
func LowShelf(freq, gainDB, q, sampleRate float64) Coefficients {
	return shelf(freq, gainDB, q, sampleRate, false)
}

// HighShelf designs an RBJ high shelf at freq Hz with gain in dB.
func HighShelf(freq, gainDB, q, sampleRate float64) Coefficients {
	return shelf(freq, gainDB, q, sampleRate, true)
}

func shelf(freq, gainDB, q, sampleRate float64, high bool) Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok || !core.IsFinite(gainDB) {
		return Identity()
	}

	q = normalizedQ(q)

	a := math.Pow(10, gainDB/40)
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	sign := 1.0
	if high {
		sign = -1
	}

	b0 := a * ((a + 1) - sign*(a-1)*cw + beta)
	b1 := sign * 2 * a * ((a - 1) - sign*(a+1)*cw)
	b2 := a * ((a + 1) - sign*(a-1)*cw - beta)
	a0 := (a + 1) + sign*(a-1)*cw + beta
	a1 := sign * -2 * ((a - 1) + sign*(a+1)*cw)
	a2 := (a + 1) + sign*(a-1)*cw - beta

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

func normalizedW0(freq, sampleRate float64) (float64, bool) {
	if !core.IsFinite(freq) || !core.IsFinite(sampleRate) {
		return 0, false
	}

	if sampleRate <= 0 || freq <= 0 || freq >= sampleRate/2 {
		return 0, false
	}

	return 2 * math.Pi * freq / sampleRate, true
}

func normalizedQ(q float64) float64 {
	if !core.IsFinite(q) || q <= 0 {
		return defaultQ
	}

	return q
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	if a0 == 0 || !core.IsFinite(a0) {
		return Identity()
	}

	inv := 1 / a0

	return Coefficients{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: a1 * inv,
		A2: a2 * inv,
	}
}

// FilterMode selects the Biquad block's response type.
type FilterMode int

const (
	// ModeLowpass is a 12 dB/oct lowpass.
	ModeLowpass FilterMode = iota
	// ModeHighpass is a 12 dB/oct highpass.
	ModeHighpass
	// ModeLowShelf is a low shelf with configurable gain.
	ModeLowShelf
	// ModeHighShelf is a high shelf with configurable gain.
	ModeHighShelf
)

func (m FilterMode) String() string {
	switch m {
	case ModeLowpass:
		return "lowpass"
	case ModeHighpass:
		return "highpass"
	case ModeLowShelf:
		return "low_shelf"
	case ModeHighShelf:
		return "high_shelf"
	default:
		return "unknown"
	}
}

// BiquadOption mutates Biquad construction.
type BiquadOption func(*biquadConfig) error

type biquadConfig struct {
	mode      FilterMode
	q         float64
	gainDB    float64
	smoothing time.Duration
}

// WithFilterMode selects the response type.
func WithFilterMode(mode FilterMode) BiquadOption {
	return func(cfg *biquadConfig) error {
		if mode < ModeLowpass || mode > ModeHighShelf {
			return fmt.Errorf("block: invalid filter mode: %d", mode)
		}

		cfg.mode = mode

		return nil
	}
}

// WithQ sets the quality factor in (0, 20].
func WithQ(q float64) BiquadOption {
	return func(cfg *biquadConfig) error {
		if !core.IsFinite(q) || q <= 0 || q > 20 {
			return fmt.Errorf("block: q must be in (0, 20]: %v", q)
		}

		cfg.q = q

		return nil
	}
}

// WithShelfGainDB sets shelf gain in [-36, 36] dB. Ignored by
// lowpass/highpass modes.
func WithShelfGainDB(gainDB float64) BiquadOption {
	return func(cfg *biquadConfig) error {
		if !core.IsFinite(gainDB) || gainDB < -36 || gainDB > 36 {
			return fmt.Errorf("block: shelf gain must be in [-36, 36] dB: %v", gainDB)
		}

		cfg.gainDB = gainDB

		return nil
	}
}

// WithCutoffSmoothing sets the cutoff ramp duration.
func WithCutoffSmoothing(d time.Duration) BiquadOption {
	return func(cfg *biquadConfig) error {
		if d < 0 {
			return fmt.Errorf("block: cutoff smoothing must be >= 0: %v", d)
		}

		cfg.smoothing = d

		return nil
	}
}

// Biquad is a second-order filter block with a smoothed cutoff
// parameter. The cutoff ramp is consumed at block rate: coefficients
// are redesigned once per processed block.
type Biquad struct {
	mode   FilterMode
	q      float64
	gainDB float64

	cutoff  *param.Param
	section Section

	sampleRate float64
	designedFc float64
}

// NewBiquad constructs a filter block with the given initial cutoff in Hz.
func NewBiquad(cutoffHz float64, opts ...BiquadOption) (*Biquad, error) {
	if !core.IsFinite(cutoffHz) || cutoffHz <= 0 {
		return nil, fmt.Errorf("block: cutoff must be > 0 and finite: %v", cutoffHz)
	}

	cfg := biquadConfig{
		mode:      ModeLowpass,
		q:         defaultQ,
		smoothing: 20 * time.Millisecond,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	cutoff, err := param.New(cutoffHz, param.WithSmoothingTime(cfg.smoothing))
	if err != nil {
		return nil, err
	}

	return &Biquad{
		mode:   cfg.mode,
		q:      cfg.q,
		gainDB: cfg.gainDB,
		cutoff: cutoff,
	}, nil
}

// Mode returns the response type.
func (b *Biquad) Mode() FilterMode { return b.mode }

// Cutoff exposes the cutoff parameter for the control thread.
func (b *Biquad) Cutoff() *param.Param { return b.cutoff }

// SetCutoffHz posts a new cutoff target.
func (b *Biquad) SetCutoffHz(freq float64) { b.cutoff.Set(freq) }

// Prepare binds the block to a sample rate and designs the initial
// coefficients.
func (b *Biquad) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validatePrepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	if err := b.cutoff.Prepare(sampleRate); err != nil {
		return err
	}

	b.sampleRate = sampleRate
	b.redesign(b.cutoff.Value())

	return nil
}

// Process filters buf in place.
func (b *Biquad) Process(buf []float64) {
	if len(buf) == 0 || b.sampleRate <= 0 {
		return
	}

	core.SanitizeBuffer(buf)

	if fc := b.cutoff.Step(len(buf)); fc != b.designedFc {
		b.redesign(fc)
	}

	b.section.ProcessBlock(buf)
}

// Reset clears the delay line and snaps the cutoff ramp.
func (b *Biquad) Reset() {
	b.section.Reset()
	b.cutoff.Reset()

	if b.sampleRate > 0 {
		b.redesign(b.cutoff.Value())
	}
}

func (b *Biquad) redesign(fc float64) {
	switch b.mode {
	case ModeLowpass:
		b.section.Coefficients = Lowpass(fc, b.q, b.sampleRate)
	case ModeHighpass:
		b.section.Coefficients = Highpass(fc, b.q, b.sampleRate)
	case ModeLowShelf:
		b.section.Coefficients = LowShelf(fc, b.gainDB, b.q, b.sampleRate)
	case ModeHighShelf:
		b.section.Coefficients = HighShelf(fc, b.gainDB, b.q, b.sampleRate)
	}

	b.designedFc = fc
}
