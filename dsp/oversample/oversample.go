package oversample

import (
	"errors"
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-va/dsp/core"
)

var (
	// ErrFactor indicates an unsupported oversampling factor.
	ErrFactor = errors.New("oversample: factor must be one of {2, 4, 8}")
	// ErrBlockSize indicates an invalid maximum block size.
	ErrBlockSize = errors.New("oversample: max block size must be > 0")
)

// Quality selects the anti-alias filter quality/latency trade-off.
type Quality int

const (
	// QualityFast prioritizes low latency and CPU over stopband depth.
	QualityFast Quality = iota
	// QualityBalanced is the default trade-off.
	QualityBalanced
	// QualityBest prioritizes stopband attenuation and passband flatness.
	QualityBest
)

// Profile exposes the filter parameters behind a quality mode.
type Profile struct {
	TapsPerPhase int
	CutoffScale  float64
	KaiserBeta   float64
}

// QualityProfile returns the parameters used by quality mode q.
func QualityProfile(q Quality) Profile {
	switch q {
	case QualityFast:
		return Profile{TapsPerPhase: 8, CutoffScale: 0.85, KaiserBeta: 5.0}
	case QualityBest:
		return Profile{TapsPerPhase: 32, CutoffScale: 0.94, KaiserBeta: 9.0}
	default:
		return Profile{TapsPerPhase: 16, CutoffScale: 0.90, KaiserBeta: 7.5}
	}
}

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	quality      Quality
	tapsPerPhase int
	cutoffScale  float64
	kaiserBeta   float64
}

func defaultConfig() config {
	return config{quality: QualityBalanced}
}

// WithQuality selects a predefined anti-alias quality mode.
func WithQuality(q Quality) Option {
	return func(cfg *config) error {
		if q < QualityFast || q > QualityBest {
			return fmt.Errorf("oversample: invalid quality: %d", q)
		}

		cfg.quality = q

		return nil
	}
}

// WithTapsPerPhase overrides taps per polyphase branch in [4, 128].
// The round-trip latency equals this value in base-rate samples.
func WithTapsPerPhase(n int) Option {
	return func(cfg *config) error {
		if n < 4 || n > 128 {
			return fmt.Errorf("oversample: taps per phase must be in [4, 128]: %d", n)
		}

		cfg.tapsPerPhase = n

		return nil
	}
}

// WithCutoffScale overrides normalized cutoff scaling in (0, 1].
func WithCutoffScale(v float64) Option {
	return func(cfg *config) error {
		if !(v > 0 && v <= 1) {
			return fmt.Errorf("oversample: cutoff scale must be in (0, 1]: %v", v)
		}

		cfg.cutoffScale = v

		return nil
	}
}

// WithKaiserBeta overrides the Kaiser window beta parameter in [0, 20].
func WithKaiserBeta(beta float64) Option {
	return func(cfg *config) error {
		if !core.IsFinite(beta) || beta < 0 || beta > 20 {
			return fmt.Errorf("oversample: kaiser beta must be in [0, 20]: %v", beta)
		}

		cfg.kaiserBeta = beta

		return nil
	}
}

// Oversampler performs factor-N up/down conversion around a nonlinear
// processing stage. The factor and filters are fixed at construction;
// changing either means constructing a new Oversampler.
type Oversampler struct {
	factor  int
	quality Quality
	latency int

	// Polyphase interpolation branches, each reversed for contiguous
	// dot products; all branches share one length.
	upPhases  [][]float64
	branchLen int

	// Reversed decimation filter.
	down []float64

	maxBlock int
	upWork   []float64
	downWork []float64
	upHist   int
	downHist int
}

// New constructs an oversampler for the given integer factor.
func New(factor int, opts ...Option) (*Oversampler, error) {
	if !validFactor(factor) {
		return nil, fmt.Errorf("%w: %d", ErrFactor, factor)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	profile := QualityProfile(cfg.quality)
	if cfg.tapsPerPhase > 0 {
		profile.TapsPerPhase = cfg.tapsPerPhase
	}

	if cfg.cutoffScale > 0 {
		profile.CutoffScale = cfg.cutoffScale
	}

	if cfg.kaiserBeta > 0 {
		profile.KaiserBeta = cfg.kaiserBeta
	}

	// Cutoff sits below the base-rate Nyquist, normalized to the
	// oversampled rate.
	fc := 0.5 / float64(factor) * profile.CutoffScale

	upTaps := profile.TapsPerPhase * factor
	// Interpolator gain factor compensates zero-stuffing attenuation.
	upProto, err := designLowpass(upTaps, fc, profile.KaiserBeta, float64(factor))
	if err != nil {
		return nil, err
	}

	// Two extra taps make the cascaded group delay an exact multiple of
	// the factor: (upTaps-1 + downTaps-1)/2 = TapsPerPhase*factor.
	downTaps := upTaps + 2

	downProto, err := designLowpass(downTaps, fc, profile.KaiserBeta, 1)
	if err != nil {
		return nil, err
	}

	o := &Oversampler{
		factor:    factor,
		quality:   cfg.quality,
		latency:   profile.TapsPerPhase,
		upPhases:  splitPolyphase(upProto, factor),
		branchLen: profile.TapsPerPhase,
		down:      reverse(downProto),
	}

	return o, nil
}

// Factor returns the oversampling factor.
func (o *Oversampler) Factor() int { return o.factor }

// Quality returns the configured quality mode.
func (o *Oversampler) Quality() Quality { return o.quality }

// Latency returns the constant round-trip group delay in base-rate samples.
func (o *Oversampler) Latency() int { return o.latency }

// MaxBlockSize returns the prepared maximum base-rate block size, or 0.
func (o *Oversampler) MaxBlockSize() int { return o.maxBlock }

// Prepare sizes the history and work buffers for base-rate blocks of at
// most maxBlockSize samples. Not safe to call concurrently with
// Upsample/Downsample.
func (o *Oversampler) Prepare(maxBlockSize int) error {
	if maxBlockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBlockSize, maxBlockSize)
	}

	o.maxBlock = maxBlockSize
	o.upHist = o.branchLen - 1
	o.downHist = len(o.down) - 1
	o.upWork = make([]float64, o.upHist+maxBlockSize)
	o.downWork = make([]float64, o.downHist+maxBlockSize*o.factor)

	o.Reset()

	return nil
}

// Reset clears the filter history.
func (o *Oversampler) Reset() {
	core.Zero(o.upWork)
	core.Zero(o.downWork)
}

// Upsample converts src (base rate) into dst (oversampled rate).
// dst must hold Factor()*len(src) samples. Inputs beyond the prepared
// maximum block size are ignored; calling before Prepare is a no-op.
// Never allocates.
func (o *Oversampler) Upsample(dst, src []float64) int {
	if o.maxBlock == 0 {
		return 0
	}

	n := len(src)
	if n > o.maxBlock {
		n = o.maxBlock
	}

	if max := len(dst) / o.factor; n > max {
		n = max
	}

	if n == 0 {
		return 0
	}

	work := o.upWork[:o.upHist+n]
	copy(work[o.upHist:], src[:n])

	for i := range n {
		q := o.upHist + i
		window := work[q-o.branchLen+1 : q+1]

		for p := range o.factor {
			dst[i*o.factor+p] = vecmath.DotProduct(o.upPhases[p], window)
		}
	}

	// Keep the newest branchLen-1 inputs as history for the next block.
	copy(o.upWork[:o.upHist], work[len(work)-o.upHist:])

	return n * o.factor
}

// Downsample converts src (oversampled rate) into dst (base rate).
// len(src) must be Factor()*len(dst); excess input is ignored. Calling
// before Prepare is a no-op. Never allocates.
func (o *Oversampler) Downsample(dst, src []float64) int {
	if o.maxBlock == 0 {
		return 0
	}

	n := len(src) / o.factor
	if n > o.maxBlock {
		n = o.maxBlock
	}

	if n > len(dst) {
		n = len(dst)
	}

	if n == 0 {
		return 0
	}

	m := n * o.factor
	work := o.downWork[:o.downHist+m]
	copy(work[o.downHist:], src[:m])

	for i := range n {
		q := o.downHist + i*o.factor
		dst[i] = vecmath.DotProduct(o.down, work[q-len(o.down)+1:q+1])
	}

	copy(o.downWork[:o.downHist], work[len(work)-o.downHist:])

	return n
}

func validFactor(factor int) bool {
	return factor == 2 || factor == 4 || factor == 8
}
