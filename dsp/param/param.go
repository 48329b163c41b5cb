package param

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-va/dsp/core"
)

const (
	defaultSmoothingTime = 20 * time.Millisecond
	defaultSampleRate    = 48000.0

	maxSmoothingTime = 10 * time.Second
)

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	smoothingTime time.Duration
	min           float64
	max           float64
	bounded       bool
}

func defaultConfig() config {
	return config{
		smoothingTime: defaultSmoothingTime,
	}
}

// WithSmoothingTime sets the ramp duration for target changes.
// Zero disables smoothing (targets take effect on the next sample).
func WithSmoothingTime(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 || d > maxSmoothingTime {
			return fmt.Errorf("param: smoothing time must be in [0, %v]: %v", maxSmoothingTime, d)
		}

		cfg.smoothingTime = d

		return nil
	}
}

// WithRange clamps posted targets to [min, max].
func WithRange(min, max float64) Option {
	return func(cfg *config) error {
		if !core.IsFinite(min) || !core.IsFinite(max) || min >= max {
			return fmt.Errorf("param: invalid range [%g, %g]", min, max)
		}

		cfg.min = min
		cfg.max = max
		cfg.bounded = true

		return nil
	}
}

// Param is a smoothed scalar control value.
//
// Set may be called from any single control thread; Next, Value, Reset,
// and Prepare belong to the audio thread. The smoothing state (current
// value, ramp position) is owned exclusively by the audio thread.
type Param struct {
	target atomic.Uint64

	smoothingTime time.Duration
	min           float64
	max           float64
	bounded       bool

	sampleRate float64
	rampLen    int

	current   float64
	seen      float64
	step      float64
	remaining int
}

// New constructs a parameter resting at initial.
func New(initial float64, opts ...Option) (*Param, error) {
	if !core.IsFinite(initial) {
		return nil, fmt.Errorf("param: initial value must be finite: %v", initial)
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

	if cfg.bounded {
		initial = core.Clamp(initial, cfg.min, cfg.max)
	}

	p := &Param{
		smoothingTime: cfg.smoothingTime,
		min:           cfg.min,
		max:           cfg.max,
		bounded:       cfg.bounded,
		sampleRate:    defaultSampleRate,
		current:       initial,
		seen:          initial,
	}

	p.target.Store(math.Float64bits(initial))
	p.rampLen = rampSamples(p.smoothingTime, p.sampleRate)

	return p, nil
}

// Prepare sets the sample rate used to derive the ramp length.
// The current value and any pending target are preserved.
func (p *Param) Prepare(sampleRate float64) error {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("param: sample rate must be > 0 and finite: %f", sampleRate)
	}

	p.sampleRate = sampleRate
	p.rampLen = rampSamples(p.smoothingTime, sampleRate)

	return nil
}

// Set posts a new target value from the control thread. Non-finite
// values are ignored; out-of-range values are clamped.
func (p *Param) Set(value float64) {
	if !core.IsFinite(value) {
		return
	}

	if p.bounded {
		value = core.Clamp(value, p.min, p.max)
	}

	p.target.Store(math.Float64bits(value))
}

// Target returns the most recently posted target value.
func (p *Param) Target() float64 {
	return math.Float64frombits(p.target.Load())
}

// Value returns the current smoothed value without advancing the ramp.
func (p *Param) Value() float64 {
	return p.current
}

// Smoothing reports whether a ramp toward a new target is in progress.
func (p *Param) Smoothing() bool {
	return p.remaining > 0 || p.Target() != p.seen
}

// Next advances the smoothed value by one sample tick and returns it.
func (p *Param) Next() float64 {
	target := p.Target()
	if target != p.seen {
		p.beginRamp(target)
	}

	if p.remaining > 0 {
		p.remaining--
		if p.remaining == 0 {
			p.current = p.seen
		} else {
			p.current += p.step
		}
	}

	return p.current
}

// Step advances the smoothed value by n sample ticks and returns it.
// Control-rate consumers call this once per block instead of ticking
// Next per sample.
func (p *Param) Step(n int) float64 {
	if n <= 0 {
		return p.current
	}

	target := p.Target()
	if target != p.seen {
		p.beginRamp(target)
	}

	if p.remaining > 0 {
		if n >= p.remaining {
			p.remaining = 0
			p.current = p.seen
		} else {
			p.remaining -= n
			p.current += p.step * float64(n)
		}
	}

	return p.current
}

// Reset snaps the smoothed value to the pending target, cancelling any ramp.
func (p *Param) Reset() {
	p.seen = p.Target()
	p.current = p.seen
	p.remaining = 0
	p.step = 0
}

// SmoothingTime returns the configured ramp duration.
func (p *Param) SmoothingTime() time.Duration {
	return p.smoothingTime
}

func (p *Param) beginRamp(target float64) {
	p.seen = target

	if p.rampLen <= 0 || target == p.current {
		p.current = target
		p.remaining = 0
		p.step = 0

		return
	}

	p.remaining = p.rampLen
	p.step = (target - p.current) / float64(p.rampLen)
}

func rampSamples(d time.Duration, sampleRate float64) int {
	if d <= 0 {
		return 0
	}

	return int(math.Round(d.Seconds() * sampleRate))
}
