package block

import (
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-va/dsp/core"
	"github.com/cwbudde/algo-va/dsp/param"
)

// Gain scales the signal by a smoothed linear factor.
type Gain struct {
	gain *param.Param
}

// NewGain constructs a gain block resting at the given linear factor.
// Parameter options (smoothing time, range) are forwarded unchanged.
func NewGain(initial float64, opts ...param.Option) (*Gain, error) {
	p, err := param.New(initial, opts...)
	if err != nil {
		return nil, err
	}

	return &Gain{gain: p}, nil
}

// Param exposes the gain parameter for the control thread.
func (g *Gain) Param() *param.Param { return g.gain }

// Set posts a new linear gain target.
func (g *Gain) Set(value float64) { g.gain.Set(value) }

// Prepare derives the smoothing ramp length for the sample rate.
func (g *Gain) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validatePrepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	return g.gain.Prepare(sampleRate)
}

// Process scales buf in place. A settled parameter takes the block
// kernel; a ramping one ticks the parameter per sample.
func (g *Gain) Process(buf []float64) {
	if len(buf) == 0 {
		return
	}

	core.SanitizeBuffer(buf)

	if !g.gain.Smoothing() {
		vecmath.ScaleBlockInPlace(buf, g.gain.Value())
		return
	}

	for i := range buf {
		buf[i] *= g.gain.Next()
	}
}

// Reset snaps the gain to its pending target.
func (g *Gain) Reset() {
	g.gain.Reset()
}
