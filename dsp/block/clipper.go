package block

import (
	"fmt"
	"time"

	"github.com/cwbudde/algo-va/dsp/core"
	"github.com/cwbudde/algo-va/dsp/param"
	"github.com/cwbudde/algo-va/dsp/wdf"
)

const (
	defaultClipperResistance  = 2200.0
	defaultClipperCapacitance = 10e-9
)

// ClipperOption mutates Clipper construction.
type ClipperOption func(*clipperConfig) error

type clipperConfig struct {
	resistance  float64
	capacitance float64
	inputGain   float64
	diodeOpts   []wdf.DiodeOption
	treeOpts    []wdf.Option
	smoothing   time.Duration
}

// WithClipperResistance sets the series resistance in ohms.
func WithClipperResistance(r float64) ClipperOption {
	return func(cfg *clipperConfig) error {
		if !core.IsFinite(r) || r <= 0 {
			return fmt.Errorf("block: clipper resistance must be > 0 and finite: %v", r)
		}

		cfg.resistance = r

		return nil
	}
}

// WithClipperCapacitance sets the shunt capacitance in farads.
func WithClipperCapacitance(c float64) ClipperOption {
	return func(cfg *clipperConfig) error {
		if !core.IsFinite(c) || c <= 0 {
			return fmt.Errorf("block: clipper capacitance must be > 0 and finite: %v", c)
		}

		cfg.capacitance = c

		return nil
	}
}

// WithClipperInputGain sets the initial input gain (signal volts per
// unit sample) in [0, 100].
func WithClipperInputGain(gain float64) ClipperOption {
	return func(cfg *clipperConfig) error {
		if !core.IsFinite(gain) || gain < 0 || gain > 100 {
			return fmt.Errorf("block: clipper input gain must be in [0, 100]: %v", gain)
		}

		cfg.inputGain = gain

		return nil
	}
}

// WithClipperDiode forwards diode model options to the root element.
func WithClipperDiode(opts ...wdf.DiodeOption) ClipperOption {
	return func(cfg *clipperConfig) error {
		cfg.diodeOpts = append(cfg.diodeOpts, opts...)
		return nil
	}
}

// WithClipperTree forwards tree options (solver tuning).
func WithClipperTree(opts ...wdf.Option) ClipperOption {
	return func(cfg *clipperConfig) error {
		cfg.treeOpts = append(cfg.treeOpts, opts...)
		return nil
	}
}

// WithClipperSmoothing sets the input-gain ramp duration.
func WithClipperSmoothing(d time.Duration) ClipperOption {
	return func(cfg *clipperConfig) error {
		if d < 0 {
			return fmt.Errorf("block: clipper smoothing must be >= 0: %v", d)
		}

		cfg.smoothing = d

		return nil
	}
}

// Clipper is a diode-clipper circuit block: the input drives a series
// resistance into a capacitor shunted by an antiparallel diode pair.
// Each sample is resolved on a wave digital filter tree; a failed solve
// holds the previous output and bumps ConvergenceFailures.
type Clipper struct {
	tree *wdf.Tree
	src  *wdf.Node

	gain *param.Param
}

// NewClipper constructs a diode clipper.
func NewClipper(opts ...ClipperOption) (*Clipper, error) {
	cfg := clipperConfig{
		resistance:  defaultClipperResistance,
		capacitance: defaultClipperCapacitance,
		inputGain:   1,
		smoothing:   20 * time.Millisecond,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	src, err := wdf.NewVoltageSource(cfg.resistance)
	if err != nil {
		return nil, err
	}

	shunt, err := wdf.NewCapacitor(cfg.capacitance)
	if err != nil {
		return nil, err
	}

	top, err := wdf.NewParallel(shunt, src)
	if err != nil {
		return nil, err
	}

	root, err := wdf.NewDiodePair(cfg.diodeOpts...)
	if err != nil {
		return nil, err
	}

	tree, err := wdf.NewTree(root, top, cfg.treeOpts...)
	if err != nil {
		return nil, err
	}

	gain, err := param.New(cfg.inputGain,
		param.WithSmoothingTime(cfg.smoothing),
		param.WithRange(0, 100))
	if err != nil {
		return nil, err
	}

	return &Clipper{tree: tree, src: src, gain: gain}, nil
}

// InputGain exposes the input gain parameter for the control thread.
func (c *Clipper) InputGain() *param.Param { return c.gain }

// SetInputGain posts a new input gain target.
func (c *Clipper) SetInputGain(gain float64) { c.gain.Set(gain) }

// ConvergenceFailures returns how many samples fell back to the held
// root voltage.
func (c *Clipper) ConvergenceFailures() uint64 { return c.tree.ConvergenceFailures() }

// Prepare derives the circuit coefficients for the sample rate.
func (c *Clipper) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validatePrepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	if err := c.gain.Prepare(sampleRate); err != nil {
		return err
	}

	return c.tree.Prepare(sampleRate)
}

// Process clips buf in place.
func (c *Clipper) Process(buf []float64) {
	if c.tree.SampleRate() <= 0 {
		return
	}

	for i := range buf {
		c.src.SetVoltage(c.gain.Next() * core.Sanitize(buf[i], 0))
		buf[i] = c.tree.ProcessSample()
	}
}

// Reset clears the circuit state and snaps the gain ramp.
func (c *Clipper) Reset() {
	c.tree.Reset()
	c.gain.Reset()
}
