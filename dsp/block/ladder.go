package block

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-va/dsp/core"
	"github.com/cwbudde/algo-va/dsp/param"
	"github.com/cwbudde/algo-va/dsp/solver"
)

const (
	defaultLadderCutoff    = 1000.0
	defaultLadderResonance = 0.8
	defaultLadderDrive     = 1.0
	defaultLadderOutput    = 1.0
	ladderThermalVoltage   = 5.0

	minLadderCutoff    = 1.0
	maxLadderCutoff    = 24000.0
	maxLadderResonance = 4.0
	minLadderDrive     = 0.1
	maxLadderDrive     = 24.0
	maxLadderOutput    = 24.0

	ladderStateLimit = 32.0
)

// LadderOption mutates Ladder construction.
type LadderOption func(*ladderConfig) error

type ladderConfig struct {
	cutoffHz   float64
	resonance  float64
	drive      float64
	outputGain float64
	smoothing  time.Duration
	solverOpts []solver.Option
}

// WithLadderCutoff sets the initial cutoff in Hz.
func WithLadderCutoff(cutoffHz float64) LadderOption {
	return func(cfg *ladderConfig) error {
		if !core.IsFinite(cutoffHz) || cutoffHz < minLadderCutoff || cutoffHz > maxLadderCutoff {
			return fmt.Errorf("block: ladder cutoff must be in [%g, %g]: %v", minLadderCutoff, maxLadderCutoff, cutoffHz)
		}

		cfg.cutoffHz = cutoffHz

		return nil
	}
}

// WithLadderResonance sets the initial feedback resonance in [0, 4].
func WithLadderResonance(resonance float64) LadderOption {
	return func(cfg *ladderConfig) error {
		if !core.IsFinite(resonance) || resonance < 0 || resonance > maxLadderResonance {
			return fmt.Errorf("block: ladder resonance must be in [0, %g]: %v", maxLadderResonance, resonance)
		}

		cfg.resonance = resonance

		return nil
	}
}

// WithLadderDrive sets nonlinear drive in [0.1, 24].
func WithLadderDrive(drive float64) LadderOption {
	return func(cfg *ladderConfig) error {
		if !core.IsFinite(drive) || drive < minLadderDrive || drive > maxLadderDrive {
			return fmt.Errorf("block: ladder drive must be in [%g, %g]: %v", minLadderDrive, maxLadderDrive, drive)
		}

		cfg.drive = drive

		return nil
	}
}

// WithLadderOutputGain sets post-ladder gain in [0, 24].
func WithLadderOutputGain(gain float64) LadderOption {
	return func(cfg *ladderConfig) error {
		if !core.IsFinite(gain) || gain < 0 || gain > maxLadderOutput {
			return fmt.Errorf("block: ladder output gain must be in [0, %g]: %v", maxLadderOutput, gain)
		}

		cfg.outputGain = gain

		return nil
	}
}

// WithLadderSmoothing sets the cutoff/resonance ramp duration.
func WithLadderSmoothing(d time.Duration) LadderOption {
	return func(cfg *ladderConfig) error {
		if d < 0 {
			return fmt.Errorf("block: ladder smoothing must be >= 0: %v", d)
		}

		cfg.smoothing = d

		return nil
	}
}

// WithLadderSolver forwards tuning options to the Newton solver.
func WithLadderSolver(opts ...solver.Option) LadderOption {
	return func(cfg *ladderConfig) error {
		cfg.solverOpts = append(cfg.solverOpts, opts...)
		return nil
	}
}

// LadderState contains explicit runtime state for save/restore workflows.
type LadderState struct {
	Stage      [4]float64
	PrevOutput float64
}

// Ladder is a four-stage transistor ladder lowpass with tanh stage
// nonlinearities. The whole sample update, including the resonance
// feedback through the fourth stage, is one implicit equation resolved
// by a four-dimensional Newton solve. A failed solve holds the previous
// stage state and bumps ConvergenceFailures.
//
// Cutoff and resonance are smoothed parameters consumed at block rate.
type Ladder struct {
	cutoff    *param.Param
	resonance *param.Param

	drive      float64
	outputGain float64

	newton *solver.Solver
	prob   ladderProblem
	x      [4]float64

	state       LadderState
	outputScale float64

	sampleRate float64
	tunedFc    float64
	tunedRes   float64

	failures uint64
}

// NewLadder constructs a ladder filter block.
func NewLadder(opts ...LadderOption) (*Ladder, error) {
	cfg := ladderConfig{
		cutoffHz:   defaultLadderCutoff,
		resonance:  defaultLadderResonance,
		drive:      defaultLadderDrive,
		outputGain: defaultLadderOutput,
		smoothing:  20 * time.Millisecond,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	cutoff, err := param.New(cfg.cutoffHz,
		param.WithSmoothingTime(cfg.smoothing),
		param.WithRange(minLadderCutoff, maxLadderCutoff))
	if err != nil {
		return nil, err
	}

	resonance, err := param.New(cfg.resonance,
		param.WithSmoothingTime(cfg.smoothing),
		param.WithRange(0, maxLadderResonance))
	if err != nil {
		return nil, err
	}

	newton, err := solver.New(cfg.solverOpts...)
	if err != nil {
		return nil, err
	}

	l := &Ladder{
		cutoff:     cutoff,
		resonance:  resonance,
		drive:      cfg.drive,
		outputGain: cfg.outputGain,
		newton:     newton,
	}

	l.prob.shape = 0.5 * l.drive / ladderThermalVoltage

	return l, nil
}

// Cutoff exposes the cutoff parameter for the control thread.
func (l *Ladder) Cutoff() *param.Param { return l.cutoff }

// Resonance exposes the resonance parameter for the control thread.
func (l *Ladder) Resonance() *param.Param { return l.resonance }

// SetCutoffHz posts a new cutoff target.
func (l *Ladder) SetCutoffHz(freq float64) { l.cutoff.Set(freq) }

// SetResonance posts a new resonance target.
func (l *Ladder) SetResonance(resonance float64) { l.resonance.Set(resonance) }

// SetDrive updates nonlinear drive. Audio thread only.
func (l *Ladder) SetDrive(drive float64) error {
	if !core.IsFinite(drive) || drive < minLadderDrive || drive > maxLadderDrive {
		return fmt.Errorf("block: ladder drive must be in [%g, %g]: %v", minLadderDrive, maxLadderDrive, drive)
	}

	l.drive = drive
	l.prob.shape = 0.5 * drive / ladderThermalVoltage

	return nil
}

// ConvergenceFailures returns how many samples fell back to held state.
func (l *Ladder) ConvergenceFailures() uint64 { return l.failures }

// State returns a copy of the current runtime state.
func (l *Ladder) State() LadderState { return l.state }

// SetState restores an externally saved runtime state.
func (l *Ladder) SetState(state LadderState) error {
	for _, v := range state.Stage {
		if !core.IsFinite(v) {
			return fmt.Errorf("block: ladder state contains NaN or Inf")
		}
	}

	if !core.IsFinite(state.PrevOutput) {
		return fmt.Errorf("block: ladder state contains NaN or Inf")
	}

	l.state = state

	return nil
}

// Prepare binds the block to a sample rate and derives the tuning.
func (l *Ladder) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validatePrepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	if err := l.cutoff.Prepare(sampleRate); err != nil {
		return err
	}

	if err := l.resonance.Prepare(sampleRate); err != nil {
		return err
	}

	l.sampleRate = sampleRate
	l.retune(l.cutoff.Value(), l.resonance.Value())

	return nil
}

// Process filters buf in place.
func (l *Ladder) Process(buf []float64) {
	if len(buf) == 0 || l.sampleRate <= 0 {
		return
	}

	fc := l.cutoff.Step(len(buf))
	res := l.resonance.Step(len(buf))

	if fc != l.tunedFc || res != l.tunedRes {
		l.retune(fc, res)
	}

	for i := range buf {
		l.prob.input = core.Sanitize(buf[i], 0)
		l.x = l.state.Stage
		l.prob.state = l.state.Stage

		if _, err := l.newton.Solve(&l.prob, l.x[:]); err != nil {
			l.failures++
			buf[i] = l.state.PrevOutput

			continue
		}

		for j := range l.x {
			l.state.Stage[j] = core.Clamp(l.x[j], -ladderStateLimit, ladderStateLimit)
		}

		l.state.PrevOutput = l.outputScale * l.state.Stage[3]
		buf[i] = l.state.PrevOutput
	}
}

// Reset clears the ladder state and snaps both parameter ramps.
func (l *Ladder) Reset() {
	l.state = LadderState{}
	l.cutoff.Reset()
	l.resonance.Reset()

	if l.sampleRate > 0 {
		l.retune(l.cutoff.Value(), l.resonance.Value())
	}
}

// retune applies Huovilainen-style cutoff and resonance compensation.
func (l *Ladder) retune(cutoffHz, resonance float64) {
	fc := cutoffHz / l.sampleRate
	if fc > 0.49 {
		fc = 0.49
	}

	fcr := 1.8730*fc*fc*fc + 0.4955*fc*fc - 0.6490*fc + 0.9988
	if fcr < 0 {
		fcr = 0
	}

	l.prob.g = 1 - math.Exp(-2*math.Pi*fcr*fc)

	comp := -3.9364*fc*fc + 1.8409*fc + 0.9968
	if comp < 0 {
		comp = 0
	}

	l.prob.k = resonance * comp
	l.outputScale = l.outputGain / (1 + 0.5*resonance)

	l.tunedFc = cutoffHz
	l.tunedRes = resonance
}

// ladderProblem is the implicit per-sample update of the four stages:
//
//	y1 = s1 + g*(tanh(sh*(u - k*y4)) - tanh(sh*y1))
//	yi = si + g*(tanh(sh*y[i-1]) - tanh(sh*yi))   i = 2..4
//
// posed as a root-finding problem in y.
type ladderProblem struct {
	g     float64
	k     float64
	shape float64
	input float64
	state [4]float64
}

func (p *ladderProblem) Dim() int { return 4 }

func (p *ladderProblem) Eval(x, residual, jacobian []float64) bool {
	sh := p.shape
	g := p.g

	in1 := p.input - p.k*x[3]

	tIn := math.Tanh(sh * in1)
	t0 := math.Tanh(sh * x[0])
	t1 := math.Tanh(sh * x[1])
	t2 := math.Tanh(sh * x[2])
	t3 := math.Tanh(sh * x[3])

	residual[0] = x[0] - p.state[0] - g*(tIn-t0)
	residual[1] = x[1] - p.state[1] - g*(t0-t1)
	residual[2] = x[2] - p.state[2] - g*(t1-t2)
	residual[3] = x[3] - p.state[3] - g*(t2-t3)

	// sech^2 via 1 - tanh^2.
	dIn := sh * (1 - tIn*tIn)
	d0 := sh * (1 - t0*t0)
	d1 := sh * (1 - t1*t1)
	d2 := sh * (1 - t2*t2)
	d3 := sh * (1 - t3*t3)

	for i := range jacobian {
		jacobian[i] = 0
	}

	jacobian[0*4+0] = 1 + g*d0
	jacobian[0*4+3] = g * dIn * p.k

	jacobian[1*4+0] = -g * d0
	jacobian[1*4+1] = 1 + g*d1

	jacobian[2*4+1] = -g * d1
	jacobian[2*4+2] = 1 + g*d2

	jacobian[3*4+2] = -g * d2
	jacobian[3*4+3] = 1 + g*d3

	return true
}
