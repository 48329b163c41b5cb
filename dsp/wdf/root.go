package wdf

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-va/dsp/core"
)

const (
	// Shockley parameters for a small-signal silicon diode (1N4148 class).
	defaultSaturationCurrent = 2.52e-9
	defaultThermalVoltage    = 25.85e-3

	minSaturationCurrent = 1e-18
	maxSaturationCurrent = 1e-3
	minThermalVoltage    = 1e-3
	maxThermalVoltage    = 1.0

	// sinh/exp argument guard; beyond this the model is out of domain
	// and the solve falls back to the held state.
	maxDiodeArg = 650.0
)

// RootKind identifies the closed set of root elements.
type RootKind int

const (
	// RootDiodePair is an antiparallel diode pair (symmetric clipper).
	RootDiodePair RootKind = iota
	// RootDiodeSingle is a single diode (asymmetric clipper).
	RootDiodeSingle
	// RootShort is an ideal short circuit (v = 0).
	RootShort
	// RootOpen is an ideal open circuit (i = 0).
	RootOpen
)

func (k RootKind) String() string {
	switch k {
	case RootDiodePair:
		return "diode_pair"
	case RootDiodeSingle:
		return "diode_single"
	case RootShort:
		return "short"
	case RootOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Root is the unadapted element terminating a tree.
type Root struct {
	kind RootKind
	is   float64
	vt   float64
}

// DiodeOption mutates diode root configuration.
type DiodeOption func(*Root) error

// WithSaturationCurrent sets the Shockley saturation current in amperes.
func WithSaturationCurrent(is float64) DiodeOption {
	return func(r *Root) error {
		if !core.IsFinite(is) || is < minSaturationCurrent || is > maxSaturationCurrent {
			return fmt.Errorf("wdf: saturation current must be in [%g, %g]: %g",
				minSaturationCurrent, maxSaturationCurrent, is)
		}

		r.is = is

		return nil
	}
}

// WithThermalVoltage sets the diode thermal voltage (n*kT/q) in volts.
func WithThermalVoltage(vt float64) DiodeOption {
	return func(r *Root) error {
		if !core.IsFinite(vt) || vt < minThermalVoltage || vt > maxThermalVoltage {
			return fmt.Errorf("wdf: thermal voltage must be in [%g, %g]: %g",
				minThermalVoltage, maxThermalVoltage, vt)
		}

		r.vt = vt

		return nil
	}
}

// NewDiodePair returns an antiparallel diode pair root.
func NewDiodePair(opts ...DiodeOption) (*Root, error) {
	return newDiode(RootDiodePair, opts)
}

// NewDiodeSingle returns a single-diode root.
func NewDiodeSingle(opts ...DiodeOption) (*Root, error) {
	return newDiode(RootDiodeSingle, opts)
}

func newDiode(kind RootKind, opts []DiodeOption) (*Root, error) {
	r := &Root{
		kind: kind,
		is:   defaultSaturationCurrent,
		vt:   defaultThermalVoltage,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// NewShort returns an ideal short-circuit root.
func NewShort() *Root { return &Root{kind: RootShort} }

// NewOpen returns an ideal open-circuit root.
func NewOpen() *Root { return &Root{kind: RootOpen} }

// Kind returns the root element type.
func (r *Root) Kind() RootKind { return r.kind }

// nonlinear reports whether the root needs the Newton solver.
func (r *Root) nonlinear() bool {
	return r.kind == RootDiodePair || r.kind == RootDiodeSingle
}

// diodeProblem is the root port equation of a diode element fed by the
// adapted tree port: find the port voltage v with
//
//	v + R*i(v) - a = 0
//
// where a is the incident wave, R the port resistance, and i(v) the
// Shockley current. The reflected wave is then b = 2v - a.
type diodeProblem struct {
	pair     bool
	is       float64
	vt       float64
	portR    float64
	incident float64
}

func (p *diodeProblem) Dim() int { return 1 }

func (p *diodeProblem) Eval(x, residual, jacobian []float64) bool {
	v := x[0]

	arg := v / p.vt
	if math.Abs(arg) > maxDiodeArg {
		return false
	}

	var current, slope float64

	if p.pair {
		current = 2 * p.is * math.Sinh(arg)
		slope = 2 * p.is / p.vt * math.Cosh(arg)
	} else {
		e := math.Exp(arg)
		current = p.is * (e - 1)
		slope = p.is / p.vt * e
	}

	residual[0] = v + p.portR*current - p.incident
	jacobian[0] = 1 + p.portR*slope

	return true
}
