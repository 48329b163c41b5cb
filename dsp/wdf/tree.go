package wdf

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-va/dsp/core"
	"github.com/cwbudde/algo-va/dsp/solver"
)

// ErrSampleRate indicates a non-positive or non-finite sample rate.
var ErrSampleRate = errors.New("wdf: sample rate must be > 0 and finite")

// Option mutates tree construction.
type Option func(*treeConfig) error

type treeConfig struct {
	solverOpts []solver.Option
}

// WithSolverOptions forwards options to the root's Newton solver.
func WithSolverOptions(opts ...solver.Option) Option {
	return func(cfg *treeConfig) error {
		cfg.solverOpts = append(cfg.solverOpts, opts...)
		return nil
	}
}

// Tree is a complete wave digital filter: a root element facing an
// adapted subtree of leaves and adaptors. It is owned by a single audio
// thread; ProcessSample never allocates, blocks, or panics.
type Tree struct {
	root *Root
	top  *Node

	newton *solver.Solver
	prob   diodeProblem
	x      []float64

	sampleRate float64
	prepared   bool

	rootV    float64
	failures uint64
}

// NewTree assembles a tree from its root element and adapted subtree.
func NewTree(root *Root, top *Node, opts ...Option) (*Tree, error) {
	if root == nil || top == nil {
		return nil, ErrNilNode
	}

	if top.attached {
		return nil, fmt.Errorf("%w: tree top", ErrNodeReuse)
	}

	top.attached = true

	cfg := treeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	t := &Tree{
		root: root,
		top:  top,
		x:    make([]float64, 1),
	}

	if root.nonlinear() {
		newton, err := solver.New(cfg.solverOpts...)
		if err != nil {
			return nil, err
		}

		t.newton = newton
		t.prob = diodeProblem{
			pair: root.kind == RootDiodePair,
			is:   root.is,
			vt:   root.vt,
		}
	}

	return t, nil
}

// Prepare derives all port resistances and scattering coefficients for
// the given sample rate. Wave state is preserved so a mid-stream rate
// change does not click; call Reset for a cold start.
func (t *Tree) Prepare(sampleRate float64) error {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("%w: %f", ErrSampleRate, sampleRate)
	}

	t.top.updateCoefficients(sampleRate)
	t.prob.portR = t.top.portR
	t.sampleRate = sampleRate
	t.prepared = true

	return nil
}

// SampleRate returns the prepared sample rate, or 0.
func (t *Tree) SampleRate() float64 { return t.sampleRate }

// Reset clears all wave state and the held root voltage.
func (t *Tree) Reset() {
	t.top.reset()
	t.rootV = 0
}

// ConvergenceFailures returns how many samples fell back to the held
// root voltage because the Newton solve did not converge.
func (t *Tree) ConvergenceFailures() uint64 { return t.failures }

// ProcessSample advances the tree by one sample and returns the root
// port voltage. Voltage-source leaves must be driven via SetVoltage
// before the call. Returns 0 until the tree is prepared.
func (t *Tree) ProcessSample() float64 {
	if !t.prepared {
		return 0
	}

	incident := t.top.scanUp()
	if !core.IsFinite(incident) {
		// A poisoned wave never reaches the solver or the leaf states.
		return t.rootV
	}

	v := t.resolveRoot(incident)
	t.rootV = core.FlushDenormals(v)

	// Reflected root wave: b = 2v - a.
	t.top.scanDown(2*v - incident)

	return t.rootV
}

func (t *Tree) resolveRoot(incident float64) float64 {
	switch t.root.kind {
	case RootShort:
		return 0

	case RootOpen:
		// i = 0 means b = a, so v = a.
		return incident

	default:
		t.prob.incident = incident
		t.x[0] = t.rootV

		if _, err := t.newton.Solve(&t.prob, t.x); err != nil {
			t.failures++
			return t.rootV
		}

		return t.x[0]
	}
}

// AbsorbedPower returns the instantaneous power absorbed by the tree's
// passive leaves for the last processed sample. For passive topologies
// the sum over any block processed from rest is non-negative.
func (t *Tree) AbsorbedPower() float64 {
	return t.top.absorbedPower()
}
