package wdf

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-va/dsp/core"
)

var (
	// ErrNodeReuse indicates a node attached to more than one parent.
	ErrNodeReuse = errors.New("wdf: node already attached to a parent")
	// ErrNilNode indicates a nil child passed to an adaptor or tree.
	ErrNilNode = errors.New("wdf: nil node")
	// ErrElementValue indicates a non-positive or non-finite element value.
	ErrElementValue = errors.New("wdf: element value must be > 0 and finite")
)

// Kind identifies the closed set of tree node types.
type Kind int

const (
	// KindResistor is a linear resistor leaf.
	KindResistor Kind = iota
	// KindCapacitor is a capacitor leaf (bilinear discretization).
	KindCapacitor
	// KindInductor is an inductor leaf (bilinear discretization).
	KindInductor
	// KindVoltageSource is an ideal source behind a series resistance.
	KindVoltageSource
	// KindSeries is a three-port series adaptor with an adapted top port.
	KindSeries
	// KindParallel is a three-port parallel adaptor with an adapted top port.
	KindParallel
)

func (k Kind) String() string {
	switch k {
	case KindResistor:
		return "resistor"
	case KindCapacitor:
		return "capacitor"
	case KindInductor:
		return "inductor"
	case KindVoltageSource:
		return "voltage_source"
	case KindSeries:
		return "series"
	case KindParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Node is one element or adaptor of a WDF tree. Construct leaves and
// adaptors with the New* functions; a node may be attached to exactly
// one parent.
type Node struct {
	kind  Kind
	value float64 // R, C, L, or source resistance

	voltage float64 // source EMF, updated per sample for sources

	portR float64 // port resistance toward the parent
	coefL float64 // adaptor scattering coefficient, left child
	coefR float64 // adaptor scattering coefficient, right child

	state float64 // stored wave for reactive leaves
	refl  float64 // wave reflected toward the parent this sample
	incid float64 // wave incident from the parent this sample

	left     *Node
	right    *Node
	attached bool
}

// NewResistor returns a resistor leaf of r ohms.
func NewResistor(r float64) (*Node, error) {
	if err := validValue(r); err != nil {
		return nil, fmt.Errorf("%w (resistor): %v", ErrElementValue, r)
	}

	return &Node{kind: KindResistor, value: r}, nil
}

// NewCapacitor returns a capacitor leaf of c farads.
func NewCapacitor(c float64) (*Node, error) {
	if err := validValue(c); err != nil {
		return nil, fmt.Errorf("%w (capacitor): %v", ErrElementValue, c)
	}

	return &Node{kind: KindCapacitor, value: c}, nil
}

// NewInductor returns an inductor leaf of l henries.
func NewInductor(l float64) (*Node, error) {
	if err := validValue(l); err != nil {
		return nil, fmt.Errorf("%w (inductor): %v", ErrElementValue, l)
	}

	return &Node{kind: KindInductor, value: l}, nil
}

// NewVoltageSource returns an ideal voltage source behind rs ohms.
// Drive it with SetVoltage before each processed sample.
func NewVoltageSource(rs float64) (*Node, error) {
	if err := validValue(rs); err != nil {
		return nil, fmt.Errorf("%w (source resistance): %v", ErrElementValue, rs)
	}

	return &Node{kind: KindVoltageSource, value: rs}, nil
}

// NewSeries combines two subtrees in series. The top port is adapted:
// its resistance is the sum of the child port resistances.
func NewSeries(left, right *Node) (*Node, error) {
	if err := adopt(left, right); err != nil {
		return nil, err
	}

	return &Node{kind: KindSeries, left: left, right: right}, nil
}

// NewParallel combines two subtrees in parallel. The top port is
// adapted: its conductance is the sum of the child port conductances.
func NewParallel(left, right *Node) (*Node, error) {
	if err := adopt(left, right); err != nil {
		return nil, err
	}

	return &Node{kind: KindParallel, left: left, right: right}, nil
}

func adopt(left, right *Node) error {
	if left == nil || right == nil {
		return ErrNilNode
	}

	if left.attached || right.attached {
		return ErrNodeReuse
	}

	if left == right {
		return ErrNodeReuse
	}

	left.attached = true
	right.attached = true

	return nil
}

// Kind returns the node type.
func (n *Node) Kind() Kind { return n.kind }

// PortResistance returns the port resistance toward the parent,
// valid after the owning tree's Prepare.
func (n *Node) PortResistance() float64 { return n.portR }

// SetVoltage updates a voltage-source leaf's EMF. Non-finite values are
// ignored; calls on other node kinds have no effect.
func (n *Node) SetVoltage(v float64) {
	if n.kind != KindVoltageSource || !core.IsFinite(v) {
		return
	}

	n.voltage = v
}

// Voltage returns the element's port voltage for the last processed sample.
func (n *Node) Voltage() float64 {
	return 0.5 * (n.incid + n.refl)
}

// Current returns the current into the element for the last processed sample.
func (n *Node) Current() float64 {
	if n.portR <= 0 {
		return 0
	}

	return (n.incid - n.refl) / (2 * n.portR)
}

// updateCoefficients derives port resistances and adaptor scattering
// coefficients bottom-up. Called by Tree.Prepare.
func (n *Node) updateCoefficients(sampleRate float64) {
	switch n.kind {
	case KindResistor, KindVoltageSource:
		n.portR = n.value

	case KindCapacitor:
		n.portR = 1 / (2 * sampleRate * n.value)

	case KindInductor:
		n.portR = 2 * sampleRate * n.value

	case KindSeries:
		n.left.updateCoefficients(sampleRate)
		n.right.updateCoefficients(sampleRate)

		n.portR = n.left.portR + n.right.portR
		n.coefL = n.left.portR / n.portR
		n.coefR = n.right.portR / n.portR

	case KindParallel:
		n.left.updateCoefficients(sampleRate)
		n.right.updateCoefficients(sampleRate)

		gl := 1 / n.left.portR
		gr := 1 / n.right.portR

		n.portR = 1 / (gl + gr)
		n.coefL = gl / (gl + gr)
		n.coefR = gr / (gl + gr)
	}
}

// scanUp propagates reflected waves from the leaves toward the root and
// returns this node's wave toward its parent.
func (n *Node) scanUp() float64 {
	switch n.kind {
	case KindResistor:
		n.refl = 0

	case KindVoltageSource:
		n.refl = n.voltage

	case KindCapacitor:
		n.refl = n.state

	case KindInductor:
		n.refl = -n.state

	case KindSeries:
		n.refl = -(n.left.scanUp() + n.right.scanUp())

	case KindParallel:
		n.refl = n.coefL*n.left.scanUp() + n.coefR*n.right.scanUp()
	}

	return n.refl
}

// scanDown distributes the wave incident from the parent back toward
// the leaves, updating reactive state along the way.
func (n *Node) scanDown(incident float64) {
	n.incid = incident

	switch n.kind {
	case KindCapacitor:
		n.state = core.FlushDenormals(incident)

	case KindInductor:
		n.state = core.FlushDenormals(incident)

	case KindSeries:
		total := n.left.refl + n.right.refl + incident
		n.left.scanDown(n.left.refl - n.coefL*total)
		n.right.scanDown(n.right.refl - n.coefR*total)

	case KindParallel:
		base := n.refl + incident
		n.left.scanDown(base - n.left.refl)
		n.right.scanDown(base - n.right.refl)

	case KindResistor, KindVoltageSource:
		// Purely resistive leaves carry no state.
	}
}

// reset clears wave state below and including this node.
func (n *Node) reset() {
	n.state = 0
	n.refl = 0
	n.incid = 0

	if n.left != nil {
		n.left.reset()
	}

	if n.right != nil {
		n.right.reset()
	}
}

// absorbedPower sums instantaneous power absorbed by passive leaves
// (resistors, capacitors, inductors) in this subtree. Sources are
// active and excluded.
func (n *Node) absorbedPower() float64 {
	switch n.kind {
	case KindResistor, KindCapacitor, KindInductor:
		if n.portR <= 0 {
			return 0
		}

		a := n.incid
		b := n.refl

		return (a*a - b*b) / (4 * n.portR)

	case KindSeries, KindParallel:
		return n.left.absorbedPower() + n.right.absorbedPower()

	default:
		return 0
	}
}

func validValue(v float64) error {
	if !core.IsFinite(v) || v <= 0 {
		return ErrElementValue
	}

	return nil
}
