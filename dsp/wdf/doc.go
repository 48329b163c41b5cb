// Package wdf models analog circuits as wave digital filter trees.
//
// A circuit is decomposed into one-port leaves (resistor, capacitor,
// inductor, resistive voltage source) combined by series/parallel
// adaptors into a strict tree whose single unadapted port faces the
// root element, the one nonlinear or ideal device of the circuit
// (diode pair, single diode, short, open).
//
// Port resistances and adaptor coefficients are derived bottom-up when
// the tree is prepared for a sample rate; per sample only the waves
// move: a forward scan propagates reflected waves from the leaves to
// the root, the root resolves its port relation (via a Newton solve for
// diode roots), and a backward scan distributes the result to the
// leaves. Reactive leaves store one wave of state between samples,
// which is the bilinear discretization of their differential equation
// and keeps the simulation passive.
//
// Tree shape problems (a node attached to two parents, nil children)
// are construction-time errors. A diode root that fails to converge
// holds the previous sample's port voltage and increments a passive
// counter; the audio path never sees an error or a non-finite value.
package wdf
