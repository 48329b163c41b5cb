// Package solver provides a damped Newton-Raphson engine for the small
// implicit equations that arise in virtual-analog circuit models.
//
// A circuit's per-sample state equation F(x) = 0 is described by a
// Problem, which fills caller-visible residual and Jacobian scratch for
// a given state vector. Solve drives the state to a root within a
// configurable tolerance, applying step-halving damping when a full
// Newton step would increase the residual, and gives up with
// ErrConvergence after a bounded iteration count so the audio thread
// can fall back to the previous sample's state.
//
// Problem dimensionality is capped at MaxDim (8), which covers diode
// clippers (1), wave-digital roots (1-2), and four-stage ladder filters
// (4). Each Solver carries its own fixed-size iteration scratch, so
// Solve never allocates and never blocks; give each processing block
// its own instance rather than sharing one across threads.
package solver
