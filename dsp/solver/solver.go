package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-va/dsp/core"
)

// MaxDim is the largest supported problem dimensionality.
const MaxDim = 8

const (
	defaultTolerance      = 1e-9
	defaultMaxIterations  = 50
	defaultDampingRetries = 8

	maxIterationLimit = 1000
	maxRetryLimit     = 32
)

var (
	// ErrConvergence indicates the iteration cap was reached without a root.
	ErrConvergence = errors.New("solver: no convergence within iteration cap")
	// ErrNonFinite indicates a non-finite residual or Jacobian evaluation.
	ErrNonFinite = errors.New("solver: non-finite residual or jacobian")
	// ErrDimension indicates a problem dimension outside [1, MaxDim].
	ErrDimension = errors.New("solver: problem dimension out of range")
	// ErrSingular indicates a singular Jacobian at the current iterate.
	ErrSingular = errors.New("solver: singular jacobian")
)

// Problem describes an implicit state equation F(x) = 0.
//
// Eval writes F(x) into residual (length Dim) and dF/dx into jacobian
// (row-major, length Dim*Dim) and reports whether x lies inside the
// model's domain. Returning false aborts the solve immediately so the
// caller can hold its previous state.
type Problem interface {
	Dim() int
	Eval(x, residual, jacobian []float64) bool
}

// Option mutates constructor configuration.
type Option func(*config) error

type config struct {
	tolerance      float64
	maxIterations  int
	dampingRetries int
}

func defaultConfig() config {
	return config{
		tolerance:      defaultTolerance,
		maxIterations:  defaultMaxIterations,
		dampingRetries: defaultDampingRetries,
	}
}

// WithTolerance sets the convergence tolerance on ‖F(x)‖ and ‖Δx‖.
func WithTolerance(tol float64) Option {
	return func(cfg *config) error {
		if !core.IsFinite(tol) || tol <= 0 {
			return fmt.Errorf("solver: tolerance must be > 0 and finite: %v", tol)
		}

		cfg.tolerance = tol

		return nil
	}
}

// WithMaxIterations sets the Newton iteration cap in [1, 1000].
func WithMaxIterations(n int) Option {
	return func(cfg *config) error {
		if n < 1 || n > maxIterationLimit {
			return fmt.Errorf("solver: max iterations must be in [1, %d]: %d", maxIterationLimit, n)
		}

		cfg.maxIterations = n

		return nil
	}
}

// WithDampingRetries sets how often a rejected step is halved in [0, 32].
func WithDampingRetries(n int) Option {
	return func(cfg *config) error {
		if n < 0 || n > maxRetryLimit {
			return fmt.Errorf("solver: damping retries must be in [0, %d]: %d", maxRetryLimit, n)
		}

		cfg.dampingRetries = n

		return nil
	}
}

// Solver is a damped Newton-Raphson root finder for small dense systems.
// The zero value is not usable; construct with New.
//
// A Solver owns its iteration scratch, so Solve never allocates. Give
// each processing block its own instance; a single Solver must not be
// shared across concurrently running blocks.
type Solver struct {
	tolerance      float64
	maxIterations  int
	dampingRetries int

	cur      [MaxDim]float64
	res      [MaxDim]float64
	delta    [MaxDim]float64
	trial    [MaxDim]float64
	trialRes [MaxDim]float64
	jac      [MaxDim * MaxDim]float64
	trialJac [MaxDim * MaxDim]float64
}

// New constructs a solver.
//
// Defaults: tolerance 1e-9, 50 iterations, 8 damping retries. The
// iteration cap bounds worst-case work per sample; 50 is generous for
// audio-rate circuit equations, which settle in 2-6 iterations when the
// previous sample's state seeds the guess.
func New(opts ...Option) (*Solver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Solver{
		tolerance:      cfg.tolerance,
		maxIterations:  cfg.maxIterations,
		dampingRetries: cfg.dampingRetries,
	}, nil
}

// Tolerance returns the convergence tolerance.
func (s *Solver) Tolerance() float64 { return s.tolerance }

// MaxIterations returns the Newton iteration cap.
func (s *Solver) MaxIterations() int { return s.maxIterations }

// DampingRetries returns the step-halving retry limit.
func (s *Solver) DampingRetries() int { return s.dampingRetries }

// Solve drives x to a root of p in place and returns the number of
// Newton iterations spent. x must have length p.Dim().
//
// On any error x is left untouched, so the caller's previous state
// remains valid as a fallback value.
func (s *Solver) Solve(p Problem, x []float64) (int, error) {
	n := p.Dim()
	if n < 1 || n > MaxDim {
		return 0, fmt.Errorf("%w: %d", ErrDimension, n)
	}

	if len(x) != n {
		return 0, fmt.Errorf("%w: state length %d for dimension %d", ErrDimension, len(x), n)
	}

	// Slices handed to Eval alias the solver's own scratch; local arrays
	// would escape through the interface and allocate per call.
	cur := s.cur[:n]
	res := s.res[:n]
	jac := s.jac[:n*n]
	delta := s.delta[:n]
	trial := s.trial[:n]
	trialRes := s.trialRes[:n]
	trialJac := s.trialJac[:n*n]

	copy(cur, x)

	if !evalFinite(p, cur, res, jac) {
		return 0, ErrNonFinite
	}

	resNorm := norm2(res)

	for iter := 0; iter < s.maxIterations; iter++ {
		if resNorm < s.tolerance {
			finish(x, cur)
			return iter, nil
		}

		if err := solveLinear(n, jac, res, delta); err != nil {
			return iter, err
		}

		step := 1.0
		accepted := false

		for retry := 0; retry <= s.dampingRetries; retry++ {
			for i := range n {
				trial[i] = cur[i] - step*delta[i]
			}

			if evalFinite(p, trial, trialRes, trialJac) {
				trialNorm := norm2(trialRes)
				if trialNorm <= resNorm || trialNorm < s.tolerance {
					copy(cur, trial)
					copy(res, trialRes)
					copy(jac, trialJac)
					resNorm = trialNorm
					accepted = true

					break
				}
			}

			step *= 0.5
		}

		if !accepted {
			return iter + 1, ErrConvergence
		}

		if step*maxAbs(delta) < s.tolerance {
			finish(x, cur)
			return iter + 1, nil
		}
	}

	if resNorm < s.tolerance {
		finish(x, cur)
		return s.maxIterations, nil
	}

	return s.maxIterations, ErrConvergence
}

func finish(dst, src []float64) {
	for i, v := range src {
		dst[i] = core.FlushDenormals(v)
	}
}

func evalFinite(p Problem, x, res, jac []float64) bool {
	if !p.Eval(x, res, jac) {
		return false
	}

	for _, v := range res {
		if !core.IsFinite(v) {
			return false
		}
	}

	for _, v := range jac {
		if !core.IsFinite(v) {
			return false
		}
	}

	return true
}

// norm2 and maxAbs stay hand-rolled: the vectors here are at most MaxDim
// wide, so a call into the SIMD block kernels would cost more than the
// loop.
func norm2(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}

	return math.Sqrt(sum)
}

func maxAbs(v []float64) float64 {
	var m float64

	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}

	return m
}

// solveLinear solves a*delta = b with partial-pivot Gaussian elimination.
// a and b are clobbered. Circuit dimensionality is at most MaxDim, so a
// dense in-place solve beats any factorization machinery.
func solveLinear(n int, a, b, delta []float64) error {
	if n == 1 {
		if a[0] == 0 {
			return ErrSingular
		}

		delta[0] = b[0] / a[0]

		return nil
	}

	for col := range n {
		pivot := col
		pivotAbs := math.Abs(a[col*n+col])

		for row := col + 1; row < n; row++ {
			if abs := math.Abs(a[row*n+col]); abs > pivotAbs {
				pivot = row
				pivotAbs = abs
			}
		}

		if pivotAbs == 0 {
			return ErrSingular
		}

		if pivot != col {
			for k := col; k < n; k++ {
				a[pivot*n+k], a[col*n+k] = a[col*n+k], a[pivot*n+k]
			}

			b[pivot], b[col] = b[col], b[pivot]
		}

		inv := 1 / a[col*n+col]

		for row := col + 1; row < n; row++ {
			factor := a[row*n+col] * inv
			if factor == 0 {
				continue
			}

			for k := col; k < n; k++ {
				a[row*n+k] -= factor * a[col*n+k]
			}

			b[row] -= factor * b[col]
		}
	}

	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row*n+k] * delta[k]
		}

		delta[row] = sum / a[row*n+row]
	}

	return nil
}
