package oversample

import (
	"errors"
	"math"
)

// designLowpass returns a Kaiser-windowed sinc FIR with nTaps taps, a
// cutoff of fc (normalized to the oversampled rate), and DC gain `gain`.
func designLowpass(nTaps int, fc, beta, gain float64) ([]float64, error) {
	if nTaps < 2 {
		return nil, errors.New("oversample: filter needs at least 2 taps")
	}

	if fc <= 0 || fc >= 0.5 {
		return nil, errors.New("oversample: cutoff must be in (0, 0.5)")
	}

	taps := make([]float64, nTaps)
	center := 0.5 * float64(nTaps-1)

	for n := range nTaps {
		t := float64(n) - center
		taps[n] = 2 * fc * sinc(2*fc*t) * kaiserWindow(n, nTaps, beta)
	}

	var sum float64
	for _, v := range taps {
		sum += v
	}

	if sum == 0 {
		return nil, errors.New("oversample: designed zero-sum filter")
	}

	scale := gain / sum
	for i := range taps {
		taps[i] *= scale
	}

	return taps, nil
}

// splitPolyphase partitions the prototype into `branches` sub-filters
// and reverses each so a branch output is a dot product against a
// contiguous, oldest-first input window.
func splitPolyphase(taps []float64, branches int) [][]float64 {
	phases := make([][]float64, branches)

	for p := range branches {
		n := (len(taps) - p + branches - 1) / branches
		phase := make([]float64, n)

		i := n - 1
		for k := p; k < len(taps); k += branches {
			phase[i] = taps[k]
			i--
		}

		phases[p] = phase
	}

	return phases
}

// reverse returns taps in reversed order for contiguous dot products.
func reverse(taps []float64) []float64 {
	out := make([]float64, len(taps))
	for i, v := range taps {
		out[len(taps)-1-i] = v
	}

	return out
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}

func kaiserWindow(i, n int, beta float64) float64 {
	if n <= 1 || beta == 0 {
		return 1
	}

	t := 2*float64(i)/float64(n-1) - 1
	a := math.Sqrt(math.Max(0, 1-t*t))

	return i0(beta*a) / i0(beta)
}

// i0 is the zeroth-order modified Bessel function (power series).
func i0(x float64) float64 {
	sum := 1.0
	term := 1.0

	x2 := (x * x) / 4
	for k := 1; k < 64; k++ {
		term *= x2 / float64(k*k)

		sum += term
		if term < 1e-16*sum {
			break
		}
	}

	return sum
}
