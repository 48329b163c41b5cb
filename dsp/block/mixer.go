package block

import (
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-va/dsp/core"
)

// Mixer sums a fixed number of sources into one buffer with per-source
// linear weights. It is used standalone and by the signal graph for
// fan-in nodes.
type Mixer struct {
	weights []float64
	scratch []float64

	maxBlock int
}

// NewMixer constructs a mixer for len(weights) sources. Each weight
// must be finite.
func NewMixer(weights ...float64) (*Mixer, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("block: mixer needs at least one source")
	}

	for i, w := range weights {
		if !core.IsFinite(w) {
			return nil, fmt.Errorf("block: mixer weight %d must be finite: %v", i, w)
		}
	}

	m := &Mixer{weights: make([]float64, len(weights))}
	copy(m.weights, weights)

	return m, nil
}

// NewUnityMixer constructs a mixer with n unit-weight sources.
func NewUnityMixer(n int) (*Mixer, error) {
	if n < 1 {
		return nil, fmt.Errorf("block: mixer needs at least one source")
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}

	return NewMixer(weights...)
}

// Sources returns the number of mixer inputs.
func (m *Mixer) Sources() int { return len(m.weights) }

// Weight returns the weight of source i, or 0 when out of range.
func (m *Mixer) Weight(i int) float64 {
	if i < 0 || i >= len(m.weights) {
		return 0
	}

	return m.weights[i]
}

// SetWeight updates the weight of source i.
func (m *Mixer) SetWeight(i int, w float64) error {
	if i < 0 || i >= len(m.weights) {
		return fmt.Errorf("block: mixer source %d out of range [0, %d)", i, len(m.weights))
	}

	if !core.IsFinite(w) {
		return fmt.Errorf("block: mixer weight %d must be finite: %v", i, w)
	}

	m.weights[i] = w

	return nil
}

// Prepare allocates the block scratch buffer.
func (m *Mixer) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validatePrepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	m.scratch = core.EnsureLen(m.scratch, maxBlockSize)
	m.maxBlock = maxBlockSize

	return nil
}

// MixTo writes the weighted sum of srcs into dst. The number of sources
// must match the constructor; every source must be at least as long as
// dst. A call before Prepare or beyond the prepared block size leaves
// dst untouched.
func (m *Mixer) MixTo(dst []float64, srcs ...[]float64) {
	n := len(dst)
	if n == 0 || n > m.maxBlock || len(srcs) != len(m.weights) {
		return
	}

	for _, src := range srcs {
		if len(src) < n {
			return
		}
	}

	vecmath.ScaleBlock(dst, srcs[0][:n], m.weights[0])

	tmp := m.scratch[:n]
	for i := 1; i < len(srcs); i++ {
		vecmath.ScaleBlock(tmp, srcs[i][:n], m.weights[i])
		vecmath.AddBlockInPlace(dst, tmp)
	}

	core.SanitizeBuffer(dst)
}

// Process passes buf through, sanitizing non-finite samples. Summing
// happens in MixTo; as a graph node the mixer's inputs are already
// combined by the time Process runs.
func (m *Mixer) Process(buf []float64) {
	core.SanitizeBuffer(buf)
}

// Reset is a no-op; the mixer carries no processing state.
func (m *Mixer) Reset() {}
