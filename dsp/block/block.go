package block

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-va/dsp/core"
)

const maxBlockSizeLimit = 1 << 20

var (
	// ErrSampleRate indicates a non-positive or non-finite sample rate.
	ErrSampleRate = errors.New("block: sample rate must be > 0 and finite")
	// ErrBlockSize indicates a maximum block size outside [1, 1<<20].
	ErrBlockSize = errors.New("block: max block size out of range")
	// ErrNilBlock indicates a nil inner block passed to a wrapper.
	ErrNilBlock = errors.New("block: nil block")
)

// Block is a mono audio processor.
//
// Prepare may allocate and must be called before Process; Process runs
// in place on the audio thread and must not allocate or panic. Reset
// clears processing state without touching configuration.
type Block interface {
	Prepare(sampleRate float64, maxBlockSize int) error
	Process(buf []float64)
	Reset()
}

func validatePrepare(sampleRate float64, maxBlockSize int) error {
	if !core.IsFinite(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("%w: %f", ErrSampleRate, sampleRate)
	}

	if maxBlockSize < 1 || maxBlockSize > maxBlockSizeLimit {
		return fmt.Errorf("%w: %d", ErrBlockSize, maxBlockSize)
	}

	return nil
}

// Stereo runs one independent Block per channel.
type Stereo struct {
	left  Block
	right Block
}

// NewStereo wraps two independent blocks as a stereo pair. The blocks
// must be distinct instances; sharing one would share its state across
// channels.
func NewStereo(left, right Block) (*Stereo, error) {
	if left == nil || right == nil {
		return nil, ErrNilBlock
	}

	if left == right {
		return nil, fmt.Errorf("block: stereo channels must not share a block instance")
	}

	return &Stereo{left: left, right: right}, nil
}

// Left returns the left-channel block.
func (s *Stereo) Left() Block { return s.left }

// Right returns the right-channel block.
func (s *Stereo) Right() Block { return s.right }

// Prepare prepares both channels.
func (s *Stereo) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := s.left.Prepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	return s.right.Prepare(sampleRate, maxBlockSize)
}

// Process processes planar stereo buffers in place.
func (s *Stereo) Process(left, right []float64) {
	s.left.Process(left)
	s.right.Process(right)
}

// Reset clears both channel states.
func (s *Stereo) Reset() {
	s.left.Reset()
	s.right.Reset()
}
