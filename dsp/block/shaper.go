package block

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-va/dsp/core"
	"github.com/cwbudde/algo-va/dsp/param"
)

const (
	minShaperDrive = 0.01
	maxShaperDrive = 24.0
)

// ShaperMode selects the memoryless transfer function.
type ShaperMode int

const (
	// ShaperTanh applies y = tanh(drive * x).
	ShaperTanh ShaperMode = iota
	// ShaperHard clips drive * x to [-1, 1].
	ShaperHard
	// ShaperSoft applies the cubic soft clip 1.5x - 0.5x^3.
	ShaperSoft
)

func (m ShaperMode) String() string {
	switch m {
	case ShaperTanh:
		return "tanh"
	case ShaperHard:
		return "hard"
	case ShaperSoft:
		return "soft"
	default:
		return "unknown"
	}
}

// ShaperOption mutates Shaper construction.
type ShaperOption func(*shaperConfig) error

type shaperConfig struct {
	mode      ShaperMode
	drive     float64
	smoothing time.Duration
}

// WithShaperMode selects the transfer function.
func WithShaperMode(mode ShaperMode) ShaperOption {
	return func(cfg *shaperConfig) error {
		if mode < ShaperTanh || mode > ShaperSoft {
			return fmt.Errorf("block: invalid shaper mode: %d", mode)
		}

		cfg.mode = mode

		return nil
	}
}

// WithShaperDrive sets initial drive in [0.01, 24].
func WithShaperDrive(drive float64) ShaperOption {
	return func(cfg *shaperConfig) error {
		if !core.IsFinite(drive) || drive < minShaperDrive || drive > maxShaperDrive {
			return fmt.Errorf("block: drive must be in [%g, %g]: %v", minShaperDrive, maxShaperDrive, drive)
		}

		cfg.drive = drive

		return nil
	}
}

// WithShaperSmoothing sets the drive ramp duration.
func WithShaperSmoothing(d time.Duration) ShaperOption {
	return func(cfg *shaperConfig) error {
		if d < 0 {
			return fmt.Errorf("block: shaper smoothing must be >= 0: %v", d)
		}

		cfg.smoothing = d

		return nil
	}
}

// Shaper is a memoryless waveshaper with a smoothed drive parameter.
type Shaper struct {
	mode  ShaperMode
	drive *param.Param
}

// NewShaper constructs a waveshaper.
func NewShaper(opts ...ShaperOption) (*Shaper, error) {
	cfg := shaperConfig{
		mode:      ShaperTanh,
		drive:     1,
		smoothing: 20 * time.Millisecond,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	drive, err := param.New(cfg.drive,
		param.WithSmoothingTime(cfg.smoothing),
		param.WithRange(minShaperDrive, maxShaperDrive))
	if err != nil {
		return nil, err
	}

	return &Shaper{mode: cfg.mode, drive: drive}, nil
}

// Mode returns the transfer function in use.
func (s *Shaper) Mode() ShaperMode { return s.mode }

// Drive exposes the drive parameter for the control thread.
func (s *Shaper) Drive() *param.Param { return s.drive }

// SetDrive posts a new drive target.
func (s *Shaper) SetDrive(drive float64) { s.drive.Set(drive) }

// Prepare derives the drive ramp length for the sample rate.
func (s *Shaper) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validatePrepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	return s.drive.Prepare(sampleRate)
}

// Process shapes buf in place.
func (s *Shaper) Process(buf []float64) {
	if len(buf) == 0 {
		return
	}

	core.SanitizeBuffer(buf)

	switch s.mode {
	case ShaperTanh:
		for i := range buf {
			buf[i] = math.Tanh(s.drive.Next() * buf[i])
		}

	case ShaperHard:
		for i := range buf {
			buf[i] = core.Clamp(s.drive.Next()*buf[i], -1, 1)
		}

	case ShaperSoft:
		for i := range buf {
			buf[i] = softClip(s.drive.Next() * buf[i])
		}
	}
}

// Reset snaps the drive ramp.
func (s *Shaper) Reset() {
	s.drive.Reset()
}

// softClip is the cubic 1.5x - 0.5x^3 saturator, hard-limited outside
// [-1, 1] where the cubic folds back.
func softClip(x float64) float64 {
	if x >= 1 {
		return 1
	}

	if x <= -1 {
		return -1
	}

	return x * (1.5 - 0.5*x*x)
}
