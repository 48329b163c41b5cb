package block

import (
	"github.com/cwbudde/algo-va/dsp/core"
	"github.com/cwbudde/algo-va/dsp/oversample"
)

// Oversampled runs an inner block at a multiple of the host sample
// rate. Input blocks are upsampled, processed, and decimated back; the
// wrapper adds the resampler's round-trip latency.
type Oversampled struct {
	inner Block
	os    *oversample.Oversampler

	work     []float64
	maxBlock int
}

// NewOversampled wraps inner to run at factor times the host rate.
// Factor and quality options follow the oversample package.
func NewOversampled(inner Block, factor int, opts ...oversample.Option) (*Oversampled, error) {
	if inner == nil {
		return nil, ErrNilBlock
	}

	os, err := oversample.New(factor, opts...)
	if err != nil {
		return nil, err
	}

	return &Oversampled{inner: inner, os: os}, nil
}

// Inner returns the wrapped block.
func (o *Oversampled) Inner() Block { return o.inner }

// Factor returns the oversampling factor.
func (o *Oversampled) Factor() int { return o.os.Factor() }

// Latency returns the resampler round-trip latency in host-rate samples.
func (o *Oversampled) Latency() int { return o.os.Latency() }

// Prepare prepares the resampler and the inner block at the raised rate.
func (o *Oversampled) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validatePrepare(sampleRate, maxBlockSize); err != nil {
		return err
	}

	if err := o.os.Prepare(maxBlockSize); err != nil {
		return err
	}

	factor := o.os.Factor()
	if err := o.inner.Prepare(sampleRate*float64(factor), maxBlockSize*factor); err != nil {
		return err
	}

	o.work = core.EnsureLen(o.work, maxBlockSize*factor)
	o.maxBlock = maxBlockSize

	return nil
}

// Process runs buf through the oversampled inner block in place.
// Before Prepare, or beyond the prepared block size, buf is untouched.
func (o *Oversampled) Process(buf []float64) {
	n := len(buf)
	if n == 0 || n > o.maxBlock {
		return
	}

	m := o.os.Upsample(o.work, buf)
	if m == 0 {
		return
	}

	o.inner.Process(o.work[:m])
	o.os.Downsample(buf, o.work[:m])
}

// Reset clears the resampler history and the inner block state.
func (o *Oversampled) Reset() {
	o.os.Reset()
	o.inner.Reset()
}
