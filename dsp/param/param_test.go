package param

import (
	"math"
	"testing"
	"time"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(math.NaN()); err == nil {
		t.Fatal("expected error for non-finite initial value")
	}

	if _, err := New(0, WithSmoothingTime(-time.Millisecond)); err == nil {
		t.Fatal("expected error for negative smoothing time")
	}

	if _, err := New(0, WithRange(1, 1)); err == nil {
		t.Fatal("expected error for empty range")
	}
}

func TestSmoothingIsMonotonicAndExact(t *testing.T) {
	const sampleRate = 48000.0

	p, err := New(0, WithSmoothingTime(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Prepare(sampleRate); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	p.Set(1)

	rampLen := int(math.Round(0.010 * sampleRate))
	prev := p.Value()

	for i := range rampLen {
		v := p.Next()
		if v < prev {
			t.Fatalf("sample %d: non-monotonic ramp %g -> %g", i, prev, v)
		}

		if v > 1 {
			t.Fatalf("sample %d: overshoot %g", i, v)
		}

		prev = v
	}

	if p.Value() != 1 {
		t.Fatalf("ramp incomplete after %d samples: %g", rampLen, p.Value())
	}

	if p.Smoothing() {
		t.Fatal("expected ramp to be settled")
	}
}

func TestStepMatchesRepeatedNext(t *testing.T) {
	const sampleRate = 48000.0

	build := func() *Param {
		p, err := New(0, WithSmoothingTime(10*time.Millisecond))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if err := p.Prepare(sampleRate); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}

		p.Set(1)

		return p
	}

	ticked := build()
	stepped := build()

	for _, n := range []int{1, 7, 64, 100, 500} {
		var want float64
		for range n {
			want = ticked.Next()
		}

		// Mid-ramp values accumulate rounding differently (one fused
		// multiply vs n additions), so compare within an ulp margin.
		if got := stepped.Step(n); math.Abs(got-want) > 1e-12 {
			t.Fatalf("Step(%d) = %g, want %g", n, got, want)
		}
	}

	if stepped.Value() != 1 || stepped.Smoothing() {
		t.Fatalf("expected settled ramp, got %g", stepped.Value())
	}

	// Steps past the ramp end stay pinned to the target.
	if got := stepped.Step(100); got != 1 {
		t.Fatalf("Step past end = %g, want 1", got)
	}
}

func TestDownwardRamp(t *testing.T) {
	p, err := New(1, WithSmoothingTime(time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Prepare(48000); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	p.Set(0.25)

	prev := p.Value()
	for range 48 {
		v := p.Next()
		if v > prev {
			t.Fatalf("non-monotonic downward ramp %g -> %g", prev, v)
		}

		prev = v
	}

	if p.Value() != 0.25 {
		t.Fatalf("value = %g, want 0.25", p.Value())
	}
}

func TestZeroSmoothingTakesEffectNextSample(t *testing.T) {
	p, err := New(0, WithSmoothingTime(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p.Set(0.5)

	if got := p.Next(); got != 0.5 {
		t.Fatalf("Next() = %g, want 0.5", got)
	}
}

func TestSetIgnoresNonFiniteAndClampsRange(t *testing.T) {
	p, err := New(0.5, WithRange(0, 1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p.Set(math.Inf(1))

	if p.Target() != 0.5 {
		t.Fatalf("non-finite Set must be ignored, target = %g", p.Target())
	}

	p.Set(4)

	if p.Target() != 1 {
		t.Fatalf("target = %g, want clamp to 1", p.Target())
	}
}

func TestResetSnapsToTarget(t *testing.T) {
	p, err := New(0, WithSmoothingTime(100*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Prepare(48000); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	p.Set(1)
	_ = p.Next()
	p.Reset()

	if p.Value() != 1 || p.Smoothing() {
		t.Fatalf("Reset() value = %g smoothing = %v", p.Value(), p.Smoothing())
	}
}

func TestConcurrentSetWhileAdvancing(t *testing.T) {
	p, err := New(0, WithSmoothingTime(time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Prepare(48000); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := range 10000 {
			p.Set(float64(i%7) * 0.1)
		}
	}()

	for range 20000 {
		v := p.Next()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("non-finite smoothed value: %g", v)
			break
		}
	}

	<-done
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	gain, err := New(1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := r.Add("gain", gain); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := r.Add("gain", gain); err == nil {
		t.Fatal("expected duplicate id error")
	}

	if err := r.Set("gain", 0.5); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := r.Set("missing", 1); err == nil {
		t.Fatal("expected unknown id error")
	}

	got, ok := r.Lookup("gain")
	if !ok || got.Target() != 0.5 {
		t.Fatalf("Lookup() = %v, %v", got, ok)
	}

	if ids := r.IDs(); len(ids) != 1 || ids[0] != "gain" {
		t.Fatalf("IDs() = %v", ids)
	}

	if err := r.Prepare(44100); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
}
