package stimgen

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
)

func f64ptr(v float64) *float64 { return &v }

func TestResolveUniformBoundsDerivesThird(t *testing.T) {
	bounds, err := ResolveUniformBounds(f64ptr(6), f64ptr(2), nil)
	if err != nil {
		t.Fatalf("mean+min: %v", err)
	}
	if bounds.Max != 10 {
		t.Fatalf("mean+min: expected max 10, got %f", bounds.Max)
	}

	bounds, err = ResolveUniformBounds(f64ptr(6), nil, f64ptr(9))
	if err != nil {
		t.Fatalf("mean+max: %v", err)
	}
	if bounds.Min != 3 {
		t.Fatalf("mean+max: expected min 3, got %f", bounds.Min)
	}

	bounds, err = ResolveUniformBounds(nil, f64ptr(2), f64ptr(8))
	if err != nil {
		t.Fatalf("min+max: %v", err)
	}
	if bounds.Mean != 5 {
		t.Fatalf("min+max: expected mean 5, got %f", bounds.Mean)
	}
}

func TestResolveUniformBoundsRequiresExactlyTwo(t *testing.T) {
	if _, err := ResolveUniformBounds(f64ptr(6), nil, nil); err == nil {
		t.Fatal("expected error for a single input")
	}
	if _, err := ResolveUniformBounds(f64ptr(6), f64ptr(2), f64ptr(10)); err == nil {
		t.Fatal("expected error for three inputs")
	}
	if _, err := ResolveUniformBounds(nil, nil, nil); err == nil {
		t.Fatal("expected error for no inputs")
	}
}

func TestResolveUniformBoundsRejectsMeanAtOrBelowMin(t *testing.T) {
	if _, err := ResolveUniformBounds(f64ptr(2), f64ptr(2), nil); err == nil {
		t.Fatal("expected error for mean equal to min")
	}
	if _, err := ResolveUniformBounds(f64ptr(1), f64ptr(2), nil); err == nil {
		t.Fatal("expected error for mean below min")
	}
}

func TestUniformSamplerContinuousHonorsBounds(t *testing.T) {
	sampler := &UniformSampler{
		Rand:      rand.New(rand.NewSource(3)),
		Bounds:    UniformBounds{Mean: 6, Min: 2, Max: 10},
		Tolerance: 0.5,
	}

	values, report, err := sampler.Sample(context.Background(), 30)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(values) != 30 {
		t.Fatalf("expected 30 values, got %d", len(values))
	}
	for i, v := range values {
		if v < 2 || v > 10 {
			t.Fatalf("value %d out of bounds: %f", i, v)
		}
	}
	if !report.Accepted {
		t.Fatalf("expected accepted report: %+v", report)
	}
	if math.Abs(report.ObservedMean-6) > 0.5 {
		t.Fatalf("observed mean outside tolerance: %f", report.ObservedMean)
	}
}

func TestUniformSamplerDiscreteDrawsIntegers(t *testing.T) {
	sampler := &UniformSampler{
		Rand:      rand.New(rand.NewSource(4)),
		Bounds:    UniformBounds{Mean: 5, Min: 2, Max: 8},
		Tolerance: 0.5,
		Discrete:  true,
	}

	values, _, err := sampler.Sample(context.Background(), 25)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	for i, v := range values {
		if v < 2 || v > 8 {
			t.Fatalf("value %d out of bounds: %f", i, v)
		}
		if v != math.Trunc(v) {
			t.Fatalf("expected integer value at %d, got %f", i, v)
		}
	}
}

func TestUniformSamplerExhaustsAttempts(t *testing.T) {
	sampler := &UniformSampler{
		Rand:        rand.New(rand.NewSource(6)),
		Bounds:      UniformBounds{Mean: 6, Min: 2, Max: 10},
		Tolerance:   1e-12,
		MaxAttempts: 10,
	}

	_, report, err := sampler.Sample(context.Background(), 10)
	if !errors.Is(err, ErrNoAcceptableSequence) {
		t.Fatalf("expected ErrNoAcceptableSequence, got %v", err)
	}
	if report.AttemptsExecuted != 10 {
		t.Fatalf("expected all 10 attempts executed, got %d", report.AttemptsExecuted)
	}
}

func TestUniformSamplerInputValidation(t *testing.T) {
	if _, _, err := (&UniformSampler{}).Sample(context.Background(), 5); err == nil {
		t.Fatal("expected rand validation error")
	}
	if _, _, err := (&UniformSampler{Rand: rand.New(rand.NewSource(1))}).Sample(context.Background(), 0); err == nil {
		t.Fatal("expected trial count validation error")
	}
	inverted := &UniformSampler{Rand: rand.New(rand.NewSource(1)), Bounds: UniformBounds{Mean: 5, Min: 8, Max: 2}}
	if _, _, err := inverted.Sample(context.Background(), 5); err == nil {
		t.Fatal("expected max >= min validation error")
	}
	outside := &UniformSampler{Rand: rand.New(rand.NewSource(1)), Bounds: UniformBounds{Mean: 12, Min: 2, Max: 10}}
	if _, _, err := outside.Sample(context.Background(), 5); err == nil {
		t.Fatal("expected mean placement validation error")
	}
	fractional := &UniformSampler{Rand: rand.New(rand.NewSource(1)), Bounds: UniformBounds{Mean: 5, Min: 2.5, Max: 9.5}, Discrete: true}
	if _, _, err := fractional.Sample(context.Background(), 5); err == nil {
		t.Fatal("expected integer bounds validation error")
	}
}

func TestUniformSamplerName(t *testing.T) {
	if got := (&UniformSampler{}).Name(); got != DistributionUniform {
		t.Fatalf("uniform name: got %q", got)
	}
}
