package stimgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// UniformBounds is a fully resolved mean/min/max triple for uniform draws.
type UniformBounds struct {
	Mean float64
	Min  float64
	Max  float64
}

// ResolveUniformBounds derives the missing quantity from the two provided
// ones. For a uniform distribution mean = (min + max) / 2, so exactly two
// of the three inputs must be set and the third is constrained.
func ResolveUniformBounds(mean, minITI, maxITI *float64) (UniformBounds, error) {
	provided := 0
	for _, v := range []*float64{mean, minITI, maxITI} {
		if v != nil {
			provided++
		}
	}
	if provided != 2 {
		return UniformBounds{}, errors.New("exactly two of mean, min and max are required")
	}
	var bounds UniformBounds
	switch {
	case mean != nil && minITI != nil:
		bounds = UniformBounds{Mean: *mean, Min: *minITI, Max: 2*(*mean) - *minITI}
	case mean != nil && maxITI != nil:
		bounds = UniformBounds{Mean: *mean, Min: 2*(*mean) - *maxITI, Max: *maxITI}
	default:
		bounds = UniformBounds{Mean: (*minITI + *maxITI) / 2, Min: *minITI, Max: *maxITI}
	}
	if bounds.Mean <= bounds.Min {
		return UniformBounds{}, errors.New("desired mean must be greater than min")
	}
	return bounds, nil
}

// UniformSampler draws flat interval sequences inside fixed bounds. Both
// ends are guaranteed by construction, so only the sample mean is subject
// to rejection.
type UniformSampler struct {
	Rand        *rand.Rand
	Bounds      UniformBounds
	Tolerance   float64
	Discrete    bool
	MaxAttempts int
	mu          sync.Mutex
}

func (u *UniformSampler) Name() string { return DistributionUniform }

func (u *UniformSampler) Sample(ctx context.Context, numTrials int) ([]float64, SampleReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, SampleReport{}, err
	}
	if u == nil || u.Rand == nil {
		return nil, SampleReport{}, errors.New("random source is required")
	}
	if numTrials <= 0 {
		return nil, SampleReport{}, errors.New("number of trials must be > 0")
	}
	if u.Bounds.Max < u.Bounds.Min {
		return nil, SampleReport{}, errors.New("max must be >= min")
	}
	if u.Bounds.Mean < u.Bounds.Min || u.Bounds.Mean > u.Bounds.Max {
		return nil, SampleReport{}, errors.New("mean must lie between min and max")
	}
	if u.Discrete {
		if u.Bounds.Min != math.Trunc(u.Bounds.Min) {
			return nil, SampleReport{}, errors.New("min must be an integer for discrete sampling")
		}
		if u.Bounds.Max != math.Trunc(u.Bounds.Max) {
			return nil, SampleReport{}, errors.New("max must be an integer for discrete sampling")
		}
	}
	tolerance := u.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}
	maxAttempts := u.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	span := u.Bounds.Max - u.Bounds.Min

	report := SampleReport{AttemptsPlanned: maxAttempts}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		report.AttemptsExecuted = attempt
		values := make([]float64, numTrials)
		sum := 0.0
		maxValue := math.Inf(-1)
		for i := range values {
			var v float64
			if u.Discrete {
				v = u.Bounds.Min + float64(u.randIntn(int(span)+1))
			} else {
				v = u.Bounds.Min + u.randFloat64()*span
			}
			values[i] = v
			sum += v
			if v > maxValue {
				maxValue = v
			}
		}
		report.ObservedMean = sum / float64(numTrials)
		report.ObservedMax = maxValue
		if math.Abs(report.ObservedMean-u.Bounds.Mean) <= tolerance {
			report.Accepted = true
			return values, report, nil
		}
	}
	return nil, report, fmt.Errorf("after %d attempts: %w", maxAttempts, ErrNoAcceptableSequence)
}

func (u *UniformSampler) randIntn(n int) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Rand.Intn(n)
}

func (u *UniformSampler) randFloat64() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Rand.Float64()
}
