package stimgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Defaults applied when the corresponding field is left at its zero value.
const (
	DefaultMean        = 6.0
	DefaultMin         = 1.0
	DefaultTolerance   = 0.05
	DefaultMaxAttempts = 20000
)

// ErrNoAcceptableSequence reports that the rejection loop exhausted its
// attempt budget before any sequence satisfied the mean tolerance and the
// max cap. Widening the tolerance or raising the cap makes solutions easier.
var ErrNoAcceptableSequence = errors.New("no acceptable sequence within attempt budget")

// SkewedSampler draws interval sequences with many short values and a few
// long ones. Discrete draws come from a geometric distribution shifted to
// start at Min, continuous draws from an exponential shifted the same way,
// so Min is guaranteed by construction. Whole sequences are rejected until
// the sample mean lands within Tolerance of Mean and no value exceeds Max.
type SkewedSampler struct {
	Rand        *rand.Rand
	Mean        float64
	Min         float64
	Max         float64 // non-positive means uncapped
	Tolerance   float64
	Discrete    bool
	MaxAttempts int
	mu          sync.Mutex
}

func (s *SkewedSampler) Name() string {
	if s != nil && s.Discrete {
		return DistributionGeometric
	}
	return DistributionExponential
}

func (s *SkewedSampler) Sample(ctx context.Context, numTrials int) ([]float64, SampleReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, SampleReport{}, err
	}
	if s == nil || s.Rand == nil {
		return nil, SampleReport{}, errors.New("random source is required")
	}
	if numTrials <= 0 {
		return nil, SampleReport{}, errors.New("number of trials must be > 0")
	}
	mean := s.Mean
	if mean == 0 {
		mean = DefaultMean
	}
	if mean <= s.Min {
		return nil, SampleReport{}, errors.New("desired mean must be greater than min")
	}
	if s.Discrete {
		if s.Min != math.Trunc(s.Min) {
			return nil, SampleReport{}, errors.New("min must be an integer for discrete sampling")
		}
		if s.Max > 0 && s.Max != math.Trunc(s.Max) {
			return nil, SampleReport{}, errors.New("max must be an integer for discrete sampling")
		}
	}
	if s.Max > 0 && s.Max < s.Min {
		return nil, SampleReport{}, errors.New("max must be >= min")
	}
	tolerance := s.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	ceiling := math.Inf(1)
	if s.Max > 0 {
		ceiling = s.Max
	}
	// The geometric mean over {1, 2, ...} is 1/p, so shifting by Min-1
	// needs the mean adjusted by the same amount.
	adjustedMean := mean - (s.Min - 1)
	scale := mean - s.Min

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
			if s.Discrete {
				v = s.Min - 1 + s.drawGeometric(1/adjustedMean)
			} else {
				v = s.Min + s.randExp()*scale
			}
			values[i] = v
			sum += v
			if v > maxValue {
				maxValue = v
			}
		}
		report.ObservedMean = sum / float64(numTrials)
		report.ObservedMax = maxValue
		if math.Abs(report.ObservedMean-mean) <= tolerance && maxValue <= ceiling {
			report.Accepted = true
			return values, report, nil
		}
	}
	return nil, report, fmt.Errorf("after %d attempts: %w", maxAttempts, ErrNoAcceptableSequence)
}

// drawGeometric inverts the geometric CDF over {1, 2, ...}.
func (s *SkewedSampler) drawGeometric(p float64) float64 {
	if p >= 1 {
		return 1
	}
	u := s.randFloat64()
	k := math.Ceil(math.Log1p(-u) / math.Log1p(-p))
	if k < 1 {
		k = 1
	}
	return k
}

func (s *SkewedSampler) randFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Rand.Float64()
}

func (s *SkewedSampler) randExp() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Rand.ExpFloat64()
}
