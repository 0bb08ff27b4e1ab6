package stimgen

import "context"

// Sampler draws one inter-trial interval sequence per call. Implementations
// keep no state between calls beyond their random source.
type Sampler interface {
	Name() string
	Sample(ctx context.Context, numTrials int) ([]float64, SampleReport, error)
}

// SampleReport describes how a sequence search went. ObservedMean and
// ObservedMax refer to the last attempt, accepted or not.
type SampleReport struct {
	AttemptsPlanned  int     `json:"attempts_planned"`
	AttemptsExecuted int     `json:"attempts_executed"`
	Accepted         bool    `json:"accepted"`
	ObservedMean     float64 `json:"observed_mean"`
	ObservedMax      float64 `json:"observed_max"`
}
