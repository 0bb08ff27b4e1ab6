package report

import (
	"fmt"
	"math"

	"peira/internal/model"
)

// Avg returns the arithmetic mean of values.
func Avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float64) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}

func Min(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	min := values[0]
	for _, value := range values[1:] {
		if value < min {
			min = value
		}
	}
	return min, nil
}

func Max(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	max := values[0]
	for _, value := range values[1:] {
		if value > max {
			max = value
		}
	}
	return max, nil
}

// SessionStats summarizes reaction times over one session's responses.
// Skipped responses carry no subject latency and stay out of the RT figures.
type SessionStats struct {
	Responses     int     `json:"responses"`
	Skipped       int     `json:"skipped"`
	TimedOut      int     `json:"timed_out"`
	MeanRTSeconds float64 `json:"mean_rt_seconds"`
	StdRTSeconds  float64 `json:"std_rt_seconds"`
	MinRTSeconds  float64 `json:"min_rt_seconds"`
	MaxRTSeconds  float64 `json:"max_rt_seconds"`
}

func BuildSessionStats(responses []model.ResponseRecord) SessionStats {
	stats := SessionStats{}
	rts := make([]float64, 0, len(responses))
	for _, response := range responses {
		if response.TimedOut {
			stats.TimedOut++
		}
		if response.Skipped {
			stats.Skipped++
			continue
		}
		stats.Responses++
		rts = append(rts, response.RTSeconds)
	}
	if len(rts) > 0 {
		stats.MeanRTSeconds, _ = Avg(rts)
		stats.StdRTSeconds, _ = Std(rts)
		stats.MinRTSeconds, _ = Min(rts)
		stats.MaxRTSeconds, _ = Max(rts)
	}
	return stats
}
