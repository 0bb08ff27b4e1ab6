package paradigm

import (
	"context"
	"fmt"
	"strings"

	"peira/internal/device"
	"peira/internal/model"
)

const (
	ModeScored   = "scored"
	ModePractice = "practice"
)

// PracticeMarkerOffset shifts stimulus marker codes during practice runs so
// recording hardware can separate warm-up trials from scored ones.
const PracticeMarkerOffset = 100

// Collector delivers subject input events to a paradigm, one at a time.
type Collector interface {
	NextEvent(ctx context.Context) (device.InputEvent, error)
}

type Paradigm interface {
	Name() string
	Prepare(ctx context.Context, plan []model.TrialPlan) error
	Present(ctx context.Context, trial model.TrialPlan) (model.StimulusRecord, error)
	Collect(ctx context.Context, in Collector) (model.ResponseRecord, error)
}

// ModeAware optionally exposes practice/scored routing for warm-up flows.
type ModeAware interface {
	Paradigm
	SetMode(mode string) error
	Mode() string
}

func NormalizeMode(mode string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "scored", "main", "run":
		return ModeScored, nil
	case "practice", "train", "warmup":
		return ModePractice, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", mode)
	}
}

// markerForMode applies the practice offset to a stimulus marker code.
func markerForMode(base int, mode string) int {
	if mode == ModePractice {
		return base + PracticeMarkerOffset
	}
	return base
}
