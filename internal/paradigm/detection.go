package paradigm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"peira/internal/model"
	"peira/internal/timing"
)

// DefaultDetectionMarker is the stimulus marker code for scored detection
// trials. Practice trials emit the code shifted by PracticeMarkerOffset.
const DefaultDetectionMarker = 10

// DefaultDetectionKeys accepts the spacebar when no keys are configured.
var DefaultDetectionKeys = []string{"space"}

type DetectionConfig struct {
	// Keys lists the accepted response keys. Empty means spacebar only.
	Keys []string

	// Clock stamps trial onsets. Nil means the system clock.
	Clock timing.Clock

	// MarkerBase overrides DefaultDetectionMarker when positive.
	MarkerBase int
}

// DetectionParadigm flashes a target and records the latency of the first
// accepted key press relative to stimulus onset.
type DetectionParadigm struct {
	keys       []string
	clock      timing.Clock
	markerBase int
	mode       string
	onset      time.Time
}

func NewDetectionParadigm(cfg DetectionConfig) (*DetectionParadigm, error) {
	keys := cfg.Keys
	if len(keys) == 0 {
		keys = DefaultDetectionKeys
	}
	normalized := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, errors.New("detection keys must be non-empty")
		}
		normalized = append(normalized, key)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timing.SystemClock{}
	}
	markerBase := cfg.MarkerBase
	if markerBase <= 0 {
		markerBase = DefaultDetectionMarker
	}
	return &DetectionParadigm{
		keys:       normalized,
		clock:      clock,
		markerBase: markerBase,
		mode:       ModeScored,
	}, nil
}

func (p *DetectionParadigm) Name() string {
	return "detection"
}

func (p *DetectionParadigm) Prepare(ctx context.Context, plan []model.TrialPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(plan) == 0 {
		return errors.New("trial plan is empty")
	}
	p.onset = time.Time{}
	return nil
}

// Present stamps the trial onset, so Collect latencies are measured from
// the moment the target went up.
func (p *DetectionParadigm) Present(ctx context.Context, trial model.TrialPlan) (model.StimulusRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.StimulusRecord{}, err
	}
	p.onset = p.clock.Now()

	payload := trial.Condition["stimulus"]
	if payload == "" {
		payload = "+"
	}
	return model.StimulusRecord{
		Kind:    "target",
		Payload: payload,
		Marker:  markerForMode(p.markerBase, p.mode),
	}, nil
}

// Collect waits for the first accepted press. Non-response keys and
// releases are ignored. Hitting the trial deadline yields a timed-out
// record, not an error.
func (p *DetectionParadigm) Collect(ctx context.Context, in Collector) (model.ResponseRecord, error) {
	if in == nil {
		return model.ResponseRecord{}, errors.New("collector is required")
	}
	if p.onset.IsZero() {
		return model.ResponseRecord{}, errors.New("collect before present")
	}

	for {
		ev, err := in.NextEvent(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return model.ResponseRecord{
					RTSeconds: p.clock.Now().Sub(p.onset).Seconds(),
					Skipped:   true,
					TimedOut:  true,
				}, nil
			}
			return model.ResponseRecord{}, fmt.Errorf("collect detection input: %w", err)
		}
		if !ev.Pressed || !p.accepts(ev.Key) {
			continue
		}

		rt := ev.At.Sub(p.onset)
		if rt < 0 {
			rt = 0
		}
		return model.ResponseRecord{
			RTSeconds: rt.Seconds(),
			Key:       ev.Key,
		}, nil
	}
}

func (p *DetectionParadigm) SetMode(mode string) error {
	normalized, err := NormalizeMode(mode)
	if err != nil {
		return err
	}
	p.mode = normalized
	return nil
}

func (p *DetectionParadigm) Mode() string {
	return p.mode
}

func (p *DetectionParadigm) accepts(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, k := range p.keys {
		if k == key {
			return true
		}
	}
	return false
}
