package paradigm

import (
	"context"
	"errors"
	"fmt"

	"peira/internal/model"
	"peira/internal/rating"
	"peira/internal/timing"
)

// DefaultRatingMarker is the stimulus marker code for scored rating trials.
// Practice trials emit the code shifted by PracticeMarkerOffset.
const DefaultRatingMarker = 20

type RatingConfig struct {
	// Scale configures the widget reused for every trial. The zero value
	// yields the stock 1..7 scale.
	Scale rating.Config

	// Clock drives the scale when Scale.Clock is unset. Nil means the
	// system clock.
	Clock timing.Clock

	// MarkerBase overrides DefaultRatingMarker when positive.
	MarkerBase int
}

// RatingParadigm presents one prompt per trial and collects a bounded scale
// response for it. A single widget is reused across trials; Collect resets
// it before reading input.
type RatingParadigm struct {
	scale      *rating.Scale
	markerBase int
	mode       string
}

func NewRatingParadigm(cfg RatingConfig) (*RatingParadigm, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = timing.SystemClock{}
	}
	scaleCfg := cfg.Scale
	if scaleCfg.Clock == nil {
		scaleCfg.Clock = clock
	}
	scale, err := rating.NewScale(scaleCfg)
	if err != nil {
		return nil, fmt.Errorf("configure rating scale: %w", err)
	}

	markerBase := cfg.MarkerBase
	if markerBase <= 0 {
		markerBase = DefaultRatingMarker
	}
	return &RatingParadigm{
		scale:      scale,
		markerBase: markerBase,
		mode:       ModeScored,
	}, nil
}

func (p *RatingParadigm) Name() string {
	return "rating"
}

// Scale exposes the trial widget for rendering. Callers must not feed it
// input while Collect is running.
func (p *RatingParadigm) Scale() *rating.Scale {
	return p.scale
}

func (p *RatingParadigm) Prepare(ctx context.Context, plan []model.TrialPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(plan) == 0 {
		return errors.New("trial plan is empty")
	}
	p.scale.Reset()
	return nil
}

func (p *RatingParadigm) Present(ctx context.Context, trial model.TrialPlan) (model.StimulusRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.StimulusRecord{}, err
	}
	return model.StimulusRecord{
		Kind:    "scale",
		Payload: trial.Condition["prompt"],
		Marker:  markerForMode(p.markerBase, p.mode),
	}, nil
}

// Collect runs the scale until a response is in. Trial deadlines arrive
// through ctx; hitting one yields a timed-out record carrying whatever the
// subject had indicated, not an error.
func (p *RatingParadigm) Collect(ctx context.Context, in Collector) (model.ResponseRecord, error) {
	if in == nil {
		return model.ResponseRecord{}, errors.New("collector is required")
	}

	p.scale.Reset()
	var lastKey string
	for p.scale.Update() != rating.StatusFinished {
		ev, err := in.NextEvent(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return p.timedOutRecord(lastKey), nil
			}
			return model.ResponseRecord{}, fmt.Errorf("collect rating input: %w", err)
		}
		if !ev.Pressed {
			continue
		}
		if p.scale.HandleKey(ev.Key) {
			lastKey = ev.Key
		}
	}
	return p.finishedRecord(lastKey), nil
}

func (p *RatingParadigm) SetMode(mode string) error {
	normalized, err := NormalizeMode(mode)
	if err != nil {
		return err
	}
	p.mode = normalized
	return nil
}

func (p *RatingParadigm) Mode() string {
	return p.mode
}

func (p *RatingParadigm) finishedRecord(key string) model.ResponseRecord {
	rec := model.ResponseRecord{
		Key:      key,
		Skipped:  p.scale.Skipped(),
		TimedOut: p.scale.TimedOut(),
	}
	if v, ok := p.scale.Rating(); ok {
		rec.Rating = v
	}
	if rt, ok := p.scale.RT(); ok {
		rec.RTSeconds = rt.Seconds()
	}
	return rec
}

// timedOutRecord captures the trial state when the deadline fires before
// the scale finishes. A placed marker still counts as the response.
func (p *RatingParadigm) timedOutRecord(key string) model.ResponseRecord {
	rec := model.ResponseRecord{
		Key:      key,
		TimedOut: true,
	}
	if v, ok := p.scale.Rating(); ok {
		rec.Rating = v
	} else {
		rec.Skipped = true
	}
	if rt, ok := p.scale.RT(); ok {
		rec.RTSeconds = rt.Seconds()
	}
	return rec
}
