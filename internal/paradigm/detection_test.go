package paradigm

import (
	"context"
	"errors"
	"testing"
	"time"

	"peira/internal/device"
	"peira/internal/model"
)

func newTestDetectionParadigm(t *testing.T, cfg DetectionConfig) (*DetectionParadigm, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Unix(200, 0)}
	cfg.Clock = clock
	p, err := NewDetectionParadigm(cfg)
	if err != nil {
		t.Fatalf("NewDetectionParadigm: %v", err)
	}
	return p, clock
}

func TestDetectionParadigmRecordsFirstAcceptedPress(t *testing.T) {
	p, clock := newTestDetectionParadigm(t, DetectionConfig{})
	ctx := context.Background()

	stim, err := p.Present(ctx, model.TrialPlan{Condition: map[string]string{"stimulus": "flash"}})
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if stim.Kind != "target" || stim.Payload != "flash" {
		t.Fatalf("unexpected stimulus: %+v", stim)
	}
	if stim.Marker != DefaultDetectionMarker {
		t.Fatalf("expected marker %d, got %d", DefaultDetectionMarker, stim.Marker)
	}

	onset := clock.now
	in := &scriptedCollector{
		events: []device.InputEvent{
			{Key: "a", Pressed: true, At: onset.Add(100 * time.Millisecond)},
			{Key: "space", Pressed: false, At: onset.Add(150 * time.Millisecond)},
			{Key: "space", Pressed: true, At: onset.Add(250 * time.Millisecond)},
		},
	}
	rec, err := p.Collect(ctx, in)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if rec.Key != "space" || rec.Skipped || rec.TimedOut {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.RTSeconds != 0.25 {
		t.Fatalf("expected rt 0.25s, got %f", rec.RTSeconds)
	}
}

func TestDetectionParadigmDefaultsToFixationPayload(t *testing.T) {
	p, _ := newTestDetectionParadigm(t, DetectionConfig{})
	stim, err := p.Present(context.Background(), model.TrialPlan{})
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if stim.Payload != "+" {
		t.Fatalf("expected fixation payload, got %q", stim.Payload)
	}
}

func TestDetectionParadigmTimesOutOnDeadline(t *testing.T) {
	p, clock := newTestDetectionParadigm(t, DetectionConfig{})
	ctx := context.Background()
	if _, err := p.Present(ctx, model.TrialPlan{}); err != nil {
		t.Fatalf("present: %v", err)
	}

	in := &scriptedCollector{
		clock:  clock,
		step:   300 * time.Millisecond,
		events: []device.InputEvent{{Key: "q", Pressed: true, At: clock.now.Add(300 * time.Millisecond)}},
	}
	rec, err := p.Collect(ctx, in)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !rec.TimedOut || !rec.Skipped {
		t.Fatalf("expected timeout record, got %+v", rec)
	}
	if rec.RTSeconds != 0.3 {
		t.Fatalf("expected rt 0.3s, got %f", rec.RTSeconds)
	}
}

func TestDetectionParadigmClampsPressBeforeOnset(t *testing.T) {
	p, clock := newTestDetectionParadigm(t, DetectionConfig{Keys: []string{"Return", " space "}})
	ctx := context.Background()
	if _, err := p.Present(ctx, model.TrialPlan{}); err != nil {
		t.Fatalf("present: %v", err)
	}

	in := &scriptedCollector{
		events: []device.InputEvent{{Key: "return", Pressed: true, At: clock.now.Add(-50 * time.Millisecond)}},
	}
	rec, err := p.Collect(ctx, in)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if rec.RTSeconds != 0 {
		t.Fatalf("expected clamped rt, got %f", rec.RTSeconds)
	}
	if rec.Key != "return" {
		t.Fatalf("expected return key, got %q", rec.Key)
	}
}

func TestDetectionParadigmRequiresPresentBeforeCollect(t *testing.T) {
	p, _ := newTestDetectionParadigm(t, DetectionConfig{})
	if _, err := p.Collect(context.Background(), &scriptedCollector{}); err == nil {
		t.Fatal("expected error for collect before present")
	}

	ctx := context.Background()
	if _, err := p.Present(ctx, model.TrialPlan{}); err != nil {
		t.Fatalf("present: %v", err)
	}
	if err := p.Prepare(ctx, singleTrialPlan()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := p.Collect(ctx, &scriptedCollector{}); err == nil {
		t.Fatal("expected error after prepare cleared the onset")
	}
}

func TestDetectionParadigmReportsCancellation(t *testing.T) {
	p, _ := newTestDetectionParadigm(t, DetectionConfig{})
	ctx := context.Background()
	if _, err := p.Present(ctx, model.TrialPlan{}); err != nil {
		t.Fatalf("present: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := p.Collect(canceled, &scriptedCollector{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestDetectionParadigmValidationAndModes(t *testing.T) {
	if _, err := NewDetectionParadigm(DetectionConfig{Keys: []string{"  "}}); err == nil {
		t.Fatal("expected error for blank response key")
	}

	p, _ := newTestDetectionParadigm(t, DetectionConfig{MarkerBase: 40})
	if err := p.SetMode("practice"); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	stim, err := p.Present(context.Background(), model.TrialPlan{})
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if want := 40 + PracticeMarkerOffset; stim.Marker != want {
		t.Fatalf("expected practice marker %d, got %d", want, stim.Marker)
	}
	if _, err := p.Collect(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil collector")
	}
}
