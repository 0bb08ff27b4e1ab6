package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"peira/internal/rating"
)

func TestRateLoopAcceptsDigitResponse(t *testing.T) {
	scale, err := rating.NewScale(rating.Config{MinTime: -1})
	if err != nil {
		t.Fatalf("new scale: %v", err)
	}

	var out bytes.Buffer
	in := strings.NewReader("4\naccept\n")
	if err := rateLoop(scale, in, &out); err != nil {
		t.Fatalf("rate loop: %v", err)
	}

	if !strings.Contains(out.String(), "rating=4") {
		t.Fatalf("expected an accepted rating, got: %s", out.String())
	}
	value, ok := scale.Rating()
	if !ok || value != 4 {
		t.Fatalf("rating = %v ok=%v, want 4", value, ok)
	}
}

func TestRateLoopClampsOutOfBoundsResponse(t *testing.T) {
	scale, err := rating.NewScale(rating.Config{
		MinTime: -1,
		Bounds:  &rating.Bounds{Lower: 2, Upper: 5},
	})
	if err != nil {
		t.Fatalf("new scale: %v", err)
	}

	var out bytes.Buffer
	in := strings.NewReader("7\naccept\n")
	if err := rateLoop(scale, in, &out); err != nil {
		t.Fatalf("rate loop: %v", err)
	}

	value, ok := scale.Rating()
	if !ok || value != 5 {
		t.Fatalf("rating = %v ok=%v, want clamp to 5", value, ok)
	}
}

func TestRateLoopReportsSkip(t *testing.T) {
	scale, err := rating.NewScale(rating.Config{MinTime: -1})
	if err != nil {
		t.Fatalf("new scale: %v", err)
	}

	var out bytes.Buffer
	if err := rateLoop(scale, strings.NewReader("skip\n"), &out); err != nil {
		t.Fatalf("rate loop: %v", err)
	}
	if !strings.Contains(out.String(), "rating skipped") {
		t.Fatalf("expected skip notice, got: %s", out.String())
	}
}

func TestDrawFramesNeverRegistersResponse(t *testing.T) {
	scale, err := rating.NewScale(rating.Config{MinTime: -1})
	if err != nil {
		t.Fatalf("new scale: %v", err)
	}

	var out bytes.Buffer
	if err := drawFrames(scale, &out, 2, time.Millisecond); err != nil {
		t.Fatalf("draw frames: %v", err)
	}

	if !strings.Contains(out.String(), "draw-only: no response collected") {
		t.Fatalf("expected draw-only notice, got: %s", out.String())
	}
	if scale.Responded() || scale.Skipped() {
		t.Fatal("draw-only rendering must not register a response")
	}
	if _, ok := scale.Rating(); ok {
		t.Fatal("draw-only rendering must not produce a rating")
	}
}
