package timing

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stepClock advances a fixed amount on every reading, standing in for a
// wall clock whose consumer burns measurable time between samples.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}

// lastReading reports the most recent instant handed out by the clock.
func (c *stepClock) lastReading() time.Time {
	return c.now.Add(-c.step)
}

func TestWaitReturnsOnceTargetElapses(t *testing.T) {
	base := time.Unix(0, 0)
	clock := &stepClock{now: base, step: time.Millisecond}

	if err := Wait(context.Background(), clock, 5*time.Millisecond); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	elapsed := clock.lastReading().Sub(base)
	if elapsed < 5*time.Millisecond {
		t.Fatalf("wait returned after %v, before the 5ms target", elapsed)
	}
	if elapsed > 7*time.Millisecond {
		t.Fatalf("wait overshot to %v, expected at most one extra sample", elapsed)
	}
}

func TestCountdownExtendAbsorbsPriorOvershoot(t *testing.T) {
	base := time.Unix(0, 0)
	clock := &stepClock{now: base, step: 3 * time.Millisecond}

	countdown, err := NewCountdown(clock, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCountdown failed: %v", err)
	}
	countdown.SetTick(time.Nanosecond)

	if err := countdown.Wait(context.Background()); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	firstElapsed := clock.lastReading().Sub(base)
	if firstElapsed < 10*time.Millisecond {
		t.Fatalf("first wait returned early at %v", firstElapsed)
	}

	countdown.Extend(10 * time.Millisecond)
	if err := countdown.Wait(context.Background()); err != nil {
		t.Fatalf("second wait failed: %v", err)
	}

	total := clock.lastReading().Sub(base)
	if total < 20*time.Millisecond {
		t.Fatalf("combined waits returned early at %v", total)
	}
	if total > 23*time.Millisecond {
		t.Fatalf("combined waits drifted to %v, overshoot should not accumulate per call", total)
	}
}

func TestWaitZeroDurationReturnsImmediately(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0), step: time.Millisecond}
	if err := Wait(context.Background(), clock, 0); err != nil {
		t.Fatalf("zero duration wait failed: %v", err)
	}
	if err := Wait(context.Background(), clock, -time.Second); err != nil {
		t.Fatalf("negative duration wait failed: %v", err)
	}
}

func TestWaitRequiresClock(t *testing.T) {
	if err := Wait(context.Background(), nil, time.Second); err == nil {
		t.Fatalf("expected error for nil clock")
	}
}

func TestWaitHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := &stepClock{now: time.Unix(0, 0), step: time.Millisecond}
	err := Wait(ctx, clock, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunForInvokesActionUntilExpiry(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0), step: 4 * time.Millisecond}

	calls := 0
	err := RunFor(context.Background(), clock, 10*time.Millisecond, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("RunFor failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 action calls for a 10ms window at 4ms per pass, got %d", calls)
	}
}

func TestRunForStopsOnActionError(t *testing.T) {
	boom := errors.New("flip failed")
	clock := &stepClock{now: time.Unix(0, 0), step: time.Millisecond}

	calls := 0
	err := RunFor(context.Background(), clock, time.Second, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected action error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected loop to stop after the failing call, got %d calls", calls)
	}
}

func TestRunForRequiresAction(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0), step: time.Millisecond}
	if err := RunFor(context.Background(), clock, time.Second, nil); err == nil {
		t.Fatalf("expected error for nil action")
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0), step: 5 * time.Millisecond}
	countdown, err := NewCountdown(clock, time.Millisecond)
	if err != nil {
		t.Fatalf("NewCountdown failed: %v", err)
	}
	if remaining := countdown.Remaining(); remaining != 0 {
		t.Fatalf("expected remaining clamped to 0, got %v", remaining)
	}
	if !countdown.Expired() {
		t.Fatalf("expected countdown to be expired")
	}
}

func TestSystemClockReadsForward(t *testing.T) {
	clock := SystemClock{}
	first := clock.Now()
	second := clock.Now()
	if second.Before(first) {
		t.Fatalf("system clock went backwards: %v then %v", first, second)
	}
}
