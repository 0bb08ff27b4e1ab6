package timing

import (
	"context"
	"errors"
	"time"
)

// DefaultTick is the poll granularity used while waiting out a countdown.
const DefaultTick = time.Millisecond

// Countdown measures elapsed time against a reference instant captured at
// construction. Waits compare against that fixed reference instead of
// summing individual sleeps, so per-iteration overhead never accumulates
// into the deadline. Extending a countdown moves the deadline relative to
// the same reference, which lets a sequence of waits absorb the overshoot
// of the previous one.
type Countdown struct {
	clock     Clock
	reference time.Time
	target    time.Duration
	tick      time.Duration
}

// NewCountdown captures the current instant from clock and arms a countdown
// that expires d after it.
func NewCountdown(clock Clock, d time.Duration) (*Countdown, error) {
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	return &Countdown{
		clock:     clock,
		reference: clock.Now(),
		target:    d,
		tick:      DefaultTick,
	}, nil
}

// SetTick overrides the poll granularity. Non-positive values restore the
// default.
func (c *Countdown) SetTick(tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTick
	}
	c.tick = tick
}

// Elapsed reports the time passed since the reference instant.
func (c *Countdown) Elapsed() time.Duration {
	return c.clock.Now().Sub(c.reference)
}

// Remaining reports the time left until expiry, clamped at zero.
func (c *Countdown) Remaining() time.Duration {
	remaining := c.target - c.Elapsed()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the target duration has fully elapsed.
func (c *Countdown) Expired() bool {
	return c.Remaining() <= 0
}

// Extend moves the deadline d further out relative to the original
// reference instant. Overshoot accrued by an earlier Wait is therefore
// absorbed by the next one instead of compounding.
func (c *Countdown) Extend(d time.Duration) {
	c.target += d
}

// Wait blocks until the countdown expires or ctx is canceled. It polls the
// clock once per tick and re-checks the fixed reference each pass, so the
// total block time tracks the target to within one tick regardless of how
// long each pass takes.
func (c *Countdown) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := c.Remaining()
		if remaining <= 0 {
			return nil
		}
		step := c.tick
		if remaining < step {
			step = remaining
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Wait blocks for d measured against clock. A non-positive d returns
// immediately. The elapsed check runs against the instant captured on
// entry, so splitting a long pause into several Wait calls does not stack
// the per-call overhead onto the pause itself.
func Wait(ctx context.Context, clock Clock, d time.Duration) error {
	countdown, err := NewCountdown(clock, d)
	if err != nil {
		return err
	}
	if d <= 0 {
		return ctx.Err()
	}
	return countdown.Wait(ctx)
}

// RunFor invokes fn repeatedly until d has elapsed since entry. The
// expiry check compares against the entry instant, so a slow fn shortens
// the number of invocations rather than stretching the window. fn errors
// and context cancellation stop the loop early.
func RunFor(ctx context.Context, clock Clock, d time.Duration, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("action is required")
	}
	countdown, err := NewCountdown(clock, d)
	if err != nil {
		return err
	}
	for !countdown.Expired() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}
