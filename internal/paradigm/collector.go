package paradigm

import (
	"context"
	"sync"

	"peira/internal/device"
	"peira/internal/timing"
)

const defaultPumpBuffer = 16

// PumpedCollector receives subject events drained by a supervised device
// pump and hands them to the trial loop. Feed matches the session pump
// handler signature; CloseFeed marks the stream ended once the pump sees
// the device close.
type PumpedCollector struct {
	clock  timing.Clock
	events chan device.InputEvent
	done   chan struct{}
	once   sync.Once
}

func NewPumpedCollector(clock timing.Clock, buffer int) *PumpedCollector {
	if clock == nil {
		clock = timing.SystemClock{}
	}
	if buffer <= 0 {
		buffer = defaultPumpBuffer
	}
	return &PumpedCollector{
		clock:  clock,
		events: make(chan device.InputEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Feed queues one pumped event. Events carrying no device timestamp are
// stamped on arrival, not on consumption.
func (c *PumpedCollector) Feed(ctx context.Context, ev device.InputEvent) error {
	if ev.At.IsZero() {
		ev.At = c.clock.Now()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return device.ErrInputClosed
	case c.events <- ev:
		return nil
	}
}

// CloseFeed marks the event stream ended. Events already buffered still
// drain before NextEvent reports device.ErrInputClosed. Safe to call more
// than once.
func (c *PumpedCollector) CloseFeed() {
	c.once.Do(func() { close(c.done) })
}

func (c *PumpedCollector) NextEvent(ctx context.Context) (device.InputEvent, error) {
	select {
	case <-ctx.Done():
		return device.InputEvent{}, ctx.Err()
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		select {
		case ev := <-c.events:
			return ev, nil
		default:
			return device.InputEvent{}, device.ErrInputClosed
		}
	}
}
