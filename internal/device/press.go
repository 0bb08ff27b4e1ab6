package device

import (
	"context"
	"errors"
	"time"

	"peira/internal/timing"
)

// ErrInputClosed reports that the input event stream ended before a complete
// press arrived.
var ErrInputClosed = errors.New("input event stream closed")

// WaitForPress blocks until any key is pressed and then released, returning
// the press event and the hold duration. Events carrying no device timestamp
// are stamped from the clock on arrival. A press of a second key while the
// first is held does not restart the wait.
func WaitForPress(ctx context.Context, in InputDevice, clock timing.Clock) (InputEvent, time.Duration, error) {
	if in == nil {
		return InputEvent{}, 0, errors.New("input device is required")
	}
	if clock == nil {
		return InputEvent{}, 0, errors.New("clock is required")
	}

	var press InputEvent
	pressed := false
	for {
		select {
		case <-ctx.Done():
			return InputEvent{}, 0, ctx.Err()
		case ev, ok := <-in.Events():
			if !ok {
				return InputEvent{}, 0, ErrInputClosed
			}
			if ev.At.IsZero() {
				ev.At = clock.Now()
			}
			if ev.Pressed {
				if !pressed {
					pressed = true
					press = ev
				}
				continue
			}
			if pressed && ev.Key == press.Key {
				return press, ev.At.Sub(press.At), nil
			}
		}
	}
}
