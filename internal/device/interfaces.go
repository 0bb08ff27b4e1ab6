package device

import (
	"context"
	"errors"
	"time"
)

// ErrNotOpen is returned by device operations invoked before Open or after
// Close.
var ErrNotOpen = errors.New("device not open")

// Marker is a single event code pushed to recording hardware at a trial or
// stimulus boundary.
type Marker struct {
	Code  int
	Label string
}

type Device interface {
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

type OutputDevice interface {
	Device
	Emit(ctx context.Context, marker Marker) error
}

// InputEvent is one phase of a subject action. Press and release arrive as
// separate events.
type InputEvent struct {
	Key     string
	Pressed bool
	At      time.Time
}

type InputDevice interface {
	Device
	Events() <-chan InputEvent
	Flush()
}

// PortConfigurer is an optional output capability for devices driven over a
// serial port.
type PortConfigurer interface {
	ConfigurePort(port string, baud int) error
}

// LineSetter is an optional output capability for devices that pulse a
// digital line.
type LineSetter interface {
	SetLine(line int, width time.Duration) error
}

// Latencied is an optional output capability reporting the nominal transport
// latency of emitted markers.
type Latencied interface {
	Latency() time.Duration
}

// MarkerLog is an optional output capability used by tests and diagnostics to
// inspect emitted markers.
type MarkerLog interface {
	Emitted() []Marker
}
