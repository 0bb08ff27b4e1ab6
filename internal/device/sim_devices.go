package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	SimTriggerName = "sim-trigger"
	SimDAQName     = "sim-daq"
	SimKeypadName  = "sim-keypad"
)

const (
	DefaultTriggerPort    = "sim0"
	DefaultTriggerBaud    = 115200
	DefaultTriggerLatency = time.Millisecond
	DefaultDAQPulseWidth  = 5 * time.Millisecond

	simKeypadBuffer = 64
)

// SimTrigger stands in for a serial trigger box: markers written to it are
// retained for inspection instead of leaving the process.
type SimTrigger struct {
	mu      sync.RWMutex
	port    string
	baud    int
	latency time.Duration
	open    bool
	emitted []Marker
}

func NewSimTrigger() *SimTrigger {
	return &SimTrigger{
		port:    DefaultTriggerPort,
		baud:    DefaultTriggerBaud,
		latency: DefaultTriggerLatency,
	}
}

func (t *SimTrigger) Name() string {
	return SimTriggerName
}

func (t *SimTrigger) Open(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return fmt.Errorf("%s already open", SimTriggerName)
	}
	t.open = true
	return nil
}

func (t *SimTrigger) Close(_ context.Context) error {
	t.mu.Lock()
	t.open = false
	t.mu.Unlock()
	return nil
}

func (t *SimTrigger) Emit(_ context.Context, marker Marker) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return fmt.Errorf("%w: %s", ErrNotOpen, SimTriggerName)
	}
	t.emitted = append(t.emitted, marker)
	return nil
}

func (t *SimTrigger) Emitted() []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Marker(nil), t.emitted...)
}

func (t *SimTrigger) ConfigurePort(port string, baud int) error {
	if strings.TrimSpace(port) == "" {
		return errors.New("port is required")
	}
	if baud <= 0 {
		return fmt.Errorf("baud must be positive, got=%d", baud)
	}
	t.mu.Lock()
	t.port = port
	t.baud = baud
	t.mu.Unlock()
	return nil
}

func (t *SimTrigger) Port() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.port
}

func (t *SimTrigger) Baud() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baud
}

func (t *SimTrigger) Latency() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latency
}

// SimDAQ stands in for a digital acquisition card pulsing one line per
// marker.
type SimDAQ struct {
	mu      sync.RWMutex
	line    int
	width   time.Duration
	open    bool
	emitted []Marker
}

func NewSimDAQ() *SimDAQ {
	return &SimDAQ{width: DefaultDAQPulseWidth}
}

func (d *SimDAQ) Name() string {
	return SimDAQName
}

func (d *SimDAQ) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return fmt.Errorf("%s already open", SimDAQName)
	}
	d.open = true
	return nil
}

func (d *SimDAQ) Close(_ context.Context) error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

func (d *SimDAQ) Emit(_ context.Context, marker Marker) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return fmt.Errorf("%w: %s", ErrNotOpen, SimDAQName)
	}
	d.emitted = append(d.emitted, marker)
	return nil
}

func (d *SimDAQ) Emitted() []Marker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Marker(nil), d.emitted...)
}

func (d *SimDAQ) SetLine(line int, width time.Duration) error {
	if line < 0 {
		return fmt.Errorf("line must be non-negative, got=%d", line)
	}
	if width <= 0 {
		return fmt.Errorf("pulse width must be positive, got=%s", width)
	}
	d.mu.Lock()
	d.line = line
	d.width = width
	d.mu.Unlock()
	return nil
}

func (d *SimDAQ) Line() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.line
}

func (d *SimDAQ) PulseWidth() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.width
}

// SimKeypad is a scripted input source. Tests and demos enqueue events ahead
// of a trial and the consumer drains them through Events.
type SimKeypad struct {
	mu     sync.Mutex
	events chan InputEvent
	open   bool
	closed bool
}

func NewSimKeypad() *SimKeypad {
	return &SimKeypad{events: make(chan InputEvent, simKeypadBuffer)}
}

func (k *SimKeypad) Name() string {
	return SimKeypadName
}

func (k *SimKeypad) Open(_ context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("%s cannot reopen after close", SimKeypadName)
	}
	if k.open {
		return fmt.Errorf("%s already open", SimKeypadName)
	}
	k.open = true
	return nil
}

func (k *SimKeypad) Close(_ context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.open = false
	k.closed = true
	close(k.events)
	return nil
}

func (k *SimKeypad) Events() <-chan InputEvent {
	return k.events
}

func (k *SimKeypad) Flush() {
	for {
		select {
		case _, ok := <-k.events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Script enqueues events for later consumption. Scripting before Open is
// allowed so a trial can be preloaded.
func (k *SimKeypad) Script(events ...InputEvent) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("%w: %s", ErrNotOpen, SimKeypadName)
	}
	for _, ev := range events {
		select {
		case k.events <- ev:
		default:
			return fmt.Errorf("%s event buffer full", SimKeypadName)
		}
	}
	return nil
}

// Press enqueues a press and its matching release separated by hold.
func (k *SimKeypad) Press(key string, at time.Time, hold time.Duration) error {
	return k.Script(
		InputEvent{Key: key, Pressed: true, At: at},
		InputEvent{Key: key, Pressed: false, At: at.Add(hold)},
	)
}

func init() {
	initializeDefaultDevices()
}

func initializeDefaultDevices() {
	err := RegisterOutputWithSpec(OutputSpec{
		Name:          SimTriggerName,
		Factory:       func() OutputDevice { return NewSimTrigger() },
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(paradigm string) error {
			switch paradigm {
			case "rating", "detection":
				return nil
			}
			return fmt.Errorf("unsupported paradigm: %s", paradigm)
		},
	})
	if err != nil {
		panic(err)
	}
	err = RegisterOutputWithSpec(OutputSpec{
		Name:          SimDAQName,
		Factory:       func() OutputDevice { return NewSimDAQ() },
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(paradigm string) error {
			if paradigm != "detection" {
				return fmt.Errorf("unsupported paradigm: %s", paradigm)
			}
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
	err = RegisterInputWithSpec(InputSpec{
		Name:          SimKeypadName,
		Factory:       func() InputDevice { return NewSimKeypad() },
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(paradigm string) error {
			switch paradigm {
			case "rating", "detection":
				return nil
			}
			return fmt.Errorf("unsupported paradigm: %s", paradigm)
		},
	})
	if err != nil {
		panic(err)
	}
}
