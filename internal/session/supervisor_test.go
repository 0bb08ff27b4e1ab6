package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"peira/internal/device"
)

func TestSupervisorRestartsFailingPump(t *testing.T) {
	supervisor := NewSupervisor(SupervisorPolicy{
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  1,
	})
	var calls atomic.Int32
	failures := int32(2)
	run := func(ctx context.Context) error {
		call := calls.Add(1)
		if call <= failures {
			return errors.New("boom")
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if err := supervisor.Start("restarting", run); err != nil {
		t.Fatalf("start pump: %v", err)
	}
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if calls.Load() >= 3 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected pump restarts to reach at least 3 calls, got=%d", calls.Load())
	}
	supervisor.StopAll()
	if len(supervisor.ActivePumps()) != 0 {
		t.Fatalf("expected no active pumps after stop all, got=%v", supervisor.ActivePumps())
	}
}

func TestSupervisorStopsPumpByName(t *testing.T) {
	supervisor := NewSupervisor(SupervisorPolicy{
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  1,
	})
	stopped := make(chan struct{})
	if err := supervisor.Start("named-stop", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}); err != nil {
		t.Fatalf("start pump: %v", err)
	}
	supervisor.Stop("named-stop")
	select {
	case <-stopped:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected supervised pump to stop after named stop")
	}
	if len(supervisor.ActivePumps()) != 0 {
		t.Fatalf("expected no active pumps after named stop, got=%v", supervisor.ActivePumps())
	}
}

func TestSupervisorRejectsDuplicatePumpName(t *testing.T) {
	supervisor := NewSupervisor(SupervisorPolicy{})
	if err := supervisor.Start("dup", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}); err != nil {
		t.Fatalf("start pump: %v", err)
	}
	if err := supervisor.Start("dup", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected duplicate pump name to fail")
	}
	supervisor.StopAll()
}

func TestSupervisorFailureHook(t *testing.T) {
	failures := make(chan struct {
		name      string
		restarts  int
		errString string
	}, 1)
	supervisor := NewSupervisorWithHooks(SupervisorPolicy{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
		MaxRestarts:    1,
	}, SupervisorHooks{
		OnPumpFailure: func(name string, err error, restartCount int) {
			failures <- struct {
				name      string
				restarts  int
				errString string
			}{
				name:      name,
				restarts:  restartCount,
				errString: err.Error(),
			}
		},
	})
	if err := supervisor.Start("permanent", func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("start pump: %v", err)
	}
	select {
	case failure := <-failures:
		if failure.name != "permanent" {
			t.Fatalf("unexpected failed pump name: %s", failure.name)
		}
		if failure.restarts != 1 {
			t.Fatalf("expected restart count 1, got=%d", failure.restarts)
		}
		if failure.errString != "boom" {
			t.Fatalf("unexpected failure error string: %s", failure.errString)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected pump failure hook callback")
	}
	supervisor.StopAll()
}

func TestSupervisorRestartHook(t *testing.T) {
	var restartCount atomic.Int32
	supervisor := NewSupervisorWithHooks(SupervisorPolicy{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1,
		MaxRestarts:    2,
	}, SupervisorHooks{
		OnPumpRestart: func(string, error, int) {
			restartCount.Add(1)
		},
	})
	if err := supervisor.Start("restart-hook", func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("start pump: %v", err)
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if restartCount.Load() >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if restartCount.Load() < 2 {
		t.Fatalf("expected at least 2 restart callbacks, got=%d", restartCount.Load())
	}
	supervisor.StopAll()
}

func TestSupervisorPumpDrainsInputDevice(t *testing.T) {
	keypad := device.NewSimKeypad()
	if err := keypad.Open(context.Background()); err != nil {
		t.Fatalf("open keypad: %v", err)
	}
	base := time.Unix(300, 0)
	if err := keypad.Script(
		device.InputEvent{Key: "1", Pressed: true, At: base},
		device.InputEvent{Key: "2", Pressed: true, At: base.Add(time.Second)},
	); err != nil {
		t.Fatalf("script keypad: %v", err)
	}

	var mu sync.Mutex
	var keys []string
	supervisor := NewSupervisor(SupervisorPolicy{})
	err := supervisor.StartPump(PumpSpec{Restart: RestartTemporary}, keypad, func(_ context.Context, ev device.InputEvent) error {
		mu.Lock()
		keys = append(keys, ev.Key)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("start pump: %v", err)
	}

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(keys)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	mu.Lock()
	got := append([]string(nil), keys...)
	mu.Unlock()
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected pumped keys: %v", got)
	}
	if pumps := supervisor.ActivePumps(); len(pumps) != 1 || pumps[0] != device.SimKeypadName {
		t.Fatalf("expected active pump named after the device, got=%v", pumps)
	}
	supervisor.StopAll()
}

func TestSupervisorPumpExitsWhenStreamCloses(t *testing.T) {
	keypad := device.NewSimKeypad()
	if err := keypad.Open(context.Background()); err != nil {
		t.Fatalf("open keypad: %v", err)
	}
	supervisor := NewSupervisor(SupervisorPolicy{})
	err := supervisor.StartPump(PumpSpec{Name: "drain", Restart: RestartTemporary}, keypad, func(context.Context, device.InputEvent) error {
		return nil
	})
	if err != nil {
		t.Fatalf("start pump: %v", err)
	}
	if err := keypad.Close(context.Background()); err != nil {
		t.Fatalf("close keypad: %v", err)
	}
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(supervisor.ActivePumps()) == 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if pumps := supervisor.ActivePumps(); len(pumps) != 0 {
		t.Fatalf("expected pump to exit after stream close, got=%v", pumps)
	}
}

func TestSupervisorPumpNotifiesStreamEnd(t *testing.T) {
	keypad := device.NewSimKeypad()
	if err := keypad.Open(context.Background()); err != nil {
		t.Fatalf("open keypad: %v", err)
	}
	ended := make(chan struct{})
	supervisor := NewSupervisor(SupervisorPolicy{})
	spec := PumpSpec{
		Name:        "drain",
		Restart:     RestartTemporary,
		OnStreamEnd: func() { close(ended) },
	}
	err := supervisor.StartPump(spec, keypad, func(context.Context, device.InputEvent) error {
		return nil
	})
	if err != nil {
		t.Fatalf("start pump: %v", err)
	}
	if err := keypad.Close(context.Background()); err != nil {
		t.Fatalf("close keypad: %v", err)
	}
	select {
	case <-ended:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("expected stream-end notification after device close")
	}
	supervisor.StopAll()
}

func TestSupervisorStartPumpValidatesArguments(t *testing.T) {
	supervisor := NewSupervisor(SupervisorPolicy{})
	if err := supervisor.StartPump(PumpSpec{Name: "p"}, nil, func(context.Context, device.InputEvent) error { return nil }); err == nil {
		t.Fatal("expected nil input device to fail")
	}
	if err := supervisor.StartPump(PumpSpec{Name: "p"}, device.NewSimKeypad(), nil); err == nil {
		t.Fatal("expected nil handler to fail")
	}
}
