package paradigm

import (
	"context"
	"errors"
	"testing"
	"time"

	"peira/internal/device"
)

func TestPumpedCollectorDeliversFedEvents(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Unix(500, 0)}
	col := NewPumpedCollector(clock, 4)

	at := time.Unix(500, 1)
	if err := col.Feed(ctx, device.InputEvent{Key: "space", Pressed: true, At: at}); err != nil {
		t.Fatalf("feed stamped event: %v", err)
	}
	if err := col.Feed(ctx, device.InputEvent{Key: "return", Pressed: true}); err != nil {
		t.Fatalf("feed unstamped event: %v", err)
	}

	ev, err := col.NextEvent(ctx)
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	if ev.Key != "space" || !ev.Pressed || !ev.At.Equal(at) {
		t.Fatalf("unexpected first event: %+v", ev)
	}
	ev, err = col.NextEvent(ctx)
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	if ev.Key != "return" || !ev.At.Equal(clock.now) {
		t.Fatalf("expected arrival stamp %v, got %+v", clock.now, ev)
	}
}

func TestPumpedCollectorDrainsBufferAfterCloseFeed(t *testing.T) {
	ctx := context.Background()
	col := NewPumpedCollector(nil, 4)

	if err := col.Feed(ctx, device.InputEvent{Key: "1", Pressed: true}); err != nil {
		t.Fatalf("feed: %v", err)
	}
	col.CloseFeed()
	col.CloseFeed()

	ev, err := col.NextEvent(ctx)
	if err != nil {
		t.Fatalf("expected buffered event after close, got %v", err)
	}
	if ev.Key != "1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if _, err := col.NextEvent(ctx); !errors.Is(err, device.ErrInputClosed) {
		t.Fatalf("expected closed stream error, got %v", err)
	}
	if err := col.Feed(ctx, device.InputEvent{Key: "2", Pressed: true}); !errors.Is(err, device.ErrInputClosed) {
		t.Fatalf("expected feed after close to fail, got %v", err)
	}
}

func TestPumpedCollectorHonorsCanceledContext(t *testing.T) {
	col := NewPumpedCollector(nil, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := col.NextEvent(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestPumpedCollectorBlocksFeedUntilConsumed(t *testing.T) {
	ctx := context.Background()
	col := NewPumpedCollector(nil, 1)

	if err := col.Feed(ctx, device.InputEvent{Key: "1", Pressed: true}); err != nil {
		t.Fatalf("feed: %v", err)
	}
	fed := make(chan error, 1)
	go func() {
		fed <- col.Feed(ctx, device.InputEvent{Key: "2", Pressed: true})
	}()

	select {
	case err := <-fed:
		t.Fatalf("feed must block on a full buffer, returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if ev, err := col.NextEvent(ctx); err != nil || ev.Key != "1" {
		t.Fatalf("next event: ev=%+v err=%v", ev, err)
	}
	if err := <-fed; err != nil {
		t.Fatalf("blocked feed: %v", err)
	}
	if ev, err := col.NextEvent(ctx); err != nil || ev.Key != "2" {
		t.Fatalf("next event: ev=%+v err=%v", ev, err)
	}
}
