package storage

import (
	"context"
	"testing"

	"peira/internal/model"
)

func TestMemoryStoreTrialRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for i := 0; i < 3; i++ {
		trial := model.TrialRecord{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
			SessionID:       "s1",
			Index:           i,
			ITISeconds:      float64(i) + 2,
			Stimulus:        model.StimulusRecord{Kind: "rating-prompt"},
		}
		if err := store.SaveTrial(ctx, trial); err != nil {
			t.Fatalf("save trial %d: %v", i, err)
		}
	}

	trials, ok, err := store.GetTrials(ctx, "s1")
	if err != nil {
		t.Fatalf("get trials: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted trials")
	}
	if len(trials) != 3 {
		t.Fatalf("trial count mismatch: got=%d want=%d", len(trials), 3)
	}
	if trials[2].ITISeconds != 4 {
		t.Fatalf("unexpected trial: %+v", trials[2])
	}
}

func TestMemoryStoreSaveTrialReplacesSameIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	first := model.TrialRecord{SessionID: "s1", Index: 0, ITISeconds: 2}
	second := model.TrialRecord{SessionID: "s1", Index: 0, ITISeconds: 5}
	if err := store.SaveTrial(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveTrial(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	trials, ok, err := store.GetTrials(ctx, "s1")
	if err != nil {
		t.Fatalf("get trials: %v", err)
	}
	if !ok || len(trials) != 1 {
		t.Fatalf("expected one trial, got %d", len(trials))
	}
	if trials[0].ITISeconds != 5 {
		t.Fatalf("expected replacement, got %+v", trials[0])
	}
}

func TestMemoryStoreJitterPlanDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	values := []float64{2, 3, 4}
	plan := model.JitterPlanRecord{ID: "jp1", Distribution: "uniform", Values: values}
	if err := store.SaveJitterPlan(ctx, plan); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	values[0] = 99
	loaded, ok, err := store.GetJitterPlan(ctx, "jp1")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted plan")
	}
	if loaded.Values[0] != 2 {
		t.Fatalf("stored values aliased caller slice: %+v", loaded.Values)
	}

	loaded.Values[1] = 77
	again, _, err := store.GetJitterPlan(ctx, "jp1")
	if err != nil {
		t.Fatalf("get plan again: %v", err)
	}
	if again.Values[1] != 3 {
		t.Fatalf("returned values aliased stored slice: %+v", again.Values)
	}
}

func TestMemoryStoreListSessionsSortedByStart(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	early := model.SessionRecord{ID: "s-early", StartedAtUTC: "2026-03-01T09:00:00Z"}
	late := model.SessionRecord{ID: "s-late", StartedAtUTC: "2026-03-02T09:00:00Z"}
	if err := store.SaveSession(ctx, early); err != nil {
		t.Fatalf("save early: %v", err)
	}
	if err := store.SaveSession(ctx, late); err != nil {
		t.Fatalf("save late: %v", err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("session count mismatch: got=%d want=%d", len(sessions), 2)
	}
	if sessions[0].ID != "s-late" || sessions[1].ID != "s-early" {
		t.Fatalf("unexpected order: %s, %s", sessions[0].ID, sessions[1].ID)
	}
}
