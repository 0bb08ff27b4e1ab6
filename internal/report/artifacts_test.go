package report

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"peira/internal/model"
	"peira/internal/storage"
)

func TestWriteAndExportSessionArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	sessionID := "run-123"
	artifacts := SessionArtifacts{
		Session: model.SessionRecord{
			ID:           sessionID,
			Paradigm:     "detection",
			Rig:          "trigger",
			Seed:         7,
			StartedAtUTC: "2026-03-01T10:00:00Z",
		},
		Summary: model.RunSummary{
			SessionID:     sessionID,
			Trials:        2,
			Responses:     2,
			MeanRTSeconds: 0.3,
		},
		Trials: []model.TrialRecord{
			{SessionID: sessionID, Index: 0, OnsetUTC: "2026-03-01T10:00:01Z", Stimulus: model.StimulusRecord{Kind: "target", Payload: "X", Marker: 10}},
			{SessionID: sessionID, Index: 1, OnsetUTC: "2026-03-01T10:00:03Z", Stimulus: model.StimulusRecord{Kind: "target", Payload: "O", Marker: 10}},
		},
		Responses: []model.ResponseRecord{
			{SessionID: sessionID, Trial: 0, RTSeconds: 0.2, Key: "space"},
			{SessionID: sessionID, Trial: 1, RTSeconds: 0.4, Key: "space"},
		},
	}

	sessionDir, err := WriteSessionArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range []string{"session.json", "trials.csv", "responses.csv"} {
		if _, err := os.Stat(filepath.Join(sessionDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(sessionDir, "jitter.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no jitter artifact without a plan, err=%v", err)
	}

	exportedDir, err := ExportSessionArtifacts(baseDir, sessionID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range []string{"session.json", "trials.csv", "responses.csv"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	artifacts.JitterPlan = &model.JitterPlanRecord{
		ID:           "plan-1",
		Distribution: "uniform",
		Mean:         6,
		Min:          2,
		Max:          10,
		Values:       []float64{5, 7},
	}
	if _, err := WriteSessionArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts with jitter plan: %v", err)
	}

	exportedDirWithJitter, err := ExportSessionArtifacts(baseDir, sessionID, outDir)
	if err != nil {
		t.Fatalf("export artifacts with jitter plan: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportedDirWithJitter, "jitter.json")); err != nil {
		t.Fatalf("expected exported jitter plan: %v", err)
	}
}

func TestReadSessionArtifactsBack(t *testing.T) {
	baseDir := t.TempDir()
	sessionID := "run-read"
	artifacts := SessionArtifacts{
		Session: model.SessionRecord{ID: sessionID, Paradigm: "rating", StartedAtUTC: "2026-03-02T09:00:00Z"},
		Summary: model.RunSummary{SessionID: sessionID, Trials: 1, Responses: 1, MeanRTSeconds: 1.25},
		Trials: []model.TrialRecord{{
			SessionID:  sessionID,
			Index:      0,
			Condition:  map[string]string{"phase": "practice", "stimulus": "warm"},
			ITISeconds: 1.5,
			OnsetUTC:   "2026-03-02T09:00:02Z",
			Stimulus:   model.StimulusRecord{Kind: "scale", Payload: "warm", Marker: 120},
		}},
		Responses: []model.ResponseRecord{{
			SessionID: sessionID,
			Trial:     0,
			Rating:    6.5,
			RTSeconds: 1.25,
			Key:       "return",
			TimedOut:  true,
		}},
	}
	if _, err := WriteSessionArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	doc, ok, err := ReadSessionDocument(baseDir, sessionID)
	if err != nil || !ok {
		t.Fatalf("read session document: ok=%t err=%v", ok, err)
	}
	if doc.Session.Paradigm != "rating" || doc.Summary.MeanRTSeconds != 1.25 {
		t.Fatalf("unexpected session document: %+v", doc)
	}
	if _, ok, err := ReadSessionDocument(baseDir, "no-such-run"); err != nil || ok {
		t.Fatalf("expected missing document; ok=%t err=%v", ok, err)
	}

	trials, ok, err := ReadTrialsCSV(baseDir, sessionID)
	if err != nil || !ok {
		t.Fatalf("read trials: ok=%t err=%v", ok, err)
	}
	if len(trials) != 1 {
		t.Fatalf("expected 1 trial, got %d", len(trials))
	}
	trial := trials[0]
	if trial.Index != 0 || trial.ITISeconds != 1.5 || trial.OnsetUTC != "2026-03-02T09:00:02Z" {
		t.Fatalf("unexpected trial: %+v", trial)
	}
	if trial.Stimulus.Kind != "scale" || trial.Stimulus.Marker != 120 {
		t.Fatalf("unexpected trial stimulus: %+v", trial.Stimulus)
	}
	if trial.Condition["phase"] != "practice" || trial.Condition["stimulus"] != "warm" {
		t.Fatalf("unexpected trial condition: %+v", trial.Condition)
	}

	responses, ok, err := ReadResponsesCSV(baseDir, sessionID)
	if err != nil || !ok {
		t.Fatalf("read responses: ok=%t err=%v", ok, err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	response := responses[0]
	if response.Rating != 6.5 || response.RTSeconds != 1.25 || response.Key != "return" {
		t.Fatalf("unexpected response: %+v", response)
	}
	if !response.TimedOut || response.Skipped {
		t.Fatalf("unexpected response flags: %+v", response)
	}
}

func TestSessionDocumentCarriesStats(t *testing.T) {
	baseDir := t.TempDir()
	sessionID := "run-stats"
	artifacts := SessionArtifacts{
		Session: model.SessionRecord{ID: sessionID, Paradigm: "detection", StartedAtUTC: "2026-03-03T08:00:00Z"},
		Summary: model.RunSummary{SessionID: sessionID, Trials: 3, Responses: 2, Skipped: 1},
		Responses: []model.ResponseRecord{
			{SessionID: sessionID, Trial: 0, RTSeconds: 0.2, Key: "space"},
			{SessionID: sessionID, Trial: 1, RTSeconds: 0.4, Key: "space", TimedOut: true},
			{SessionID: sessionID, Trial: 2, Skipped: true},
		},
	}
	if _, err := WriteSessionArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	doc, ok, err := ReadSessionDocument(baseDir, sessionID)
	if err != nil || !ok {
		t.Fatalf("read session document: ok=%t err=%v", ok, err)
	}
	stats := doc.Stats
	if stats.Responses != 2 || stats.Skipped != 1 || stats.TimedOut != 1 {
		t.Fatalf("unexpected stats counts: %+v", stats)
	}
	closeTo := func(got, want float64) bool { return math.Abs(got-want) < 1e-9 }
	if !closeTo(stats.MeanRTSeconds, 0.3) || !closeTo(stats.StdRTSeconds, 0.1) {
		t.Fatalf("unexpected stats spread: %+v", stats)
	}
	if !closeTo(stats.MinRTSeconds, 0.2) || !closeTo(stats.MaxRTSeconds, 0.4) {
		t.Fatalf("unexpected stats extremes: %+v", stats)
	}
}

func TestCollectSessionArtifacts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}

	sessionID := "run-collect"
	if err := store.SaveSession(ctx, model.SessionRecord{ID: sessionID, Paradigm: "detection"}); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := store.SaveTrial(ctx, model.TrialRecord{SessionID: sessionID, Index: 0}); err != nil {
		t.Fatalf("save trial: %v", err)
	}
	if err := store.SaveResponse(ctx, model.ResponseRecord{SessionID: sessionID, Trial: 0, RTSeconds: 0.3}); err != nil {
		t.Fatalf("save response: %v", err)
	}
	if err := store.SaveRunSummary(ctx, model.RunSummary{SessionID: sessionID, Trials: 1, Responses: 1}); err != nil {
		t.Fatalf("save summary: %v", err)
	}

	artifacts, err := CollectSessionArtifacts(ctx, store, sessionID)
	if err != nil {
		t.Fatalf("collect artifacts: %v", err)
	}
	if artifacts.Session.Paradigm != "detection" {
		t.Fatalf("unexpected session: %+v", artifacts.Session)
	}
	if artifacts.Summary.Trials != 1 || len(artifacts.Trials) != 1 || len(artifacts.Responses) != 1 {
		t.Fatalf("unexpected artifact counts: %+v", artifacts)
	}

	if _, err := CollectSessionArtifacts(ctx, store, "no-such-run"); err == nil {
		t.Fatal("expected missing session to fail")
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		SessionID:     "run-1",
		Paradigm:      "detection",
		Rig:           "trigger",
		Seed:          1,
		Trials:        10,
		Responses:     9,
		MeanRTSeconds: 0.31,
		CreatedAtUTC:  "2026-03-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		SessionID:     "run-2",
		Paradigm:      "rating",
		Rig:           "keypad",
		Seed:          2,
		Trials:        8,
		Responses:     8,
		MeanRTSeconds: 1.02,
		CreatedAtUTC:  "2026-03-01T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SessionID != "run-2" || entries[1].SessionID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		SessionID:     "run-1",
		Paradigm:      "detection",
		Rig:           "trigger",
		Seed:          1,
		Trials:        10,
		Responses:     10,
		MeanRTSeconds: 0.29,
		CreatedAtUTC:  "2026-03-01T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].SessionID != "run-1" || entries[0].Responses != 10 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
}

func TestRunIndexOrdersParsedTimestamps(t *testing.T) {
	baseDir := t.TempDir()

	// "00.5Z" sorts after "00.55Z" lexically although it is the earlier
	// instant. The listing must order by parsed time.
	if err := AppendRunIndex(baseDir, RunIndexEntry{SessionID: "run-early", CreatedAtUTC: "2026-03-01T10:00:00.5Z"}); err != nil {
		t.Fatalf("append run-early: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{SessionID: "run-late", CreatedAtUTC: "2026-03-01T10:00:00.55Z"}); err != nil {
		t.Fatalf("append run-late: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{SessionID: "run-untimed", CreatedAtUTC: "not-a-timestamp"}); err != nil {
		t.Fatalf("append run-untimed: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].SessionID != "run-late" || entries[1].SessionID != "run-early" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[2].SessionID != "run-untimed" {
		t.Fatalf("expected unparseable timestamp last, got %+v", entries[2])
	}
}

func TestRunIndexEqualTimestampOrdersBySessionID(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-03-01T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{SessionID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{SessionID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SessionID != "run-a" || entries[1].SessionID != "run-b" {
		t.Fatalf("unexpected tie order: %+v", entries)
	}
}
