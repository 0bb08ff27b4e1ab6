package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"peira/internal/model"
)

func TestDecodeSessionFixture(t *testing.T) {
	path := fixturePath("minimal_session_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	session, err := DecodeSession(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if session.ID != "session-minimal-1" {
		t.Fatalf("unexpected session id: %s", session.ID)
	}
	if session.Paradigm != "rating" {
		t.Fatalf("unexpected paradigm: %s", session.Paradigm)
	}
}

func TestJitterPlanCodecRoundTrip(t *testing.T) {
	input := model.JitterPlanRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "jp1",
		Distribution:    "geometric",
		Mean:            4,
		Min:             2,
		Max:             10,
		Tolerance:       0.25,
		Discrete:        true,
		Seed:            7919,
		Attempts:        12,
		Values:          []float64{3, 4, 5, 4},
	}

	encoded, err := EncodeJitterPlan(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeJitterPlan(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", decoded, input)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	stale := model.SessionRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "session-stale",
	}
	encoded, err := EncodeSession(stale)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeSession(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestResponsesCodecRejectsStaleEntry(t *testing.T) {
	responses := []model.ResponseRecord{
		{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
			SessionID:       "s1",
			Trial:           0,
			Rating:          5,
			RTSeconds:       0.75,
		},
		{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion + 5},
			SessionID:       "s1",
			Trial:           1,
			Rating:          6,
			RTSeconds:       0.5,
		},
	}
	encoded, err := EncodeResponses(responses)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeResponses(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
