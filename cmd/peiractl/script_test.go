package main

import (
	"reflect"
	"testing"

	peiraapi "peira/pkg/peira"
)

func TestParseScript(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []peiraapi.KeyPress
	}{
		{name: "empty", raw: "", want: nil},
		{name: "bare keys", raw: "space,space", want: []peiraapi.KeyPress{
			{Key: "space"},
			{Key: "space"},
		}},
		{name: "offsets and holds", raw: "a@0.5,b@1.25+0.1", want: []peiraapi.KeyPress{
			{Key: "a", AtSeconds: 0.5},
			{Key: "b", AtSeconds: 1.25, HoldSeconds: 0.1},
		}},
		{name: "hold without offset", raw: "space@+0.2", want: []peiraapi.KeyPress{
			{Key: "space", HoldSeconds: 0.2},
		}},
		{name: "ignores blank entries", raw: " space , ,j ", want: []peiraapi.KeyPress{
			{Key: "space"},
			{Key: "j"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseScript(tc.raw)
			if err != nil {
				t.Fatalf("parse script: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestParseScriptRejectsMalformedEntries(t *testing.T) {
	for _, raw := range []string{"@0.5", "a@bad", "a@1+bad"} {
		if _, err := parseScript(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestSplitKeys(t *testing.T) {
	if got := splitKeys(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	got := splitKeys(" space, j ,k")
	want := []string{"space", "j", "k"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestKeyForInput(t *testing.T) {
	cases := map[string]string{
		"l":      "left",
		"LEFT":   "left",
		"r":      "right",
		"":       "return",
		"accept": "return",
		"s":      "tab",
		"skip":   "tab",
		"4":      "4",
	}
	for in, want := range cases {
		if got := keyForInput(in); got != want {
			t.Fatalf("keyForInput(%q) = %q, want %q", in, got, want)
		}
	}
}
