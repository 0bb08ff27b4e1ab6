package schedule

import (
	"errors"
	"strings"
	"testing"
)

func TestReadYAMLWithListRows(t *testing.T) {
	doc := `
name: thermal
practice_end: 1
columns: [Prompt, intensity]
rows:
  - ["How warm?", low]
  - ["How warm?", high]
`
	table, err := ReadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("read yaml: %v", err)
	}
	if table.Info.Name != "thermal" || table.Info.Trials != 2 || table.Info.PracticeEnd != 1 {
		t.Fatalf("unexpected info: %+v", table.Info)
	}
	if len(table.Columns) != 2 || table.Columns[0] != "prompt" {
		t.Fatalf("expected normalized columns, got %v", table.Columns)
	}
	if table.Rows[1][1] != "high" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}
}

func TestReadYAMLWithMapRows(t *testing.T) {
	doc := `
name: faces
conditions:
  - prompt: How pleasant?
    stimulus: face01
    max_time: 4
  - prompt: How pleasant?
    stimulus: face02
    max_time: 4.5
`
	table, err := ReadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("read yaml: %v", err)
	}
	// Derived columns come back sorted.
	if len(table.Columns) != 3 || table.Columns[0] != "max_time" || table.Columns[2] != "stimulus" {
		t.Fatalf("unexpected derived columns: %v", table.Columns)
	}
	if table.Rows[0][0] != "4" || table.Rows[1][0] != "4.5" {
		t.Fatalf("expected scalar cells rendered as strings, got %v", table.Rows)
	}
	if table.Rows[1][2] != "face02" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}
}

func TestReadYAMLRejectsMalformedDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{name: "rows not a list", doc: "name: x\nrows: nope\n"},
		{name: "scalar row", doc: "name: x\ncolumns: [a]\nrows:\n  - just-a-string\n"},
		{name: "list rows without columns", doc: "name: x\nrows:\n  - [a, b]\n"},
		{name: "cell arity mismatch", doc: "name: x\ncolumns: [a, b]\nrows:\n  - [only]\n"},
		{name: "map row missing column", doc: "name: x\ncolumns: [a, b]\nrows:\n  - a: 1\n"},
		{name: "non-string name", doc: "name: 7\n"},
		{name: "practice_end out of range", doc: "name: x\ncolumns: [a]\npractice_end: 7\nrows:\n  - [v]\n"},
	}
	for _, tc := range cases {
		if _, err := ReadYAML(strings.NewReader(tc.doc)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}

	if _, err := ReadYAML(strings.NewReader("")); !errors.Is(err, ErrUnsupportedSchedule) {
		t.Fatalf("expected unsupported document error, got %v", err)
	}
}

func TestConvertTableIgnoresUnknownKeys(t *testing.T) {
	table, err := ConvertTable(map[string]any{
		"name":     "probe",
		"author":   "someone",
		"columns":  []any{"prompt"},
		"rows":     []any{[]any{"How bad?"}},
		"comments": []any{"ignored"},
	})
	if err != nil {
		t.Fatalf("convert table: %v", err)
	}
	if table.Info.Name != "probe" || len(table.Rows) != 1 {
		t.Fatalf("unexpected table: %+v", table)
	}
}
