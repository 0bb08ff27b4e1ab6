package schedule

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnsupportedSchedule = errors.New("unsupported schedule document")

// ReadYAML decodes a schedule document. Rows may be cell lists in column
// order or maps keyed by column name.
func ReadYAML(in io.Reader) (ConditionsTable, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return ConditionsTable{}, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ConditionsTable{}, fmt.Errorf("decode schedule yaml: %w", err)
	}
	if doc == nil {
		return ConditionsTable{}, fmt.Errorf("%w: empty document", ErrUnsupportedSchedule)
	}
	return ConvertTable(doc)
}

func ReadYAMLFile(path string) (ConditionsTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return ConditionsTable{}, err
	}
	defer f.Close()
	return ReadYAML(f)
}

// ConvertTable builds a conditions table from a decoded schedule map.
// Unknown keys are ignored; known keys with the wrong shape are errors.
func ConvertTable(in map[string]any) (ConditionsTable, error) {
	table := ConditionsTable{}
	var rowsVal any
	haveRows := false
	for key, val := range in {
		switch key {
		case "name":
			s, ok := asString(val)
			if !ok {
				return ConditionsTable{}, fmt.Errorf("%w: name must be a string", ErrUnsupportedSchedule)
			}
			table.Info.Name = strings.TrimSpace(s)
		case "trials":
			n, ok := asInt(val)
			if !ok {
				return ConditionsTable{}, fmt.Errorf("%w: trials must be an integer", ErrUnsupportedSchedule)
			}
			table.Info.Trials = n
		case "practice_end":
			n, ok := asInt(val)
			if !ok {
				return ConditionsTable{}, fmt.Errorf("%w: practice_end must be an integer", ErrUnsupportedSchedule)
			}
			table.Info.PracticeEnd = n
		case "columns":
			cols, ok := asStrings(val)
			if !ok {
				return ConditionsTable{}, fmt.Errorf("%w: columns must be a string list", ErrUnsupportedSchedule)
			}
			for i := range cols {
				cols[i] = strings.ToLower(strings.TrimSpace(cols[i]))
			}
			table.Columns = cols
		case "rows", "conditions":
			rowsVal = val
			haveRows = true
		}
	}

	if haveRows {
		columns, rows, err := asConditionRows(rowsVal, table.Columns)
		if err != nil {
			return ConditionsTable{}, err
		}
		table.Columns = columns
		table.Rows = rows
	}

	if table.Info.Name == "" {
		table.Info.Name = "conditions"
	}
	if table.Info.Trials == 0 {
		table.Info.Trials = len(table.Rows)
	}
	if err := Validate(table); err != nil {
		return ConditionsTable{}, err
	}
	return table, nil
}

// asConditionRows decodes the row list. List rows require columns to be
// declared up front; map rows can derive them from the first row's sorted
// keys.
func asConditionRows(v any, columns []string) ([]string, [][]string, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: rows must be a list", ErrUnsupportedSchedule)
	}

	cols := append([]string(nil), columns...)
	rows := make([][]string, 0, len(raw))
	for i, item := range raw {
		switch x := item.(type) {
		case []any:
			if len(cols) == 0 {
				return nil, nil, fmt.Errorf("%w: list rows need a columns entry", ErrUnsupportedSchedule)
			}
			if len(x) != len(cols) {
				return nil, nil, fmt.Errorf("schedule row %d has %d cells, want %d", i+1, len(x), len(cols))
			}
			row := make([]string, len(x))
			for j, cell := range x {
				s, sok := asScalarString(cell)
				if !sok {
					return nil, nil, fmt.Errorf("schedule row %d column %s is not a scalar", i+1, cols[j])
				}
				row[j] = strings.TrimSpace(s)
			}
			rows = append(rows, row)
		case map[string]any:
			m := normalizeRowKeys(x)
			if len(cols) == 0 {
				cols = sortedKeys(m)
			}
			if len(m) != len(cols) {
				return nil, nil, fmt.Errorf("schedule row %d columns do not match the table", i+1)
			}
			row := make([]string, len(cols))
			for j, col := range cols {
				cell, ok := m[col]
				if !ok {
					return nil, nil, fmt.Errorf("schedule row %d missing column %s", i+1, col)
				}
				s, sok := asScalarString(cell)
				if !sok {
					return nil, nil, fmt.Errorf("schedule row %d column %s is not a scalar", i+1, col)
				}
				row[j] = strings.TrimSpace(s)
			}
			rows = append(rows, row)
		default:
			return nil, nil, fmt.Errorf("%w: row %d is neither list nor map", ErrUnsupportedSchedule, i+1)
		}
	}
	return cols, rows, nil
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	default:
		return "", false
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case float32:
		return int(x), true
	default:
		return 0, false
	}
}

func asStrings(v any) ([]string, bool) {
	switch xs := v.(type) {
	case []string:
		return append([]string(nil), xs...), true
	case []any:
		out := make([]string, 0, len(xs))
		for _, item := range xs {
			s, ok := asString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// asScalarString renders YAML scalar cells the way they would appear in a
// CSV conditions file.
func asScalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	default:
		return "", false
	}
}

func normalizeRowKeys(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, val := range in {
		out[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return out
}

func sortedKeys(in map[string]any) []string {
	keys := make([]string, 0, len(in))
	for key := range in {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
