package schedule

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TableInfo describes a conditions table. PracticeEnd marks how many
// leading rows form the warm-up block; rows past it are scored.
type TableInfo struct {
	Name        string `json:"name"`
	Trials      int    `json:"trials,omitempty"`
	PracticeEnd int    `json:"practice_end,omitempty"`
}

// ConditionsTable holds one condition row per trial, keyed by the header
// columns.
type ConditionsTable struct {
	Info    TableInfo  `json:"info"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ReadCSV loads a conditions table with a header row. Column names are
// lowercased and trimmed, blank rows are skipped, and every remaining row
// must match the header arity.
func ReadCSV(in io.Reader, name string) (ConditionsTable, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return ConditionsTable{Info: TableInfo{Name: tableName(name)}}, nil
	}
	if err != nil {
		return ConditionsTable{}, fmt.Errorf("read conditions header: %w", err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		if col == "" {
			return ConditionsTable{}, fmt.Errorf("conditions column %d has no name", i+1)
		}
		if seen[col] {
			return ConditionsTable{}, fmt.Errorf("duplicate conditions column: %s", col)
		}
		seen[col] = true
		columns[i] = col
	}

	rows := make([][]string, 0, 64)
	rowIndex := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ConditionsTable{}, fmt.Errorf("read conditions row %d: %w", rowIndex, err)
		}
		if blankRecord(record) {
			continue
		}
		if len(record) != len(columns) {
			return ConditionsTable{}, fmt.Errorf("conditions row %d has %d fields, want %d", rowIndex, len(record), len(columns))
		}
		row := make([]string, len(record))
		for i, cell := range record {
			row[i] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
		rowIndex++
	}

	return ConditionsTable{
		Info:    TableInfo{Name: tableName(name), Trials: len(rows)},
		Columns: columns,
		Rows:    rows,
	}, nil
}

// ReadCSVFile loads a conditions table named after the file's base name.
func ReadCSVFile(path string) (ConditionsTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return ConditionsTable{}, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadCSV(f, name)
}

func WriteCSV(out io.Writer, table ConditionsTable) error {
	if len(table.Columns) == 0 {
		return fmt.Errorf("conditions table has no columns")
	}
	w := csv.NewWriter(out)
	if err := w.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Validate checks structural consistency: uniform row arity plus info
// bounds against the actual row count.
func Validate(table ConditionsTable) error {
	if len(table.Columns) == 0 && len(table.Rows) > 0 {
		return fmt.Errorf("conditions table has rows but no columns")
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return fmt.Errorf("conditions row %d has %d fields, want %d", i+1, len(row), len(table.Columns))
		}
	}
	return validateTableInfo(table)
}

func tableName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "conditions"
	}
	return name
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
