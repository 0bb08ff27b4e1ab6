package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"peira/internal/schedule"
)

func runSchedule(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	filePath := fs.String("file", "", "conditions table path (.csv, .yaml)")
	repeats := fs.Int("repeat", 1, "repeat the table N times")
	shuffle := fs.Bool("shuffle", false, "shuffle scored rows (seeded)")
	seed := fs.Int64("seed", 1, "shuffle rng seed")
	from := fs.Int("from", 0, "keep rows starting at this index")
	to := fs.Int("to", -1, "keep rows up to this index (exclusive; -1 keeps the rest)")
	limit := fs.Int("limit", 10, "max preview rows to print (<=0 for all)")
	csvOut := fs.Bool("csv", false, "emit the transformed table as CSV")
	jsonOut := fs.Bool("json", false, "emit the transformed table as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *filePath == "" {
		return fmt.Errorf("schedule requires --file")
	}

	table, err := loadTable(*filePath)
	if err != nil {
		return err
	}
	if *repeats > 1 {
		if err := schedule.Repeat(&table, *repeats); err != nil {
			return err
		}
	}
	if *shuffle {
		if err := schedule.Shuffle(&table, rand.New(rand.NewSource(*seed))); err != nil {
			return err
		}
	}
	if *from != 0 || *to >= 0 {
		end := *to
		if end < 0 {
			end = len(table.Rows)
		}
		if err := schedule.Slice(&table, *from, end); err != nil {
			return err
		}
	}
	if err := schedule.Validate(table); err != nil {
		return fmt.Errorf("validate table: %w", err)
	}

	if *csvOut {
		return schedule.WriteCSV(os.Stdout, table)
	}
	if *jsonOut {
		return printJSON(table)
	}

	fmt.Printf("table name=%s columns=%s rows=%d practice_end=%d\n",
		table.Info.Name,
		strings.Join(table.Columns, ","),
		len(table.Rows),
		table.Info.PracticeEnd,
	)
	for i, row := range table.Rows {
		if *limit > 0 && i >= *limit {
			fmt.Printf("... %d more rows\n", len(table.Rows)-i)
			break
		}
		phase := "scored"
		if i < table.Info.PracticeEnd {
			phase = "practice"
		}
		fmt.Printf("row=%d phase=%s %s\n", i, phase, strings.Join(row, " | "))
	}
	return nil
}

func loadTable(path string) (schedule.ConditionsTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schedule.ReadYAMLFile(path)
	default:
		return schedule.ReadCSVFile(path)
	}
}
