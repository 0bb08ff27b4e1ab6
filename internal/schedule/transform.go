package schedule

import (
	"fmt"
	"math/rand"
)

// Repeat appends further full copies of the row sequence until it appears
// n times, the way a block design repeats its trial list.
func Repeat(table *ConditionsTable, n int) error {
	if table == nil {
		return fmt.Errorf("conditions table is required")
	}
	if n <= 0 {
		return fmt.Errorf("repeat count must be positive, got=%d", n)
	}

	base := table.Rows
	rows := make([][]string, 0, len(base)*n)
	for i := 0; i < n; i++ {
		for _, row := range base {
			rows = append(rows, append([]string(nil), row...))
		}
	}
	table.Rows = rows
	table.Info.Trials = len(rows)
	return nil
}

// Shuffle permutes the warm-up block and the scored block independently,
// so practice rows stay in front. The caller seeds the source, which keeps
// orders reproducible per session.
func Shuffle(table *ConditionsTable, rng *rand.Rand) error {
	if table == nil {
		return fmt.Errorf("conditions table is required")
	}
	if rng == nil {
		return fmt.Errorf("shuffle source is required")
	}

	cut := table.Info.PracticeEnd
	if cut < 0 {
		cut = 0
	}
	if cut > len(table.Rows) {
		cut = len(table.Rows)
	}
	shuffleRows(table.Rows[:cut], rng)
	shuffleRows(table.Rows[cut:], rng)
	return nil
}

func shuffleRows(rows [][]string, rng *rand.Rand) {
	rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})
}

// Slice keeps rows [from, to) and shifts the practice boundary with them.
func Slice(table *ConditionsTable, from, to int) error {
	if table == nil {
		return fmt.Errorf("conditions table is required")
	}
	if from < 0 || to > len(table.Rows) || from > to {
		return fmt.Errorf("slice bounds out of range: [%d, %d) with %d rows", from, to, len(table.Rows))
	}

	rows := make([][]string, 0, to-from)
	for _, row := range table.Rows[from:to] {
		rows = append(rows, append([]string(nil), row...))
	}
	table.Rows = rows
	table.Info.Trials = len(rows)

	practice := table.Info.PracticeEnd - from
	if practice < 0 {
		practice = 0
	}
	if practice > len(rows) {
		practice = len(rows)
	}
	table.Info.PracticeEnd = practice
	return nil
}
