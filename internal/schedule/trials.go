package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"peira/internal/model"
)

// MaxTimeColumn names the reserved column parsed into each trial's
// response deadline instead of its condition map.
const MaxTimeColumn = "max_time"

// PhaseKey marks warm-up trials in the condition map so the plan survives
// serialization without extra fields. Scored trials carry no phase entry.
const (
	PhaseKey      = "phase"
	PracticePhase = "practice"
)

// BuildTrials zips the table's condition rows with an inter-trial interval
// sequence. The iti count must match the row count exactly, so a jitter
// plan cannot silently drift from the schedule it was made for.
func BuildTrials(table ConditionsTable, itis []float64) ([]model.TrialPlan, error) {
	if err := Validate(table); err != nil {
		return nil, err
	}
	if len(itis) != len(table.Rows) {
		return nil, fmt.Errorf("iti count %d does not match trial count %d", len(itis), len(table.Rows))
	}
	for i, iti := range itis {
		if iti < 0 {
			return nil, fmt.Errorf("iti %d is negative: %f", i, iti)
		}
	}

	plans := make([]model.TrialPlan, 0, len(table.Rows))
	for i, row := range table.Rows {
		plan := model.TrialPlan{
			Index:      i,
			ITISeconds: itis[i],
		}
		condition := make(map[string]string, len(table.Columns)+1)
		for j, col := range table.Columns {
			if col == MaxTimeColumn {
				maxTime, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
				if err != nil {
					return nil, fmt.Errorf("parse %s for trial %d: %w", MaxTimeColumn, i, err)
				}
				if maxTime < 0 {
					return nil, fmt.Errorf("%s for trial %d is negative: %f", MaxTimeColumn, i, maxTime)
				}
				plan.MaxTimeSeconds = maxTime
				continue
			}
			condition[col] = row[j]
		}
		if i < table.Info.PracticeEnd {
			condition[PhaseKey] = PracticePhase
		}
		if len(condition) > 0 {
			plan.Condition = condition
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
