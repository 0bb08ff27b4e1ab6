package schedule

import (
	"fmt"
	"strings"
)

type TableInfoPatch struct {
	Name        *string
	Trials      *int
	PracticeEnd *int
	Infer       bool
}

func ApplyTableInfoPatch(table *ConditionsTable, patch TableInfoPatch) error {
	if table == nil {
		return fmt.Errorf("conditions table is required")
	}
	if patch.Infer {
		inferTableInfo(table)
	}
	if patch.Name != nil {
		table.Info.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Trials != nil {
		table.Info.Trials = *patch.Trials
	}
	if patch.PracticeEnd != nil {
		table.Info.PracticeEnd = *patch.PracticeEnd
	}
	return validateTableInfo(*table)
}

func inferTableInfo(table *ConditionsTable) {
	if table.Info.Name == "" {
		table.Info.Name = "conditions"
	}
	total := len(table.Rows)
	if table.Info.Trials == 0 || table.Info.Trials > total {
		table.Info.Trials = total
	}
	if table.Info.PracticeEnd > total {
		table.Info.PracticeEnd = total
	}
}

func validateTableInfo(table ConditionsTable) error {
	if table.Info.Name == "" {
		return fmt.Errorf("conditions table name is required")
	}
	total := len(table.Rows)
	if table.Info.Trials < 0 || table.Info.Trials > total {
		return fmt.Errorf("table info trials out of range: %d (rows=%d)", table.Info.Trials, total)
	}
	if table.Info.PracticeEnd < 0 || table.Info.PracticeEnd > total {
		return fmt.Errorf("table info practice_end out of range: %d (rows=%d)", table.Info.PracticeEnd, total)
	}
	return nil
}
