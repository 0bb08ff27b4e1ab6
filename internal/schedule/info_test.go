package schedule

import "testing"

func TestApplyTableInfoPatch(t *testing.T) {
	table := ConditionsTable{
		Columns: []string{"prompt"},
		Rows:    [][]string{{"a"}, {"b"}, {"c"}},
	}
	name := "fear-ratings"
	practice := 1
	err := ApplyTableInfoPatch(&table, TableInfoPatch{
		Name:        &name,
		PracticeEnd: &practice,
		Infer:       true,
	})
	if err != nil {
		t.Fatalf("apply patch: %v", err)
	}
	if table.Info.Name != "fear-ratings" || table.Info.Trials != 3 || table.Info.PracticeEnd != 1 {
		t.Fatalf("unexpected info: %+v", table.Info)
	}
}

func TestApplyTableInfoPatchValidation(t *testing.T) {
	table := ConditionsTable{
		Info:    TableInfo{Name: "t", Trials: 2},
		Columns: []string{"prompt"},
		Rows:    [][]string{{"a"}, {"b"}},
	}
	bad := 9
	if err := ApplyTableInfoPatch(&table, TableInfoPatch{PracticeEnd: &bad}); err == nil {
		t.Fatal("expected error for out-of-range practice_end")
	}
	if err := ApplyTableInfoPatch(nil, TableInfoPatch{}); err == nil {
		t.Fatal("expected error for nil table")
	}
}

func TestInferFillsDefaults(t *testing.T) {
	table := ConditionsTable{}
	if err := ApplyTableInfoPatch(&table, TableInfoPatch{Infer: true}); err != nil {
		t.Fatalf("apply patch: %v", err)
	}
	if table.Info.Name != "conditions" || table.Info.Trials != 0 {
		t.Fatalf("unexpected inferred info: %+v", table.Info)
	}
}
