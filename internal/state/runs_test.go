package state

import (
	"testing"
	"time"
)

func sampleRun(id string, started time.Time) *RunRecord {
	finished := started.Add(3 * time.Second)
	valid := true
	return &RunRecord{
		ID:            id,
		Objective:     "Compare Postgres and MySQL",
		PlanObjective: "Compare two relational databases",
		Answer:        "Postgres, mostly.",
		Status:        RunCompleted,
		Drift:         43,
		IntentOK:      true,
		FormatValid:   &valid,
		InputTokens:   1200,
		OutputTokens:  800,
		StartedAt:     started,
		FinishedAt:    &finished,
		Tasks: []TaskRecord{
			{TaskID: 1, Role: "researcher", Instruction: "Research", Dependencies: []int{}, Success: true, Content: "facts"},
			{TaskID: 2, Role: "analyst", Instruction: "Compare", Dependencies: []int{1}, Success: false, Error: "quota", RetryCount: 2},
		},
		Transformations: []TransformationRecord{
			{Source: "planner", Reason: "restated", Before: "Compare Postgres and MySQL", After: "Compare two relational databases", DriftScore: 43, CreatedAt: started},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	if err := db.SaveRun(sampleRun("run-1", started)); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}

	if got.Objective != "Compare Postgres and MySQL" || got.Status != RunCompleted {
		t.Errorf("run = %+v", got)
	}
	if got.FormatValid == nil || !*got.FormatValid {
		t.Errorf("FormatValid = %v, want true", got.FormatValid)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.FinishedAt == nil || got.FinishedAt.Sub(started) != 3*time.Second {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}

	if len(got.Tasks) != 2 {
		t.Fatalf("len(Tasks) = %d, want 2", len(got.Tasks))
	}
	if got.Tasks[1].Error != "quota" || got.Tasks[1].RetryCount != 2 || got.Tasks[1].Success {
		t.Errorf("task 2 = %+v", got.Tasks[1])
	}
	if len(got.Tasks[1].Dependencies) != 1 || got.Tasks[1].Dependencies[0] != 1 {
		t.Errorf("task 2 dependencies = %v", got.Tasks[1].Dependencies)
	}

	if len(got.Transformations) != 1 || got.Transformations[0].DriftScore != 43 {
		t.Errorf("Transformations = %+v", got.Transformations)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetRun("missing")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func TestSaveRun_Replaces(t *testing.T) {
	db := setupTestDB(t)
	started := time.Now()

	run := sampleRun("run-1", started)
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	run.Answer = "MySQL after all."
	run.Tasks = run.Tasks[:1]
	run.FormatValid = nil
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("second SaveRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Answer != "MySQL after all." || len(got.Tasks) != 1 {
		t.Errorf("run was not replaced: %+v", got)
	}
	if got.FormatValid != nil {
		t.Errorf("FormatValid = %v, want nil", *got.FormatValid)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := db.SaveRun(sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("runs = %s, %s; want newest first", runs[0].ID, runs[1].ID)
	}
	if runs[0].Tasks != nil {
		t.Error("ListRuns should not load tasks")
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns(0) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)

	if err := db.SaveRun(sampleRun("old", time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveRun(sampleRun("new", time.Now())); err != nil {
		t.Fatal(err)
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}

	var orphans int
	if err := db.QueryRow("SELECT COUNT(*) FROM task_results WHERE run_id = 'old'").Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("%d task results left for purged run", orphans)
	}

	if got, _ := db.GetRun("new"); got == nil {
		t.Error("recent run should survive the purge")
	}
}
