package models

import "testing"

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"running is valid", TaskStatusRunning, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("unknown"), false},
		{"typo status is invalid", TaskStatus("pendingg"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	if TaskStatusPending.Terminal() || TaskStatusRunning.Terminal() {
		t.Error("pending and running should not be terminal")
	}
	if !TaskStatusCompleted.Terminal() || !TaskStatusFailed.Terminal() {
		t.Error("completed and failed should be terminal")
	}
}

func TestPlan_Task(t *testing.T) {
	plan := &Plan{
		Objective: "ship it",
		Tasks: []*Task{
			{ID: 1, Instruction: "first"},
			{ID: 7, Instruction: "second"},
		},
	}

	if got := plan.Task(7); got == nil || got.Instruction != "second" {
		t.Errorf("Task(7) = %+v, want instruction %q", got, "second")
	}
	if got := plan.Task(3); got != nil {
		t.Errorf("Task(3) = %+v, want nil", got)
	}

	var nilPlan *Plan
	if nilPlan.Task(1) != nil {
		t.Error("nil plan should return nil task")
	}
}

func TestSuccessCount(t *testing.T) {
	results := []ExecutionResult{
		{TaskID: 1, Success: true},
		{TaskID: 2, Success: false},
		{TaskID: 3, Success: true},
	}
	if got := SuccessCount(results); got != 2 {
		t.Errorf("SuccessCount = %d, want 2", got)
	}
	if got := SuccessCount(nil); got != 0 {
		t.Errorf("SuccessCount(nil) = %d, want 0", got)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Role
		wantOK bool
	}{
		{"exact", "coder", RoleCoder, true},
		{"upper case", "RESEARCHER", RoleResearcher, true},
		{"mixed case with spaces", "  Analyst ", RoleAnalyst, true},
		{"unknown", "wizard", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveRole_FallsBackToDefault(t *testing.T) {
	if got := ResolveRole("wizard"); got != DefaultRole {
		t.Errorf("ResolveRole(unknown) = %q, want %q", got, DefaultRole)
	}
	if got := ResolveRole(""); got != DefaultRole {
		t.Errorf("ResolveRole(empty) = %q, want %q", got, DefaultRole)
	}
	if got := ResolveRole("Writer"); got != RoleWriter {
		t.Errorf("ResolveRole(Writer) = %q, want %q", got, RoleWriter)
	}
}

func TestRoles_AllValid(t *testing.T) {
	for _, r := range Roles() {
		if !r.Valid() {
			t.Errorf("role %q from Roles() is not valid", r)
		}
	}
	if !DefaultRole.Valid() {
		t.Error("DefaultRole must be valid")
	}
}
