package audit

import (
	"fmt"
	"testing"
	"time"
)

func quietTrail(warnings *[]string) *Trail {
	return NewTrail(WithWarnFunc(func(format string, args ...any) {
		if warnings != nil {
			*warnings = append(*warnings, fmt.Sprintf(format, args...))
		}
	}))
}

func TestDrift(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"buy milk", "purchase dairy", 100},
		{"buy milk", "BUY Milk", 0},
		{"buy milk", "buy milk today", 33},
		{"a b c d", "a b", 50},
		{"", "", 0},
		{"", "something", 100},
		{"go go go", "go", 0},
	}

	for _, tt := range tests {
		if got := Drift(tt.a, tt.b); got != tt.want {
			t.Errorf("Drift(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTrail_RecordTransformation(t *testing.T) {
	var warnings []string
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	trail := NewTrail(
		WithClock(func() time.Time { return fixed }),
		WithWarnFunc(func(format string, args ...any) {
			warnings = append(warnings, fmt.Sprintf(format, args...))
		}),
	)
	trail.Initialize("buy milk")

	entry := trail.RecordTransformation("X", "rewrite", "purchase dairy")

	if entry.DriftScore != 100 {
		t.Errorf("DriftScore = %d, want 100", entry.DriftScore)
	}
	if entry.Before != "buy milk" || entry.After != "purchase dairy" {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", entry.Timestamp, fixed)
	}
	if trail.Current() != "purchase dairy" {
		t.Errorf("Current = %q", trail.Current())
	}
	if len(warnings) != 1 {
		t.Errorf("expected one drift warning, got %d", len(warnings))
	}
}

func TestTrail_TotalDriftIsNotASum(t *testing.T) {
	trail := quietTrail(nil)
	trail.Initialize("buy milk")
	trail.RecordTransformation("a", "rewrite", "purchase dairy")
	trail.RecordTransformation("b", "revert", "buy milk")

	if got := trail.TotalDrift(); got != 0 {
		t.Errorf("TotalDrift = %d, want 0 (original vs latest)", got)
	}

	entries := trail.Transformations()
	if len(entries) != 2 {
		t.Fatalf("len(Transformations) = %d, want 2", len(entries))
	}
	if entries[1].Before != "purchase dairy" {
		t.Errorf("second entry Before = %q, want previous current", entries[1].Before)
	}
}

func TestTrail_ValidateIntent(t *testing.T) {
	tests := []struct {
		name    string
		rewrite string
		want    bool
	}{
		{"unchanged", "summarize the quarterly sales report", true},
		{"mild rewrite", "summarize the quarterly sales report briefly", true},
		{"disjoint", "write a poem about cats", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trail := quietTrail(nil)
			trail.Initialize("summarize the quarterly sales report")
			trail.RecordTransformation("planner", "restate", tt.rewrite)

			got := trail.ValidateIntent(DefaultMaxDrift)
			if got != tt.want {
				t.Errorf("ValidateIntent = %v, want %v (drift %d)", got, tt.want, trail.TotalDrift())
			}
			if got != (trail.TotalDrift() <= DefaultMaxDrift) {
				t.Error("ValidateIntent disagrees with TotalDrift threshold")
			}
		})
	}
}

func TestTrail_InitializeDiscards(t *testing.T) {
	trail := quietTrail(nil)
	trail.Initialize("first")
	trail.RecordTransformation("x", "y", "second")
	trail.Initialize("fresh")

	state := trail.State()
	if state.OriginalPrompt != "fresh" || state.CurrentPrompt != "fresh" {
		t.Errorf("state = %+v", state)
	}
	if len(state.Transformations) != 0 {
		t.Errorf("Initialize should discard transformations, have %d", len(state.Transformations))
	}
}

func TestTrail_NoWarningBelowThreshold(t *testing.T) {
	var warnings []string
	trail := quietTrail(&warnings)
	trail.Initialize("one two three four")
	trail.RecordTransformation("x", "y", "one two three five")

	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}
