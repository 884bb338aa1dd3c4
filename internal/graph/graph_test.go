package graph

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/swarm/pkg/models"
)

func task(id int, deps ...int) *models.Task {
	return &models.Task{ID: id, Instruction: "task", Dependencies: deps, Status: models.TaskStatusPending}
}

func indexOf(order []int, id int) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestGraphBuildWithDependencies(t *testing.T) {
	g := New()
	err := g.Build([]*models.Task{task(1), task(2, 1), task(3, 1, 2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := g.GetDependencies(3); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for task 3, got %d", len(deps))
	}
	if dependents := g.GetDependents(1); len(dependents) != 2 {
		t.Errorf("expected 2 dependents of task 1, got %d", len(dependents))
	}
	if g.GetTask(2) == nil {
		t.Error("expected task 2 to be registered")
	}
}

func TestGraphBuildDuplicateID(t *testing.T) {
	g := New()
	err := g.Build([]*models.Task{task(1), task(1)})
	if !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestGraphDanglingDependencyLenient(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Task{task(1, 99), task(2, 1)}); err != nil {
		t.Fatalf("lenient build should ignore dangling deps, got %v", err)
	}

	if got := g.GetDangling(1); len(got) != 1 || got[0] != 99 {
		t.Errorf("GetDangling(1) = %v, want [99]", got)
	}
	if got := g.GetDependencies(1); len(got) != 0 {
		t.Errorf("dangling dependency should not become an edge, got %v", got)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 {
		t.Errorf("expected 2 tasks in order, got %v", order)
	}
}

func TestGraphDanglingDependencyStrict(t *testing.T) {
	g := New(WithStrictDependencies(true))
	err := g.Build([]*models.Task{task(1, 99)})
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestGraphCycleDetection(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
	}{
		{"direct", []*models.Task{task(1, 2), task(2, 1)}},
		{"self", []*models.Task{task(1, 1)}},
		{"indirect", []*models.Task{task(1, 3), task(2, 1), task(3, 2)}},
		{"behind acyclic prefix", []*models.Task{task(1), task(2, 1, 4), task(3, 2), task(4, 3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			err := g.Build(tt.tasks)
			if !errors.Is(err, ErrCycleDetected) {
				t.Fatalf("expected ErrCycleDetected, got %v", err)
			}

			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected *CycleError, got %T", err)
			}
			if len(cycleErr.Path) < 2 {
				t.Fatalf("cycle path too short: %v", cycleErr.Path)
			}
			if first, last := cycleErr.Path[0], cycleErr.Path[len(cycleErr.Path)-1]; first != last {
				t.Errorf("cycle path should start and end on the same task, got %v", cycleErr.Path)
			}
		})
	}
}

func TestTopologicalSortRespectsDependencies(t *testing.T) {
	tasks := []*models.Task{
		task(5, 3, 4),
		task(4, 2),
		task(3, 1, 2),
		task(2, 1),
		task(1),
		task(6),
	}
	g := New()
	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != len(tasks) {
		t.Fatalf("expected %d ids, got %v", len(tasks), order)
	}

	for _, tk := range tasks {
		pos := indexOf(order, tk.ID)
		for _, dep := range tk.Dependencies {
			if indexOf(order, dep) > pos {
				t.Errorf("task %d ordered before its dependency %d: %v", tk.ID, dep, order)
			}
		}
	}
}

func TestTopologicalSortSharedDependencyVisitedOnce(t *testing.T) {
	// Diamond: 1 <- 2, 1 <- 3, {2,3} <- 4
	g := New()
	if err := g.Build([]*models.Task{task(4, 2, 3), task(2, 1), task(3, 1), task(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[int]int)
	for _, id := range order {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("task %d appears %d times in %v", id, n, order)
		}
	}
	if order[0] != 1 || order[len(order)-1] != 4 {
		t.Errorf("expected 1 first and 4 last, got %v", order)
	}
}

func TestTopologicalSortIndependentTasksKeepInputOrder(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Task{task(3), task(1), task(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order, _ := g.TopologicalSort()
	want := []int{3, 1, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
