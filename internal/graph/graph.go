// Package graph provides a dependency graph for task scheduling.
package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ShayCichocki/swarm/pkg/models"
)

var (
	// ErrCycleDetected indicates a circular dependency was found in the task graph.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrUnknownDependency indicates a task depends on an ID that is not in the plan.
	// Only returned in strict mode.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrDuplicateTask indicates two tasks share an ID.
	ErrDuplicateTask = errors.New("duplicate task id")
)

// CycleError reports the dependency path that closes a cycle.
type CycleError struct {
	Path []int
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("%s: %s", ErrCycleDetected.Error(), strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// Option configures a DependencyGraph.
type Option func(*DependencyGraph)

// WithStrictDependencies makes Build reject dependencies on unknown task IDs
// instead of treating them as already satisfied.
func WithStrictDependencies(strict bool) Option {
	return func(g *DependencyGraph) { g.strict = strict }
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(g *DependencyGraph) {
		if fn != nil {
			g.debugLog = fn
		}
	}
}

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[int]*models.Task
	// order preserves the input order of task IDs.
	order []int
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[int][]int
	// dangling maps task ID to dependency IDs that reference no task.
	dangling map[int][]int
	strict   bool
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New(opts ...Option) *DependencyGraph {
	g := &DependencyGraph{
		nodes:    make(map[int]*models.Task),
		edges:    make(map[int][]int),
		dangling: make(map[int][]int),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Build constructs the dependency graph from a slice of tasks.
// Returns an error on duplicate IDs, on a cycle, or (strict mode only) on
// dependencies that reference unknown tasks.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return fmt.Errorf("%w: %d", ErrDuplicateTask, task.ID)
		}
		g.nodes[task.ID] = task
		g.order = append(g.order, task.ID)
		g.edges[task.ID] = nil
	}

	// Second pass: build edges from Dependencies.
	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				if g.strict {
					return fmt.Errorf("task %d depends on task %d: %w", task.ID, depID, ErrUnknownDependency)
				}
				g.debugLog("[graph.Build] task %d: ignoring dangling dependency %d", task.ID, depID)
				g.dangling[task.ID] = append(g.dangling[task.ID], depID)
				continue
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if path := g.findCycleLocked(); path != nil {
		return &CycleError{Path: path}
	}

	g.debugLog("[graph.Build] graph built successfully with %d nodes", len(g.nodes))
	return nil
}

// findCycleLocked runs a coloured depth-first search and returns the path of
// the first back edge found, or nil. Assumes the lock is held.
func (g *DependencyGraph) findCycleLocked() []int {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[int]int, len(g.nodes))

	var visit func(id int, path []int) []int
	visit = func(id int, path []int) []int {
		colors[id] = 1
		path = append(path, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				start := 0
				for i, p := range path {
					if p == depID {
						start = i
						break
					}
				}
				cycle := append([]int{}, path[start:]...)
				return append(cycle, depID)
			case 0:
				if c := visit(depID, path); c != nil {
					return c
				}
			}
		}

		colors[id] = 2
		return nil
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if c := visit(id, nil); c != nil {
				return c
			}
		}
	}
	return nil
}

// TopologicalSort returns task IDs in an order where all dependencies
// come before the tasks that depend on them. Ties follow input order.
func (g *DependencyGraph) TopologicalSort() ([]int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if path := g.findCycleLocked(); path != nil {
		return nil, &CycleError{Path: path}
	}

	visited := make(map[int]bool, len(g.nodes))
	result := make([]int, 0, len(g.nodes))

	var visit func(id int)
	visit = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true

		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}

	return result, nil
}

// GetTask returns the task for a given ID, or nil if not found.
func (g *DependencyGraph) GetTask(taskID int) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the resolved dependency IDs of a task, in declared order.
// Dangling dependencies are not included.
func (g *DependencyGraph) GetDependencies(taskID int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]int(nil), g.edges[taskID]...)
}

// GetDangling returns dependency IDs of a task that reference no task in the graph.
func (g *DependencyGraph) GetDangling(taskID int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]int(nil), g.dangling[taskID]...)
}

// GetDependents returns the IDs of tasks that directly depend on the given task.
func (g *DependencyGraph) GetDependents(taskID int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []int
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}
