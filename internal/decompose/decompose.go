// Package decompose turns an objective into a dependency-ordered plan of agent tasks.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/internal/graph"
	"github.com/ShayCichocki/swarm/internal/validation"
	"github.com/ShayCichocki/swarm/pkg/models"
)

// PlanFormat is the shape a planning response is checked against before parsing.
var PlanFormat = validation.FormatSpec{
	Type: validation.FormatJSON,
	Schema: &validation.JSONSchema{
		RootType:       "object",
		RequiredFields: []string{"tasks"},
		FieldTypes: map[string]string{
			"objective": "string",
			"tasks":     "array",
		},
	},
}

// ErrPlanRequest marks a failed call to the planning agent.
var ErrPlanRequest = errors.New("request plan")

// Planner asks a planning-capable agent for a plan.
type Planner struct {
	backend  agent.Backend
	parser   PlanParser
	role     models.Role
	strict   bool
	debugLog func(format string, args ...interface{})
}

// Option configures a Planner.
type Option func(*Planner)

// WithParser replaces the default LenientParser.
func WithParser(p PlanParser) Option {
	return func(pl *Planner) {
		if p != nil {
			pl.parser = p
		}
	}
}

// WithStrictDependencies rejects plans whose tasks depend on unknown ids.
func WithStrictDependencies(strict bool) Option {
	return func(pl *Planner) { pl.strict = strict }
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(pl *Planner) {
		if fn != nil {
			pl.debugLog = fn
		}
	}
}

// New creates a Planner that sends planning requests to backend as the coordinator.
func New(backend agent.Backend, opts ...Option) *Planner {
	p := &Planner{
		backend:  backend,
		parser:   LenientParser{},
		role:     models.RoleCoordinator,
		debugLog: func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prompt returns the planning prompt for objective.
func Prompt(objective string) string {
	names := make([]string, 0, len(models.Roles()))
	for _, r := range models.Roles() {
		names = append(names, string(r))
	}
	return fmt.Sprintf(planningPrompt, objective, strings.Join(names, ", "))
}

// Plan requests and parses a plan for objective.
//
// Errors wrap the cause so callers can tell them apart: backend failures
// (ErrPlanRequest, usually with an *agent.BackendError), unusable responses (ErrPlanParse), cycles
// (graph.ErrCycleDetected) and, in strict mode, dangling dependencies
// (graph.ErrUnknownDependency). Choosing a fallback is up to the caller.
func (p *Planner) Plan(ctx context.Context, objective string) (*models.Plan, error) {
	response, err := p.backend.Invoke(ctx, p.role, Prompt(objective), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanRequest, err)
	}
	p.debugLog("[decompose] planning response: %d chars", len(response))

	if payload, err := ExtractObject(response); err == nil {
		if check := validation.Validate(payload, PlanFormat); !check.Valid {
			for _, e := range check.Errors {
				p.debugLog("[decompose] plan format: %s", e.Error())
			}
		}
	}

	plan, err := p.parser.Parse(response)
	if err != nil {
		return nil, err
	}
	if plan.Objective == "" {
		plan.Objective = objective
	}

	if err := Check(plan, p.strict); err != nil {
		return nil, err
	}

	p.debugLog("[decompose] plan has %d tasks", len(plan.Tasks))
	return plan, nil
}

// Check verifies a plan's dependency graph: ids are unique, there is no
// cycle and, when strict, every dependency names a task in the plan.
func Check(plan *models.Plan, strict bool) error {
	g := graph.New(graph.WithStrictDependencies(strict))
	if err := g.Build(plan.Tasks); err != nil {
		return fmt.Errorf("validate dependencies: %w", err)
	}
	return nil
}
