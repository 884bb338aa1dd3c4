package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/internal/decompose"
	"github.com/ShayCichocki/swarm/internal/graph"
)

// Phase is a stage of an orchestration run. Phases only move forward.
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseExecuting    Phase = "executing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseDone         Phase = "done"
)

func (p Phase) rank() int {
	switch p {
	case PhasePlanning:
		return 0
	case PhaseExecuting:
		return 1
	case PhaseSynthesizing:
		return 2
	case PhaseDone:
		return 3
	}
	return -1
}

// ErrorKind classifies failures at a phase boundary.
type ErrorKind string

const (
	// ErrorKindPlanParse means the planner's output was unusable. Recovered by
	// the single-task fallback plan.
	ErrorKindPlanParse ErrorKind = "plan_parse"
	// ErrorKindBackend means an agent call failed.
	ErrorKindBackend ErrorKind = "backend"
	// ErrorKindCyclicDependency means the plan's dependency graph has a cycle. Fatal.
	ErrorKindCyclicDependency ErrorKind = "cyclic_dependency"
	// ErrorKindUnknownDependency means a task depends on a missing task in strict mode. Fatal.
	ErrorKindUnknownDependency ErrorKind = "unknown_dependency"
	// ErrorKindFormatValidation means the answer did not match the output format.
	ErrorKindFormatValidation ErrorKind = "format_validation"
	// ErrorKindIntentDrift means the objective drifted past the allowed bound.
	ErrorKindIntentDrift ErrorKind = "intent_drift"
	// ErrorKindCancelled means the run was cancelled or stopped.
	ErrorKindCancelled ErrorKind = "cancelled"
	// ErrorKindInternal covers anything unexpected, including recovered panics.
	ErrorKindInternal ErrorKind = "internal"
)

// Fatal reports whether a failure of this kind ends the run.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrorKindCyclicDependency, ErrorKindUnknownDependency, ErrorKindCancelled, ErrorKindInternal:
		return true
	}
	return false
}

// PhaseError is a failure observed at a phase boundary.
type PhaseError struct {
	Phase Phase
	Kind  ErrorKind
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Phase, e.Kind, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// MarshalJSON renders the error message in place of the wrapped error value.
func (e *PhaseError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Phase Phase     `json:"phase"`
		Kind  ErrorKind `json:"kind"`
		Error string    `json:"error"`
	}{e.Phase, e.Kind, msg})
}

// PhaseResult is the outcome of one phase: a value or a classified error.
type PhaseResult[T any] struct {
	Value T
	Err   *PhaseError
}

// OK reports whether the phase succeeded.
func (r PhaseResult[T]) OK() bool { return r.Err == nil }

func ok[T any](v T) PhaseResult[T] {
	return PhaseResult[T]{Value: v}
}

// failed carries perr along with whatever partial value the phase produced.
func failed[T any](v T, perr *PhaseError) PhaseResult[T] {
	return PhaseResult[T]{Value: v, Err: perr}
}

// classify wraps err in a PhaseError of the matching kind.
func classify(phase Phase, err error) *PhaseError {
	kind := ErrorKindInternal
	var be *agent.BackendError

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrStopped):
		kind = ErrorKindCancelled
	case errors.Is(err, graph.ErrCycleDetected):
		kind = ErrorKindCyclicDependency
	case errors.Is(err, graph.ErrUnknownDependency):
		kind = ErrorKindUnknownDependency
	case errors.Is(err, decompose.ErrPlanParse), errors.Is(err, graph.ErrDuplicateTask):
		kind = ErrorKindPlanParse
	case errors.As(err, &be), errors.Is(err, decompose.ErrPlanRequest):
		kind = ErrorKindBackend
	}
	return &PhaseError{Phase: phase, Kind: kind, Err: err}
}
