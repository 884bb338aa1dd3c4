package orchestrator

import (
	"time"

	"github.com/ShayCichocki/swarm/pkg/models"
)

// EventType represents the type of orchestrator event.
// The values match the kinds a streaming front end forwards to its clients.
type EventType string

const (
	// EventPlan is emitted once planning has produced a plan.
	EventPlan EventType = "plan"
	// EventChunk carries a finished task's content.
	EventChunk EventType = "chunk"
	// EventResult is the terminal event of a successful run.
	EventResult EventType = "result"
	// EventError is the terminal event of a run that could not produce an answer.
	EventError EventType = "error"
	// EventStatus reports progress: phase changes, task starts, retries and failures.
	EventStatus EventType = "status"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run the event belongs to.
	RunID string
	// Phase is the orchestrator phase when the event was emitted.
	Phase Phase
	// TaskID is the ID of the related task, if applicable.
	TaskID int
	// Role is the persona of the related task, if applicable.
	Role models.Role
	// Status is the task status after this event, if applicable.
	Status models.TaskStatus
	// Attempt is the 1-indexed attempt number for task events.
	Attempt int
	// Message provides additional context about the event.
	Message string
	// Content is the task output (chunk) or final answer (result).
	Content string
	// Plan is set on plan events.
	Plan *models.Plan
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
