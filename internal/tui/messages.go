package tui

import (
	"time"

	"github.com/ShayCichocki/swarm/pkg/models"
)

// TaskInfo describes one planned task.
type TaskInfo struct {
	ID           int
	Role         models.Role
	Instruction  string
	Dependencies []int
}

// PlanMsg is sent once the plan is known.
type PlanMsg struct {
	Tasks    []TaskInfo
	Fallback bool
}

// PhaseMsg is sent when the run enters a new phase.
type PhaseMsg struct {
	Phase string
}

// TaskMsg reports a task status change.
type TaskMsg struct {
	ID      int
	Role    models.Role
	Status  models.TaskStatus
	Attempt int
	Error   string
}

// LogMsg adds a line to the activity log.
type LogMsg struct {
	Timestamp time.Time
	Message   string
	Error     bool
}

// DoneMsg marks the run as finished.
type DoneMsg struct {
	Success bool
	Message string
}
