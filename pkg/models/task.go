package models

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is being worked on by an agent.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true once the task can no longer change state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents a unit of work within a plan.
type Task struct {
	// ID is unique within a plan.
	ID int `json:"id"`
	// Role is the persona the task is assigned to.
	Role Role `json:"agent"`
	// Instruction is what the agent is asked to do.
	Instruction string `json:"task"`
	// Dependencies lists task IDs that must finish before this task.
	Dependencies []int `json:"dependencies"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// RetryCount is the number of times this task has been retried.
	RetryCount int `json:"retry_count,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
}

// Plan is a dependency graph of tasks produced for a single objective.
type Plan struct {
	// Objective is the objective the plan addresses.
	Objective string `json:"objective"`
	// Tasks is the ordered task list as produced by the planner.
	Tasks []*Task `json:"tasks"`
	// Fallback is true when the planner output was unusable and the plan
	// was replaced by a single task carrying the objective.
	Fallback bool `json:"fallback,omitempty"`
}

// Task returns the task with the given ID, or nil.
func (p *Plan) Task(id int) *Task {
	if p == nil {
		return nil
	}
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ExecutionResult is the outcome of running one task.
// The scheduler creates exactly one per task and never mutates it afterwards.
type ExecutionResult struct {
	TaskID  int    `json:"task_id"`
	Role    Role   `json:"agent"`
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// SuccessCount returns how many results succeeded.
func SuccessCount(results []ExecutionResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}
