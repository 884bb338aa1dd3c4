package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/internal/graph"
	"github.com/ShayCichocki/swarm/pkg/models"
)

// DefaultContextMaxChars bounds how much of one dependency's result is passed on.
const DefaultContextMaxChars = 1000

// ErrTaskTimeout is the cause recorded when a task exceeds its time limit.
var ErrTaskTimeout = errors.New("task timed out")

// SchedulerConfig configures a Scheduler. The zero value runs tasks one at a
// time with no retries.
type SchedulerConfig struct {
	// MaxConcurrency bounds how many tasks run at once. Values below 2 run
	// tasks sequentially in topological order.
	MaxConcurrency int
	// Retry bounds re-attempts of retryable backend failures.
	Retry agent.RetryPolicy
	// ContextMaxChars truncates each dependency result in a task's context.
	ContextMaxChars int
	// TaskTimeout limits a single backend call. Zero means no limit.
	TaskTimeout time.Duration
	// StrictDependencies rejects dependencies on unknown task ids.
	StrictDependencies bool
}

// Scheduler runs a task graph against an agent backend. Each task runs after
// all of its dependencies have finished; a failed task never stops the others.
type Scheduler struct {
	backend agent.Backend
	cfg     SchedulerConfig
	emitter *EventEmitter
	pause   *PauseController
	logger  *DebugLogger
	runID   string
}

// NewScheduler creates a scheduler for backend.
func NewScheduler(backend agent.Backend, cfg SchedulerConfig) *Scheduler {
	if cfg.ContextMaxChars == 0 {
		cfg.ContextMaxChars = DefaultContextMaxChars
	}
	return &Scheduler{
		backend: backend,
		cfg:     cfg,
		logger:  NopLogger(),
	}
}

// SetEmitter sets where progress events go. Nil disables events.
func (s *Scheduler) SetEmitter(e *EventEmitter) { s.emitter = e }

// SetPauseController lets dispatch be paused between tasks.
func (s *Scheduler) SetPauseController(p *PauseController) { s.pause = p }

// SetLogger sets the debug logger.
func (s *Scheduler) SetLogger(l *DebugLogger) {
	if l != nil {
		s.logger = l
	}
}

// SetRunID tags emitted events with a run id.
func (s *Scheduler) SetRunID(id string) { s.runID = id }

// Execute runs tasks and returns exactly one result per task.
//
// Sequential runs return results in topological order, concurrent runs in
// completion order. A cycle, a duplicate id or (in strict mode) an unknown
// dependency is rejected before any task runs. If ctx is cancelled, or the
// pause controller is stopped, no further tasks are dispatched: those tasks
// get failed results and the cause is returned alongside the results.
func (s *Scheduler) Execute(ctx context.Context, tasks []*models.Task) ([]models.ExecutionResult, error) {
	g := graph.New(
		graph.WithStrictDependencies(s.cfg.StrictDependencies),
		graph.WithDebugLog(s.logger.Log),
	)
	if err := g.Build(tasks); err != nil {
		return nil, err
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	s.logger.Log("[scheduler] executing %d tasks, order=%v, concurrency=%d", len(order), order, s.cfg.MaxConcurrency)

	if s.cfg.MaxConcurrency > 1 {
		return s.executeConcurrent(ctx, g, order)
	}
	return s.executeSequential(ctx, g, order)
}

func (s *Scheduler) executeSequential(ctx context.Context, g *graph.DependencyGraph, order []int) ([]models.ExecutionResult, error) {
	results := make([]models.ExecutionResult, 0, len(order))
	finished := make(map[int]models.ExecutionResult, len(order))

	for i, id := range order {
		if err := s.pause.WaitIfPaused(ctx); err != nil {
			for _, rest := range order[i:] {
				results = append(results, s.abandon(g.GetTask(rest), err))
			}
			return results, err
		}

		task := g.GetTask(id)
		promptCtx := buildContext(g.GetDependencies(id), finished, s.cfg.ContextMaxChars)
		r := s.runTask(ctx, task, promptCtx)

		finished[id] = r
		results = append(results, r)
	}
	return results, ctx.Err()
}

func (s *Scheduler) executeConcurrent(ctx context.Context, g *graph.DependencyGraph, order []int) ([]models.ExecutionResult, error) {
	var (
		mu       sync.Mutex
		results  = make([]models.ExecutionResult, 0, len(order))
		finished = make(map[int]models.ExecutionResult, len(order))
		stopErr  error
	)

	done := make(map[int]chan struct{}, len(order))
	for _, id := range order {
		done[id] = make(chan struct{})
	}
	sem := make(chan struct{}, s.cfg.MaxConcurrency)

	record := func(r models.ExecutionResult) {
		mu.Lock()
		defer mu.Unlock()
		finished[r.TaskID] = r
		results = append(results, r)
	}
	abandon := func(task *models.Task, err error) {
		mu.Lock()
		if stopErr == nil {
			stopErr = err
		}
		mu.Unlock()
		record(s.abandon(task, err))
	}

	var eg errgroup.Group
	for _, id := range order {
		task := g.GetTask(id)
		deps := g.GetDependencies(id)

		eg.Go(func() error {
			defer close(done[task.ID])

			// Dependencies reach a terminal state before the task starts.
			for _, dep := range deps {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					abandon(task, ctx.Err())
					return nil
				}
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				abandon(task, ctx.Err())
				return nil
			}
			defer func() { <-sem }()

			if err := s.pause.WaitIfPaused(ctx); err != nil {
				abandon(task, err)
				return nil
			}

			mu.Lock()
			promptCtx := buildContext(deps, finished, s.cfg.ContextMaxChars)
			mu.Unlock()

			record(s.runTask(ctx, task, promptCtx))
			return nil
		})
	}
	_ = eg.Wait()

	if stopErr == nil {
		stopErr = ctx.Err()
	}
	return results, stopErr
}

// abandon builds the failed result of a task that was never dispatched.
func (s *Scheduler) abandon(task *models.Task, cause error) models.ExecutionResult {
	task.Status = models.TaskStatusFailed
	task.Error = fmt.Sprintf("not dispatched: %v", cause)
	s.logger.Log("[scheduler] task %d not dispatched: %v", task.ID, cause)
	return models.ExecutionResult{
		TaskID:  task.ID,
		Role:    models.ResolveRole(string(task.Role)),
		Success: false,
		Error:   task.Error,
	}
}

// runTask invokes the backend for one task, retrying per the policy.
func (s *Scheduler) runTask(ctx context.Context, task *models.Task, promptCtx string) models.ExecutionResult {
	role := models.ResolveRole(string(task.Role))
	task.Status = models.TaskStatusRunning

	ctx, span := startTaskSpan(ctx, task, role)
	s.emit(OrchestratorEvent{
		Type:    EventStatus,
		TaskID:  task.ID,
		Role:    role,
		Status:  models.TaskStatusRunning,
		Attempt: 1,
		Message: fmt.Sprintf("task %d started", task.ID),
	})
	s.logger.Log("[scheduler] task %d started (role=%s, context=%d chars)", task.ID, role, len(promptCtx))

	var (
		content string
		err     error
		attempt int
	)
	for attempt = 1; ; attempt++ {
		content, err = s.invoke(ctx, task, role, promptCtx)
		if err == nil {
			break
		}
		if s.cfg.Retry.Decide(attempt, err) == agent.Abort {
			break
		}

		task.RetryCount++
		s.logger.Log("[scheduler] task %d attempt %d failed, retrying: %v", task.ID, attempt, err)
		s.emit(OrchestratorEvent{
			Type:    EventStatus,
			TaskID:  task.ID,
			Role:    role,
			Status:  models.TaskStatusRunning,
			Attempt: attempt + 1,
			Message: fmt.Sprintf("task %d retrying", task.ID),
			Error:   err,
		})
		if werr := s.cfg.Retry.Wait(ctx, attempt+1); werr != nil {
			err = werr
			break
		}
	}

	result := models.ExecutionResult{TaskID: task.ID, Role: role}
	if err != nil {
		task.Status = models.TaskStatusFailed
		task.Error = err.Error()
		result.Error = err.Error()

		s.logger.Log("[scheduler] task %d failed after %d attempt(s): %v", task.ID, attempt, err)
		s.emit(OrchestratorEvent{
			Type:    EventStatus,
			TaskID:  task.ID,
			Role:    role,
			Status:  models.TaskStatusFailed,
			Attempt: attempt,
			Message: fmt.Sprintf("task %d failed", task.ID),
			Error:   err,
		})
	} else {
		task.Status = models.TaskStatusCompleted
		result.Success = true
		result.Content = content

		s.logger.Log("[scheduler] task %d completed (%d chars)", task.ID, len(content))
		s.emit(OrchestratorEvent{
			Type:    EventChunk,
			TaskID:  task.ID,
			Role:    role,
			Status:  models.TaskStatusCompleted,
			Attempt: attempt,
			Content: content,
		})
	}

	endSpan(span, err,
		attribute.Bool("task.success", result.Success),
		attribute.Int("task.attempts", attempt),
	)
	return result
}

// invoke makes one backend call under the task timeout.
func (s *Scheduler) invoke(ctx context.Context, task *models.Task, role models.Role, promptCtx string) (string, error) {
	if s.cfg.TaskTimeout <= 0 {
		return s.backend.Invoke(ctx, role, task.Instruction, promptCtx)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	content, err := s.backend.Invoke(callCtx, role, task.Instruction, promptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		// The task's own deadline expired, not the run's.
		return "", &agent.BackendError{
			Kind: agent.ErrorKindTransient,
			Role: role,
			Err:  fmt.Errorf("%w after %s", ErrTaskTimeout, s.cfg.TaskTimeout),
		}
	}
	return content, err
}

func (s *Scheduler) emit(event OrchestratorEvent) {
	if s.emitter == nil {
		return
	}
	event.RunID = s.runID
	event.Phase = PhaseExecuting
	s.emitter.Emit(event)
}
