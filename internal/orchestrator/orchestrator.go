package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/internal/audit"
	"github.com/ShayCichocki/swarm/internal/decompose"
	"github.com/ShayCichocki/swarm/internal/state"
	"github.com/ShayCichocki/swarm/internal/validation"
	"github.com/ShayCichocki/swarm/pkg/models"
)

// HistorySink stores finished runs.
type HistorySink interface {
	SaveRun(r *state.RunRecord) error
}

// UsageSource reports cumulative token usage of the backend.
type UsageSource interface {
	Total() (input, output int64)
}

// Report is the outcome of one run. Answer is always set.
type Report struct {
	RunID     string                   `json:"run_id"`
	Objective string                   `json:"objective"`
	Plan      *models.Plan             `json:"plan,omitempty"`
	Results   []models.ExecutionResult `json:"results"`
	Answer    string                   `json:"answer"`
	Phase     Phase                    `json:"phase"`
	// Synthesized is true when the synthesis agent wrote the answer.
	Synthesized bool `json:"synthesized"`
	// ShortCircuit is true when a lone successful result was returned as is.
	ShortCircuit    bool                         `json:"short_circuit"`
	Drift           int                          `json:"drift"`
	IntentOK        bool                         `json:"intent_ok"`
	Transformations []audit.Transformation       `json:"transformations,omitempty"`
	Validation      *validation.FormatValidation `json:"validation,omitempty"`
	// Errors lists every failure observed, recovered or not.
	Errors []*PhaseError `json:"errors,omitempty"`
	// Fatal is the failure that ended the run early, if any.
	Fatal        *PhaseError `json:"fatal,omitempty"`
	InputTokens  int64       `json:"input_tokens"`
	OutputTokens int64       `json:"output_tokens"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
}

// Failed reports whether the run ended without a usable answer.
func (r *Report) Failed() bool {
	return r.Fatal != nil
}

// Status maps the report to the stored run status.
func (r *Report) Status() state.RunStatus {
	switch {
	case r.Fatal == nil:
		return state.RunCompleted
	case r.Fatal.Kind == ErrorKindCancelled:
		return state.RunCanceled
	default:
		return state.RunFailed
	}
}

// Orchestrator turns an objective into an answer: it plans a task graph,
// runs it through the agent backend and synthesizes the results.
type Orchestrator struct {
	backend agent.Backend
	config  Config
	planner *decompose.Planner
	emitter *EventEmitter
	pause   *PauseController
	logger  *DebugLogger
	history HistorySink
	usage   UsageSource
}

// New creates an Orchestrator on top of backend.
func New(backend agent.Backend, opts ...Option) *Orchestrator {
	o := &orchestratorOptions{config: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}

	planner := o.planner
	if planner == nil {
		planner = decompose.New(backend,
			decompose.WithParser(o.parser),
			decompose.WithStrictDependencies(o.config.StrictDependencies),
			decompose.WithDebugLog(logger.Log),
		)
	}

	return &Orchestrator{
		backend: backend,
		config:  o.config,
		planner: planner,
		emitter: o.emitter,
		pause:   o.pause,
		logger:  logger,
		history: o.history,
		usage:   o.usage,
	}
}

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// synthesis is the output of the synthesizing phase.
type synthesis struct {
	answer       string
	shortCircuit bool
}

// Run drives one objective through planning, execution and synthesis.
// It never returns an error and never panics: failures are recorded on the
// report and explained in its Answer.
func (o *Orchestrator) Run(ctx context.Context, objective string) (report *Report) {
	report = &Report{
		RunID:     uuid.NewString(),
		Objective: objective,
		Phase:     PhasePlanning,
		StartedAt: time.Now(),
	}
	trail := audit.NewTrail(
		audit.WithWarnThreshold(o.config.WarnThreshold),
		audit.WithWarnFunc(func(format string, args ...any) {
			log.Printf(format, args...)
			o.logger.Log(format, args...)
		}),
	)
	trail.Initialize(objective)

	var startIn, startOut int64
	if o.usage != nil {
		startIn, startOut = o.usage.Total()
	}

	ctx, span := startRunSpan(ctx, report.RunID, objective)
	o.logger.Log("[orchestrator] run %s started: %q", report.RunID, truncate(objective, 80))

	defer func() {
		if p := recover(); p != nil {
			o.fail(report, &PhaseError{
				Phase: report.Phase,
				Kind:  ErrorKindInternal,
				Err:   fmt.Errorf("panic: %v", p),
			})
		}
		if o.usage != nil {
			in, out := o.usage.Total()
			report.InputTokens, report.OutputTokens = in-startIn, out-startOut
		}
		o.finish(report, trail)

		var runErr error
		if report.Fatal != nil {
			runErr = report.Fatal
		}
		endSpan(span, runErr,
			attribute.String("run.phase", string(report.Phase)),
			attribute.Int("run.drift", report.Drift),
			attribute.Bool("run.short_circuit", report.ShortCircuit),
		)
	}()

	planned := o.plan(ctx, report, trail)
	if !planned.OK() {
		o.fail(report, planned.Err)
		return report
	}
	report.Plan = planned.Value
	o.emit(report, OrchestratorEvent{
		Type:    EventPlan,
		Plan:    report.Plan,
		Message: fmt.Sprintf("plan has %d task(s)", len(report.Plan.Tasks)),
	})

	o.advance(report, PhaseExecuting)
	executed := o.execute(ctx, report)
	report.Results = executed.Value
	if !executed.OK() {
		if executed.Err.Kind.Fatal() {
			o.abort(report, executed.Err)
			return report
		}
		report.Errors = append(report.Errors, executed.Err)
	}

	o.advance(report, PhaseSynthesizing)
	synthesized := o.synthesize(ctx, objective, report.Results)
	if !synthesized.OK() {
		if synthesized.Err.Kind.Fatal() {
			o.abort(report, synthesized.Err)
			return report
		}
		o.logger.Log("[orchestrator] synthesis failed, returning raw results: %v", synthesized.Err)
		report.Errors = append(report.Errors, synthesized.Err)
		report.Answer = FormatResults(report.Results)
	} else {
		report.Answer = synthesized.Value.answer
		report.ShortCircuit = synthesized.Value.shortCircuit
		report.Synthesized = !synthesized.Value.shortCircuit
	}

	o.checkFormat(report)
	return report
}

// plan runs the planning phase. Unusable plans and planner failures fall back
// to a single task carrying the objective; structural errors are fatal.
func (o *Orchestrator) plan(ctx context.Context, report *Report, trail *audit.Trail) PhaseResult[*models.Plan] {
	ctx, span := startPhaseSpan(ctx, PhasePlanning)

	plan, err := o.planner.Plan(ctx, report.Objective)
	if err != nil {
		perr := classify(PhasePlanning, err)
		endSpan(span, err, attribute.String("plan.error_kind", string(perr.Kind)))

		if perr.Kind.Fatal() {
			return failed[*models.Plan](nil, perr)
		}
		if perr.Kind == ErrorKindPlanParse {
			o.logger.Log("[orchestrator] plan unusable, falling back to a single task: %v", err)
		} else {
			o.logger.Log("[orchestrator] planner failed, falling back to a single task: %v", err)
			report.Errors = append(report.Errors, perr)
		}
		return ok(decompose.FallbackPlan(report.Objective))
	}

	if plan.Objective != report.Objective {
		trail.RecordTransformation("planner", "plan restated the objective", plan.Objective)
	}

	endSpan(span, nil, attribute.Int("plan.tasks", len(plan.Tasks)))
	o.logger.Log("[orchestrator] planned %d task(s)", len(plan.Tasks))
	return ok(plan)
}

// execute runs the planned tasks. Results are returned even on failure.
func (o *Orchestrator) execute(ctx context.Context, report *Report) PhaseResult[[]models.ExecutionResult] {
	ctx, span := startPhaseSpan(ctx, PhaseExecuting)

	sched := NewScheduler(o.backend, SchedulerConfig{
		MaxConcurrency:     o.config.MaxConcurrency,
		Retry:              o.config.Retry,
		ContextMaxChars:    o.config.ContextMaxChars,
		TaskTimeout:        o.config.TaskTimeout,
		StrictDependencies: o.config.StrictDependencies,
	})
	sched.SetEmitter(o.emitter)
	sched.SetPauseController(o.pause)
	sched.SetLogger(o.logger)
	sched.SetRunID(report.RunID)

	results, err := sched.Execute(ctx, report.Plan.Tasks)
	succeeded := models.SuccessCount(results)
	endSpan(span, err,
		attribute.Int("execute.results", len(results)),
		attribute.Int("execute.succeeded", succeeded),
	)
	o.logger.Log("[orchestrator] executed %d task(s), %d succeeded", len(results), succeeded)

	if err != nil {
		return failed(results, classify(PhaseExecuting, err))
	}
	return ok(results)
}

// synthesize condenses the results into one answer.
func (o *Orchestrator) synthesize(ctx context.Context, objective string, results []models.ExecutionResult) PhaseResult[synthesis] {
	if content, found := soleSuccess(results); found && utf8.RuneCountInString(content) > o.config.SynthesisMinLength {
		o.logger.Log("[orchestrator] single result of %d chars, skipping synthesis", len(content))
		return ok(synthesis{answer: content, shortCircuit: true})
	}

	ctx, span := startPhaseSpan(ctx, PhaseSynthesizing)
	answer, err := o.backend.Invoke(ctx, models.RoleCoordinator, SynthesisPrompt(objective, results, o.config.SummaryMaxChars), "")
	if err == nil && strings.TrimSpace(answer) == "" {
		err = &agent.BackendError{Kind: agent.ErrorKindMalformed, Role: models.RoleCoordinator, Err: agent.ErrEmptyResponse}
	}
	endSpan(span, err)

	if err != nil {
		perr := classify(PhaseSynthesizing, err)
		if perr.Kind == ErrorKindInternal {
			// Any failed synthesis call is a backend failure.
			perr.Kind = ErrorKindBackend
		}
		return failed(synthesis{}, perr)
	}
	return ok(synthesis{answer: answer})
}

// checkFormat validates the answer against the configured output format,
// replacing it with the corrected form when allowed.
func (o *Orchestrator) checkFormat(report *Report) {
	spec := o.config.OutputFormat
	if spec == nil {
		return
	}

	result := validation.Validate(report.Answer, *spec)
	report.Validation = &result
	if result.Valid {
		return
	}

	msgs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		msgs = append(msgs, e.Error())
	}
	report.Errors = append(report.Errors, &PhaseError{
		Phase: PhaseSynthesizing,
		Kind:  ErrorKindFormatValidation,
		Err:   errors.New(strings.Join(msgs, "; ")),
	})
	o.logger.Log("[orchestrator] answer failed %s format check: %s", spec.Type, strings.Join(msgs, "; "))

	if o.config.AutoCorrect && result.CorrectedOutput != nil {
		report.Answer = *result.CorrectedOutput
	}
}

// abort ends the run on a fatal phase error, keeping any results gathered so far.
func (o *Orchestrator) abort(report *Report, perr *PhaseError) {
	if perr.Kind == ErrorKindCancelled {
		report.Answer = fmt.Sprintf("Run cancelled: %v\n\n%s", perr.Err, FormatResults(report.Results))
	}
	o.fail(report, perr)
}

// fail records a fatal error and, if nothing better is available, explains it.
func (o *Orchestrator) fail(report *Report, perr *PhaseError) {
	report.Fatal = perr
	report.Errors = append(report.Errors, perr)
	if report.Answer == "" {
		report.Answer = failureMessage(perr)
	}
	o.logger.Log("[orchestrator] run %s failed in %s: %v", report.RunID, perr.Phase, perr.Err)
}

// finish closes the run: audit verdict, terminal event and history.
func (o *Orchestrator) finish(report *Report, trail *audit.Trail) {
	o.advance(report, PhaseDone)

	report.Transformations = trail.Transformations()
	report.Drift = trail.TotalDrift()
	report.IntentOK = trail.ValidateIntent(o.config.MaxDrift)
	if !report.IntentOK {
		report.Errors = append(report.Errors, &PhaseError{
			Phase: PhasePlanning,
			Kind:  ErrorKindIntentDrift,
			Err:   fmt.Errorf("total drift %d%% exceeds %d%%", report.Drift, o.config.MaxDrift),
		})
	}
	report.FinishedAt = time.Now()

	if report.Fatal != nil {
		o.emit(report, OrchestratorEvent{Type: EventError, Message: report.Answer, Error: report.Fatal})
	} else {
		o.emit(report, OrchestratorEvent{Type: EventResult, Content: report.Answer})
	}

	if o.history != nil {
		if err := o.history.SaveRun(toRecord(report)); err != nil {
			log.Printf("[orchestrator] WARNING: failed to save run %s: %v", report.RunID, err)
		}
	}
	o.logger.Log("[orchestrator] run %s done in %s (status=%s, drift=%d)",
		report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond), report.Status(), report.Drift)
}

// advance moves the run forward. Backward transitions are ignored.
func (o *Orchestrator) advance(report *Report, next Phase) {
	if next.rank() <= report.Phase.rank() {
		return
	}
	report.Phase = next
	o.logger.Log("[orchestrator] phase -> %s", next)
	o.emit(report, OrchestratorEvent{Type: EventStatus, Message: "phase " + string(next)})
}

func (o *Orchestrator) emit(report *Report, event OrchestratorEvent) {
	if o.emitter == nil {
		return
	}
	event.RunID = report.RunID
	event.Phase = report.Phase
	o.emitter.Emit(event)
}

// soleSuccess returns the content of the only successful result.
func soleSuccess(results []models.ExecutionResult) (string, bool) {
	var content string
	n := 0
	for _, r := range results {
		if r.Success {
			content = r.Content
			n++
		}
	}
	return content, n == 1
}

func failureMessage(perr *PhaseError) string {
	switch perr.Kind {
	case ErrorKindCyclicDependency:
		return fmt.Sprintf("The plan could not be executed because its tasks depend on each other in a cycle: %v", perr.Err)
	case ErrorKindUnknownDependency:
		return fmt.Sprintf("The plan could not be executed because a task depends on a task that does not exist: %v", perr.Err)
	case ErrorKindCancelled:
		return fmt.Sprintf("Run cancelled during %s: %v", perr.Phase, perr.Err)
	default:
		return fmt.Sprintf("The objective could not be completed (%s failed): %v", perr.Phase, perr.Err)
	}
}

// SynthesisPrompt builds the request sent to the synthesis agent.
func SynthesisPrompt(objective string, results []models.ExecutionResult, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original objective: %s\n\n", objective)
	b.WriteString("Results from the agent team:\n\n")
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "[Task %d - %s] SUCCESS\n%s\n\n", r.TaskID, r.Role, truncate(r.Content, maxChars))
		} else {
			fmt.Fprintf(&b, "[Task %d - %s] FAILED\n%s\n\n", r.TaskID, r.Role, truncate(r.Error, maxChars))
		}
	}
	b.WriteString(`Write a concise answer for the user. Cover:
1. Whether the objective was achieved
2. The key results
3. Any problems encountered`)
	return b.String()
}

// FormatResults renders results as plain text, used when synthesis is not possible.
func FormatResults(results []models.ExecutionResult) string {
	if len(results) == 0 {
		return "No tasks were executed."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.Success {
			fmt.Fprintf(&b, "Task %d (%s): completed\n%s", r.TaskID, r.Role, r.Content)
		} else {
			fmt.Fprintf(&b, "Task %d (%s): failed\n%s", r.TaskID, r.Role, r.Error)
		}
	}
	return b.String()
}

// toRecord converts a report into its stored form.
func toRecord(r *Report) *state.RunRecord {
	finished := r.FinishedAt
	rec := &state.RunRecord{
		ID:           r.RunID,
		Objective:    r.Objective,
		Answer:       r.Answer,
		Status:       r.Status(),
		Drift:        r.Drift,
		IntentOK:     r.IntentOK,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		StartedAt:    r.StartedAt,
		FinishedAt:   &finished,
	}
	if r.Validation != nil {
		valid := r.Validation.Valid
		rec.FormatValid = &valid
	}

	results := make(map[int]models.ExecutionResult, len(r.Results))
	for _, res := range r.Results {
		results[res.TaskID] = res
	}
	if r.Plan != nil {
		rec.PlanObjective = r.Plan.Objective
		rec.FallbackPlan = r.Plan.Fallback
		for _, t := range r.Plan.Tasks {
			res := results[t.ID]
			rec.Tasks = append(rec.Tasks, state.TaskRecord{
				TaskID:       t.ID,
				Role:         string(models.ResolveRole(string(t.Role))),
				Instruction:  t.Instruction,
				Dependencies: t.Dependencies,
				Success:      res.Success,
				Content:      res.Content,
				Error:        res.Error,
				RetryCount:   t.RetryCount,
			})
		}
	}

	for _, tr := range r.Transformations {
		rec.Transformations = append(rec.Transformations, state.TransformationRecord{
			Source:     tr.Source,
			Reason:     tr.Reason,
			Before:     tr.Before,
			After:      tr.After,
			DriftScore: tr.DriftScore,
			CreatedAt:  tr.Timestamp,
		})
	}
	return rec
}
