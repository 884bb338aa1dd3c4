package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/internal/state"
	"github.com/ShayCichocki/swarm/internal/validation"
	"github.com/ShayCichocki/swarm/pkg/models"
)

// scriptedBackend answers planning, task and synthesis prompts separately.
type scriptedBackend struct {
	fakeBackend
	plan       func() (string, error)
	task       func(role models.Role, prompt string) (string, error)
	synthesize func(prompt string) (string, error)
}

func newScripted(planJSON string) *scriptedBackend {
	sb := &scriptedBackend{
		plan: func() (string, error) { return planJSON, nil },
		task: func(role models.Role, prompt string) (string, error) {
			return string(role) + " did " + prompt, nil
		},
		synthesize: func(string) (string, error) { return "synthesized answer", nil },
	}
	sb.respond = func(_ context.Context, role models.Role, prompt, _ string) (string, error) {
		switch {
		case role == models.RoleCoordinator && strings.HasPrefix(prompt, "Break this objective"):
			return sb.plan()
		case role == models.RoleCoordinator && strings.HasPrefix(prompt, "Original objective:"):
			return sb.synthesize(prompt)
		default:
			return sb.task(role, prompt)
		}
	}
	return sb
}

func (sb *scriptedBackend) synthesisCalls() int {
	n := 0
	for _, c := range sb.Calls() {
		if strings.HasPrefix(c.Prompt, "Original objective:") {
			n++
		}
	}
	return n
}

type memoryHistory struct {
	mu      sync.Mutex
	records []*state.RunRecord
	err     error
}

func (m *memoryHistory) SaveRun(r *state.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return m.err
}

type fixedUsage struct {
	mu       sync.Mutex
	in, out  int64
	perCheck int64
}

func (u *fixedUsage) Total() (int64, int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	in, out := u.in, u.out
	u.in += u.perCheck
	u.out += u.perCheck * 2
	return in, out
}

const twoTaskPlan = `{"objective": "Compare Go web routers", "tasks": [
	{"id": 1, "agent": "researcher", "task": "list routers", "dependencies": []},
	{"id": 2, "agent": "analyst", "task": "compare them", "dependencies": [1]}
]}`

func TestRun_FullPipeline(t *testing.T) {
	backend := newScripted(twoTaskPlan)
	history := &memoryHistory{}

	report := New(backend, WithHistory(history)).Run(context.Background(), "Compare Go web routers")

	if report.Failed() {
		t.Fatalf("run failed: %v", report.Fatal)
	}
	if report.Phase != PhaseDone {
		t.Errorf("phase = %s, want done", report.Phase)
	}
	if report.Answer != "synthesized answer" {
		t.Errorf("answer = %q", report.Answer)
	}
	if !report.Synthesized || report.ShortCircuit {
		t.Errorf("synthesized=%v shortCircuit=%v", report.Synthesized, report.ShortCircuit)
	}
	if len(report.Results) != 2 || models.SuccessCount(report.Results) != 2 {
		t.Errorf("results = %+v", report.Results)
	}
	if report.RunID == "" {
		t.Error("run id should be set")
	}
	if report.Drift != 0 || !report.IntentOK || len(report.Transformations) != 0 {
		t.Errorf("unchanged objective should not drift: drift=%d ok=%v", report.Drift, report.IntentOK)
	}

	if len(history.records) != 1 {
		t.Fatalf("expected 1 saved run, got %d", len(history.records))
	}
	rec := history.records[0]
	if rec.ID != report.RunID || rec.Status != state.RunCompleted || len(rec.Tasks) != 2 {
		t.Errorf("saved record = %+v", rec)
	}
	if rec.Tasks[1].Role != "analyst" || rec.Tasks[1].Dependencies[0] != 1 {
		t.Errorf("task record = %+v", rec.Tasks[1])
	}
}

func TestRun_SynthesisPromptListsOutcomes(t *testing.T) {
	backend := newScripted(twoTaskPlan)
	backend.task = func(role models.Role, prompt string) (string, error) {
		if role == models.RoleAnalyst {
			return "", &agent.BackendError{Kind: agent.ErrorKindMalformed, Role: role, Err: errors.New("refused")}
		}
		return "router list", nil
	}
	var got string
	backend.synthesize = func(prompt string) (string, error) {
		got = prompt
		return "summary", nil
	}

	New(backend).Run(context.Background(), "Compare Go web routers")

	for _, want := range []string{
		"Original objective: Compare Go web routers",
		"[Task 1 - researcher] SUCCESS\nrouter list",
		"[Task 2 - analyst] FAILED",
		"refused",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("synthesis prompt missing %q:\n%s", want, got)
		}
	}
}

func TestRun_SingleLongResultShortCircuits(t *testing.T) {
	content := strings.Repeat("Résumé line. ", 20) + "\n```go\nfmt.Println(1)\n```\n"
	backend := newScripted(`{"tasks": [{"id": 1, "agent": "writer", "task": "write it"}]}`)
	backend.task = func(models.Role, string) (string, error) { return content, nil }

	report := New(backend).Run(context.Background(), "write it")

	if report.Answer != content {
		t.Errorf("answer should be the task content byte-for-byte")
	}
	if !report.ShortCircuit || report.Synthesized {
		t.Errorf("shortCircuit=%v synthesized=%v", report.ShortCircuit, report.Synthesized)
	}
	if n := backend.synthesisCalls(); n != 0 {
		t.Errorf("synthesis agent called %d times, want 0", n)
	}
}

func TestRun_ShortSingleResultIsSynthesized(t *testing.T) {
	backend := newScripted(`{"tasks": [{"id": 1, "agent": "writer", "task": "write it"}]}`)
	backend.task = func(models.Role, string) (string, error) { return "short", nil }

	report := New(backend).Run(context.Background(), "write it")

	if report.ShortCircuit {
		t.Error("short content should not short-circuit")
	}
	if backend.synthesisCalls() != 1 {
		t.Errorf("synthesis calls = %d, want 1", backend.synthesisCalls())
	}
}

func TestRun_UnparseablePlanFallsBack(t *testing.T) {
	objective := "  Explain goroutines\nto a Python developer  "
	backend := newScripted("Sure! Here is my plan: first research, then write.")

	report := New(backend).Run(context.Background(), objective)

	if report.Failed() {
		t.Fatalf("fallback should not fail the run: %v", report.Fatal)
	}
	if !report.Plan.Fallback || len(report.Plan.Tasks) != 1 {
		t.Fatalf("plan = %+v, want single-task fallback", report.Plan)
	}
	if got := report.Plan.Tasks[0].Instruction; got != objective {
		t.Errorf("fallback instruction = %q, want objective verbatim", got)
	}
	if report.Plan.Tasks[0].Role != models.DefaultRole {
		t.Errorf("fallback role = %q, want %q", report.Plan.Tasks[0].Role, models.DefaultRole)
	}
	for _, e := range report.Errors {
		if e.Kind == ErrorKindPlanParse {
			t.Error("plan parse errors are recovered and not reported")
		}
	}
}

func TestRun_PlannerBackendFailureFallsBack(t *testing.T) {
	backend := newScripted("")
	backend.plan = func() (string, error) { return "", errors.New("planner offline") }

	report := New(backend).Run(context.Background(), "do the thing")

	if report.Failed() {
		t.Fatalf("planner failure should fall back: %v", report.Fatal)
	}
	if !report.Plan.Fallback {
		t.Error("expected fallback plan")
	}
	if len(report.Errors) != 1 || report.Errors[0].Kind != ErrorKindBackend {
		t.Errorf("errors = %v, want one backend error", report.Errors)
	}
}

func TestRun_CyclicPlanIsFatal(t *testing.T) {
	backend := newScripted(`{"tasks": [
		{"id": 1, "agent": "coder", "task": "a", "dependencies": [2]},
		{"id": 2, "agent": "coder", "task": "b", "dependencies": [1]}
	]}`)
	emitter := NewEventEmitter(50)
	history := &memoryHistory{}

	report := New(backend, WithEmitter(emitter), WithHistory(history)).Run(context.Background(), "build")
	emitter.Close()

	if report.Fatal == nil || report.Fatal.Kind != ErrorKindCyclicDependency {
		t.Fatalf("fatal = %v, want cyclic dependency", report.Fatal)
	}
	if len(backend.Calls()) != 1 {
		t.Errorf("only the planner should be called, got %d calls", len(backend.Calls()))
	}
	if !strings.Contains(report.Answer, "cycle") {
		t.Errorf("answer should explain the failure: %q", report.Answer)
	}
	if report.Phase != PhaseDone || report.Status() != state.RunFailed {
		t.Errorf("phase=%s status=%s", report.Phase, report.Status())
	}
	if history.records[0].Status != state.RunFailed {
		t.Errorf("saved status = %s, want failed", history.records[0].Status)
	}

	var last OrchestratorEvent
	for ev := range emitter.Events() {
		if ev.Type == EventPlan {
			t.Error("no plan event for a rejected plan")
		}
		last = ev
	}
	if last.Type != EventError {
		t.Errorf("last event = %s, want error", last.Type)
	}
}

func TestRun_StrictDependencies(t *testing.T) {
	backend := newScripted(`{"tasks": [{"id": 1, "agent": "coder", "task": "a", "dependencies": [7]}]}`)

	report := New(backend, WithConfig(Config{StrictDependencies: true, MaxDrift: 70})).Run(context.Background(), "a")
	if report.Fatal == nil || report.Fatal.Kind != ErrorKindUnknownDependency {
		t.Errorf("fatal = %v, want unknown dependency", report.Fatal)
	}

	report = New(newScripted(`{"tasks": [{"id": 1, "agent": "coder", "task": "a", "dependencies": [7]}]}`)).Run(context.Background(), "a")
	if report.Failed() {
		t.Errorf("lenient run should succeed: %v", report.Fatal)
	}
}

func TestRun_SynthesisFailureReturnsRawResults(t *testing.T) {
	backend := newScripted(twoTaskPlan)
	backend.synthesize = func(string) (string, error) {
		return "", &agent.BackendError{Kind: agent.ErrorKindQuota, Role: models.RoleCoordinator, Err: errors.New("overloaded")}
	}

	report := New(backend).Run(context.Background(), "Compare Go web routers")

	if report.Failed() {
		t.Fatalf("synthesis failure should not fail the run: %v", report.Fatal)
	}
	if report.Answer != FormatResults(report.Results) {
		t.Errorf("answer should be the raw results, got %q", report.Answer)
	}
	if !strings.Contains(report.Answer, "Task 1 (researcher): completed") {
		t.Errorf("raw results missing task 1: %q", report.Answer)
	}
	if len(report.Errors) != 1 || report.Errors[0].Kind != ErrorKindBackend || report.Errors[0].Phase != PhaseSynthesizing {
		t.Errorf("errors = %v", report.Errors)
	}
}

func TestRun_RestatedObjectiveIsAudited(t *testing.T) {
	tests := []struct {
		name      string
		restated  string
		wantDrift int
		wantOK    bool
	}{
		{"close restatement", "compare go web routers today", 20, true},
		{"unrelated restatement", "purchase dairy", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newScripted(`{"objective": "` + tt.restated + `", "tasks": [{"id": 1, "task": "x"}]}`)

			report := New(backend).Run(context.Background(), "Compare Go web routers")

			if len(report.Transformations) != 1 {
				t.Fatalf("expected 1 transformation, got %d", len(report.Transformations))
			}
			tr := report.Transformations[0]
			if tr.Source != "planner" || tr.Before != "Compare Go web routers" || tr.After != tt.restated {
				t.Errorf("transformation = %+v", tr)
			}
			if report.Drift != tt.wantDrift || report.IntentOK != tt.wantOK {
				t.Errorf("drift=%d ok=%v, want %d %v", report.Drift, report.IntentOK, tt.wantDrift, tt.wantOK)
			}

			hasDriftErr := false
			for _, e := range report.Errors {
				if e.Kind == ErrorKindIntentDrift {
					hasDriftErr = true
				}
			}
			if hasDriftErr == tt.wantOK {
				t.Errorf("intent drift error recorded = %v, want %v", hasDriftErr, !tt.wantOK)
			}
			if report.Failed() {
				t.Error("drift never fails a run")
			}
		})
	}
}

func TestRun_OutputFormatCorrection(t *testing.T) {
	backend := newScripted(twoTaskPlan)
	backend.synthesize = func(string) (string, error) { return "# Routers\n\nchi and gin.", nil }

	cfg := DefaultConfig()
	cfg.OutputFormat = &validation.FormatSpec{Type: validation.FormatMarkdown, RequiredSections: []string{"Recommendation"}}

	report := New(backend, WithConfig(cfg)).Run(context.Background(), "Compare Go web routers")

	if report.Validation == nil || report.Validation.Valid {
		t.Fatalf("validation = %+v, want invalid", report.Validation)
	}
	if !strings.Contains(report.Answer, "## Recommendation") {
		t.Errorf("answer should be auto-corrected: %q", report.Answer)
	}
	found := false
	for _, e := range report.Errors {
		if e.Kind == ErrorKindFormatValidation {
			found = true
		}
	}
	if !found {
		t.Error("format validation error not recorded")
	}

	cfg.AutoCorrect = false
	report = New(newScriptedWithAnswer("# Routers\n\nchi and gin."), WithConfig(cfg)).Run(context.Background(), "Compare Go web routers")
	if report.Answer != "# Routers\n\nchi and gin." {
		t.Errorf("answer changed without auto-correct: %q", report.Answer)
	}
}

func newScriptedWithAnswer(answer string) *scriptedBackend {
	b := newScripted(twoTaskPlan)
	b.synthesize = func(string) (string, error) { return answer, nil }
	return b
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := newScripted(twoTaskPlan)
	backend.plan = func() (string, error) { return "", context.Canceled }
	history := &memoryHistory{}

	report := New(backend, WithHistory(history)).Run(ctx, "anything")

	if report.Fatal == nil || report.Fatal.Kind != ErrorKindCancelled {
		t.Fatalf("fatal = %v, want cancelled", report.Fatal)
	}
	if report.Status() != state.RunCanceled {
		t.Errorf("status = %s, want canceled", report.Status())
	}
	if report.Answer == "" {
		t.Error("answer should explain the cancellation")
	}
	if history.records[0].Status != state.RunCanceled {
		t.Errorf("saved status = %s", history.records[0].Status)
	}
}

func TestRun_CancelledDuringExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := newScripted(twoTaskPlan)
	backend.task = func(models.Role, string) (string, error) {
		cancel()
		return "", context.Canceled
	}

	report := New(backend).Run(ctx, "Compare Go web routers")

	if report.Fatal == nil || report.Fatal.Kind != ErrorKindCancelled || report.Fatal.Phase != PhaseExecuting {
		t.Fatalf("fatal = %v, want cancelled while executing", report.Fatal)
	}
	if len(report.Results) != 2 {
		t.Errorf("expected a result per task, got %d", len(report.Results))
	}
	if !strings.HasPrefix(report.Answer, "Run cancelled") {
		t.Errorf("answer = %q", report.Answer)
	}
	if backend.synthesisCalls() != 0 {
		t.Error("cancelled run should not synthesize")
	}
}

func TestRun_RecoversPanics(t *testing.T) {
	backend := newScripted("")
	backend.plan = func() (string, error) { panic("boom") }

	report := New(backend).Run(context.Background(), "anything")

	if report.Fatal == nil || report.Fatal.Kind != ErrorKindInternal {
		t.Fatalf("fatal = %v, want internal", report.Fatal)
	}
	if !strings.Contains(report.Answer, "boom") {
		t.Errorf("answer = %q", report.Answer)
	}
	if report.Phase != PhaseDone {
		t.Errorf("phase = %s, want done", report.Phase)
	}
}

func TestRun_Events(t *testing.T) {
	emitter := NewEventEmitter(100)
	report := New(newScripted(twoTaskPlan), WithEmitter(emitter)).Run(context.Background(), "Compare Go web routers")
	emitter.Close()

	var (
		events []OrchestratorEvent
		chunks int
	)
	for ev := range emitter.Events() {
		if ev.RunID != report.RunID {
			t.Errorf("event run id = %q, want %q", ev.RunID, report.RunID)
		}
		if ev.Type == EventChunk {
			chunks++
		}
		events = append(events, ev)
	}

	if events[0].Type != EventPlan || events[0].Plan == nil {
		t.Errorf("first event = %+v, want plan", events[0])
	}
	if chunks != 2 {
		t.Errorf("chunk events = %d, want 2", chunks)
	}
	last := events[len(events)-1]
	if last.Type != EventResult || last.Content != report.Answer || last.Phase != PhaseDone {
		t.Errorf("last event = %+v, want result", last)
	}

	// Phases only move forward.
	rank := -1
	for _, ev := range events {
		if ev.Phase.rank() < rank {
			t.Fatalf("phase went backwards at %+v", ev)
		}
		rank = ev.Phase.rank()
	}
}

func TestRun_TokenUsageAndHistoryErrors(t *testing.T) {
	usage := &fixedUsage{in: 100, out: 10, perCheck: 50}
	history := &memoryHistory{err: errors.New("disk full")}

	report := New(newScripted(twoTaskPlan), WithUsage(usage), WithHistory(history)).Run(context.Background(), "Compare Go web routers")

	if report.InputTokens != 50 || report.OutputTokens != 100 {
		t.Errorf("tokens = %d/%d, want 50/100", report.InputTokens, report.OutputTokens)
	}
	if report.Failed() {
		t.Error("a history failure must not fail the run")
	}
}

func TestRun_IsolatedBetweenRuns(t *testing.T) {
	orch := New(newScripted(`{"objective": "purchase dairy", "tasks": [{"id": 1, "task": "x"}]}`))

	first := orch.Run(context.Background(), "buy milk")
	second := orch.Run(context.Background(), "buy milk")

	if first.RunID == second.RunID {
		t.Error("runs should have distinct ids")
	}
	if len(second.Transformations) != 1 {
		t.Errorf("second run saw %d transformations, want 1", len(second.Transformations))
	}
}

func TestFormatResults_Empty(t *testing.T) {
	if got := FormatResults(nil); got != "No tasks were executed." {
		t.Errorf("FormatResults(nil) = %q", got)
	}
}
