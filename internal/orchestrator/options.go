package orchestrator

import (
	"time"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/internal/audit"
	"github.com/ShayCichocki/swarm/internal/decompose"
	"github.com/ShayCichocki/swarm/internal/validation"
)

const (
	// DefaultSummaryMaxChars bounds each task's content in the synthesis prompt.
	DefaultSummaryMaxChars = 500
	// DefaultSynthesisMinLength is the length a lone successful result must
	// exceed to be returned without synthesis.
	DefaultSynthesisMinLength = 200
)

// Config holds the tunables of an Orchestrator.
type Config struct {
	// MaxConcurrency bounds concurrently running tasks; below 2 is sequential.
	MaxConcurrency int
	// StrictDependencies rejects plans with dependencies on unknown tasks.
	StrictDependencies bool
	// ContextMaxChars truncates each dependency result passed as context.
	ContextMaxChars int
	// SummaryMaxChars truncates each task result in the synthesis prompt.
	SummaryMaxChars int
	// SynthesisMinLength is the short-circuit threshold for a lone success.
	SynthesisMinLength int
	// TaskTimeout limits each backend call for a task. Zero means none.
	TaskTimeout time.Duration
	// Retry bounds re-attempts of retryable task failures.
	Retry agent.RetryPolicy
	// MaxDrift is the total drift tolerated before the intent check fails.
	MaxDrift int
	// WarnThreshold is the per-transformation drift that logs a warning.
	WarnThreshold int
	// OutputFormat, when set, is checked against the final answer.
	OutputFormat *validation.FormatSpec
	// AutoCorrect replaces an invalid answer with its corrected form.
	AutoCorrect bool
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:     1,
		ContextMaxChars:    DefaultContextMaxChars,
		SummaryMaxChars:    DefaultSummaryMaxChars,
		SynthesisMinLength: DefaultSynthesisMinLength,
		Retry:              agent.NoRetry,
		MaxDrift:           audit.DefaultMaxDrift,
		WarnThreshold:      audit.DefaultWarnThreshold,
		AutoCorrect:        true,
	}
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	config  Config
	planner *decompose.Planner
	parser  decompose.PlanParser
	emitter *EventEmitter
	pause   *PauseController
	logger  *DebugLogger
	history HistorySink
	usage   UsageSource
}

// WithConfig replaces the default configuration.
func WithConfig(c Config) Option {
	return func(o *orchestratorOptions) { o.config = c }
}

// WithPlanner sets a custom planner (mainly for testing).
func WithPlanner(p *decompose.Planner) Option {
	return func(o *orchestratorOptions) { o.planner = p }
}

// WithPlanParser swaps the parser used by the default planner.
func WithPlanParser(p decompose.PlanParser) Option {
	return func(o *orchestratorOptions) { o.parser = p }
}

// WithEmitter sets where run events are sent.
func WithEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}

// WithPauseController lets task dispatch be paused and stopped externally.
func WithPauseController(p *PauseController) Option {
	return func(o *orchestratorOptions) { o.pause = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithHistory records every finished run.
func WithHistory(h HistorySink) Option {
	return func(o *orchestratorOptions) { o.history = h }
}

// WithUsage reports token usage into run records.
func WithUsage(u UsageSource) Option {
	return func(o *orchestratorOptions) { o.usage = u }
}
