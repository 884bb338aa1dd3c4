package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/swarm/internal/config"
	"github.com/ShayCichocki/swarm/internal/orchestrator"
	"github.com/ShayCichocki/swarm/internal/signals"
	"github.com/ShayCichocki/swarm/internal/telemetry"
	"github.com/ShayCichocki/swarm/internal/validation"
)

var (
	runJSON        bool
	runQuiet       bool
	runConcurrency int
	runStrict      bool
	runFormat      string
	runSections    []string
	runNoHistory   bool
	runTUI         bool
)

// errRunFailed marks a run that finished without a usable answer. The
// report has already been printed, so main only sets the exit status.
var errRunFailed = errors.New("run failed")

// tracingFlushTimeout bounds the final export of pending spans.
const tracingFlushTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run <objective>",
	Short: "Solve an objective with a team of agents",
	Long: `Run an objective through the agent team.

The coordinator breaks the objective into tasks for specialist roles
(researcher, analyst, writer, coder, reviewer, generalist), the tasks run
in dependency order and their results are synthesized into one answer.

While a run is in progress, 'swarm signal pause|resume|kill' in the same
project controls it. Ctrl-C cancels it.

Examples:
  swarm run "Compare SQLite and Postgres for a small CLI tool"
  swarm run --concurrency 3 "Write a release announcement for v2"
  swarm run --format markdown --sections Summary,Risks "Review this plan"
  swarm run --json "Summarize the attached notes" > report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runObjective,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Print only the answer")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Maximum tasks running at once (overrides config)")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "Reject plans that depend on unknown tasks")
	runCmd.Flags().StringVar(&runFormat, "format", "", "Expected answer format: markdown, json, code, list, freeform")
	runCmd.Flags().StringSliceVar(&runSections, "sections", nil, "Required markdown sections in the answer")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress in a full-screen view")
}

func runObjective(cmd *cobra.Command, args []string) error {
	objective := strings.TrimSpace(strings.Join(args, " "))
	if objective == "" {
		return fmt.Errorf("objective must not be empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	orchCfg, err := orchestratorConfig(cfg)
	if err != nil {
		return err
	}

	projectDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	backend, err := createBackend(cfg)
	if err != nil {
		return err
	}

	logger, err := orchestrator.NewDebugLogger(debugLogPath(cfg, projectDir))
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	defer logger.Close()

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Tracing, os.Stderr)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Log("[run] flushing traces: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	pause := orchestrator.NewPauseController()
	signals.Clear(projectDir)
	watcher, err := signals.Watch(projectDir, pause, func() {
		fmt.Fprintln(os.Stderr, "\nReceived kill signal, shutting down...")
		cancel()
	})
	if err != nil {
		logger.Log("[run] signal watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	emitter := orchestrator.NewEventEmitter(64)

	opts := []orchestrator.Option{
		orchestrator.WithConfig(orchCfg),
		orchestrator.WithEmitter(emitter),
		orchestrator.WithPauseController(pause),
		orchestrator.WithLogger(logger),
		orchestrator.WithUsage(backend.Client().Tracker()),
	}
	if cfg.History.Enabled && !runNoHistory {
		db, err := openHistory(cfg, projectDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s history disabled: %v\n", color.YellowString("⚠"), err)
		} else {
			defer db.Close()
			opts = append(opts, orchestrator.WithHistory(db))
		}
	}

	orch := orchestrator.New(backend, opts...)

	var report *orchestrator.Report
	if runTUI && !runJSON && !runQuiet {
		report, err = runWithTUI(ctx, cancel, orch, emitter, pause, objective)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s progress view failed: %v\n", color.YellowString("⚠"), err)
		}
	} else {
		progress := io.Writer(os.Stderr)
		if runQuiet {
			progress = io.Discard
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range emitter.Events() {
				printProgress(progress, ev)
			}
		}()

		report = orch.Run(ctx, objective)
		emitter.Close()
		<-done
	}

	switch {
	case runJSON:
		if err := printJSON(report); err != nil {
			return err
		}
	case runQuiet:
		fmt.Println(report.Answer)
	default:
		fmt.Println()
		fmt.Print(renderReport(report, backend.Client().Tracker().Cost()))
	}

	if report.Failed() {
		cmd.SilenceErrors = true
		return errRunFailed
	}
	return nil
}

// applyRunFlags lets explicit flags override loaded settings.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Orchestrator.MaxConcurrency = runConcurrency
	}
	if flags.Changed("strict") {
		cfg.Orchestrator.StrictDependencies = runStrict
	}
	if flags.Changed("format") {
		cfg.Output.Format = runFormat
		cfg.Output.SpecFile = ""
	}
	if flags.Changed("sections") {
		cfg.Output.RequiredSections = runSections
		if cfg.Output.Format == "" {
			cfg.Output.Format = string(validation.FormatMarkdown)
		}
	}
}
