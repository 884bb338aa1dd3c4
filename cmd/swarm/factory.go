package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/swarm/internal/agent"
	"github.com/ShayCichocki/swarm/internal/api"
	"github.com/ShayCichocki/swarm/internal/config"
	"github.com/ShayCichocki/swarm/internal/orchestrator"
	"github.com/ShayCichocki/swarm/internal/state"
	"github.com/ShayCichocki/swarm/internal/validation"
)

// createBackend builds the Anthropic-backed agent backend from cfg.
func createBackend(cfg *config.Config) (*api.Backend, error) {
	var apiKey string
	if !cfg.Bedrock.Enabled {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w (set ANTHROPIC_API_KEY or run 'swarm config anthropic.api_key <key>')", err)
		}
		apiKey = key
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		BaseURL:       cfg.Anthropic.BaseURL,
		UseAWSBedrock: cfg.Bedrock.Enabled,
		AWSRegion:     cfg.Bedrock.Region,
		AWSProfile:    cfg.Bedrock.Profile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return api.NewBackend(client), nil
}

// orchestratorConfig maps loaded settings onto the orchestrator.
func orchestratorConfig(cfg *config.Config) (orchestrator.Config, error) {
	spec, err := outputSpec(cfg.Output)
	if err != nil {
		return orchestrator.Config{}, err
	}

	return orchestrator.Config{
		MaxConcurrency:     cfg.Orchestrator.MaxConcurrency,
		StrictDependencies: cfg.Orchestrator.StrictDependencies,
		ContextMaxChars:    cfg.Orchestrator.ContextMaxChars,
		SummaryMaxChars:    cfg.Orchestrator.SummaryMaxChars,
		SynthesisMinLength: cfg.Orchestrator.SynthesisMinLength,
		TaskTimeout:        cfg.Orchestrator.TaskTimeout,
		Retry: agent.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
		},
		MaxDrift:      cfg.Audit.MaxDrift,
		WarnThreshold: cfg.Audit.WarnThreshold,
		OutputFormat:  spec,
		AutoCorrect:   cfg.Output.AutoCorrect,
	}, nil
}

// outputSpec returns the expected answer format, or nil when none is configured.
// A spec file takes precedence over the inline format settings.
func outputSpec(out config.OutputConfig) (*validation.FormatSpec, error) {
	if out.SpecFile != "" {
		spec, err := validation.LoadSpec(out.SpecFile)
		if err != nil {
			return nil, err
		}
		return &spec, nil
	}
	if out.Format == "" {
		return nil, nil
	}

	spec := validation.FormatSpec{
		Type:             validation.FormatType(strings.ToLower(out.Format)),
		RequiredSections: out.RequiredSections,
	}
	if !spec.Type.Valid() {
		return nil, fmt.Errorf("unknown output format %q", out.Format)
	}
	return &spec, nil
}

// debugLogPath returns where the debug log goes, or "" when disabled.
// SWARM_DEBUG enables it at the default location.
func debugLogPath(cfg *config.Config, projectDir string) string {
	if cfg.Logging.DebugFile != "" {
		return cfg.Logging.DebugFile
	}
	if os.Getenv("SWARM_DEBUG") != "" {
		return orchestrator.DefaultLogPath(projectDir)
	}
	return ""
}

// openHistory opens and migrates the run history database.
func openHistory(cfg *config.Config, projectDir string) (*state.DB, error) {
	path := cfg.History.Path
	if path == "" {
		path = state.ProjectDBPath(projectDir)
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return db, nil
}
