// Package config handles configuration loading and management for swarm.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ProjectConfigName is the project-level config file, searched upward from the working directory.
	ProjectConfigName = ".swarm.yaml"
	// EnvPrefix prefixes environment overrides, e.g. SWARM_ORCHESTRATOR_MAX_CONCURRENCY.
	EnvPrefix = "SWARM"
)

// Config holds all configuration for swarm.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Bedrock      BedrockConfig      `mapstructure:"bedrock"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Output       OutputConfig       `mapstructure:"output"`
	History      HistoryConfig      `mapstructure:"history"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"`
}

// BedrockConfig selects AWS Bedrock instead of the direct API.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// OrchestratorConfig holds scheduling and synthesis settings.
type OrchestratorConfig struct {
	// MaxConcurrency bounds concurrently running tasks; 1 runs them in order.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// StrictDependencies rejects plans that reference unknown task ids.
	StrictDependencies bool `mapstructure:"strict_dependencies"`
	// ContextMaxChars truncates each dependency result passed to a task.
	ContextMaxChars int `mapstructure:"context_max_chars"`
	// SummaryMaxChars truncates each result in the synthesis prompt.
	SummaryMaxChars int `mapstructure:"summary_max_chars"`
	// SynthesisMinLength is the length a lone result must exceed to skip synthesis.
	SynthesisMinLength int `mapstructure:"synthesis_min_length"`
	// TaskTimeout limits a single agent call. Zero disables it.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// RetryConfig bounds task retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// AuditConfig holds intent drift thresholds, in percent.
type AuditConfig struct {
	MaxDrift      int `mapstructure:"max_drift"`
	WarnThreshold int `mapstructure:"warn_threshold"`
}

// OutputConfig describes the expected shape of the final answer.
type OutputConfig struct {
	// Format is one of markdown, json, code, list, freeform. Empty disables checking.
	Format           string   `mapstructure:"format"`
	RequiredSections []string `mapstructure:"required_sections"`
	// SpecFile is a YAML format spec; it takes precedence over Format.
	SpecFile    string `mapstructure:"spec_file"`
	AutoCorrect bool   `mapstructure:"auto_correct"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the database location. Empty uses .swarm/history.db.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	// DebugFile enables the debug log at this path.
	DebugFile string `mapstructure:"debug_file"`
}

// Tracing exporters.
const (
	TraceExporterNone   = ""
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

// TracingConfig selects where run spans are exported. No exporter means spans
// are created against the no-op global provider and dropped.
type TracingConfig struct {
	Exporter string `mapstructure:"exporter"`
	// Endpoint is the OTLP/HTTP collector host:port. Empty uses the exporter default.
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
	// File receives stdout exporter output. Empty writes to stderr.
	File string `mapstructure:"file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, SWARM_*)
// 2. Project config (.swarm.yaml in current directory or parent)
// 3. User config (~/.config/swarm/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := load()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Value returns the effective value of a single key.
func Value(key string) (interface{}, error) {
	v, err := load()
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	return v.Get(key), nil
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	return sortedKeys(v)
}

func sortedKeys(v *viper.Viper) []string {
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

func load() (*viper.Viper, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		// Merge project config (takes precedence)
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return v, nil
}

// bindEnv maps SWARM_SECTION_KEY variables onto section.key.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map specific environment variables
	_ = v.BindEnv("anthropic.api_key", "SWARM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("bedrock.region", "SWARM_BEDROCK_REGION", "AWS_REGION")
	_ = v.BindEnv("bedrock.profile", "SWARM_BEDROCK_PROFILE", "AWS_PROFILE")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return decode(v)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Orchestrator.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_concurrency must be at least 1, got %d", c.Orchestrator.MaxConcurrency))
	}
	if c.Orchestrator.TaskTimeout < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.task_timeout must not be negative, got %s", c.Orchestrator.TaskTimeout))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	for key, pct := range map[string]int{"audit.max_drift": c.Audit.MaxDrift, "audit.warn_threshold": c.Audit.WarnThreshold} {
		if pct < 0 || pct > 100 {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 100, got %d", key, pct))
		}
	}
	switch c.Tracing.Exporter {
	case TraceExporterNone, TraceExporterStdout, TraceExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter must be %q or %q, got %q", TraceExporterStdout, TraceExporterOTLP, c.Tracing.Exporter))
	}
	if c.Anthropic.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("anthropic.max_tokens must not be negative, got %d", c.Anthropic.MaxTokens))
	}
	return errors.Join(errs...)
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	v := viper.New()
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.base_url", cfg.Anthropic.BaseURL)
	v.Set("bedrock.enabled", cfg.Bedrock.Enabled)
	v.Set("bedrock.region", cfg.Bedrock.Region)
	v.Set("bedrock.profile", cfg.Bedrock.Profile)
	v.Set("orchestrator.max_concurrency", cfg.Orchestrator.MaxConcurrency)
	v.Set("orchestrator.strict_dependencies", cfg.Orchestrator.StrictDependencies)
	v.Set("orchestrator.context_max_chars", cfg.Orchestrator.ContextMaxChars)
	v.Set("orchestrator.summary_max_chars", cfg.Orchestrator.SummaryMaxChars)
	v.Set("orchestrator.synthesis_min_length", cfg.Orchestrator.SynthesisMinLength)
	v.Set("orchestrator.task_timeout", cfg.Orchestrator.TaskTimeout.String())
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.backoff", cfg.Retry.Backoff.String())
	v.Set("audit.max_drift", cfg.Audit.MaxDrift)
	v.Set("audit.warn_threshold", cfg.Audit.WarnThreshold)
	v.Set("output.format", cfg.Output.Format)
	v.Set("output.required_sections", cfg.Output.RequiredSections)
	v.Set("output.spec_file", cfg.Output.SpecFile)
	v.Set("output.auto_correct", cfg.Output.AutoCorrect)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("logging.debug_file", cfg.Logging.DebugFile)
	v.Set("tracing.exporter", cfg.Tracing.Exporter)
	v.Set("tracing.endpoint", cfg.Tracing.Endpoint)
	v.Set("tracing.insecure", cfg.Tracing.Insecure)
	v.Set("tracing.file", cfg.Tracing.File)

	return writeUserConfig(v)
}

// Set stores one key in the user config file, keeping the other keys.
func Set(key, value string) error {
	known := false
	for _, k := range Keys() {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown config key %q", key)
	}

	v := viper.New()
	v.SetConfigFile(GetUserConfigPath())
	if _, err := os.Stat(GetUserConfigPath()); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}
	v.Set(key, value)

	// Reject values that would make the config unloadable.
	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return err
	}
	if _, err := decode(check); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return writeUserConfig(v)
}

func writeUserConfig(v *viper.Viper) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return v.WriteConfigAs(filepath.Join(userConfigDir, "config.yaml"))
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.base_url", d.Anthropic.BaseURL)

	v.SetDefault("bedrock.enabled", d.Bedrock.Enabled)
	v.SetDefault("bedrock.region", d.Bedrock.Region)
	v.SetDefault("bedrock.profile", d.Bedrock.Profile)

	v.SetDefault("orchestrator.max_concurrency", d.Orchestrator.MaxConcurrency)
	v.SetDefault("orchestrator.strict_dependencies", d.Orchestrator.StrictDependencies)
	v.SetDefault("orchestrator.context_max_chars", d.Orchestrator.ContextMaxChars)
	v.SetDefault("orchestrator.summary_max_chars", d.Orchestrator.SummaryMaxChars)
	v.SetDefault("orchestrator.synthesis_min_length", d.Orchestrator.SynthesisMinLength)
	v.SetDefault("orchestrator.task_timeout", d.Orchestrator.TaskTimeout.String())

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.backoff", d.Retry.Backoff.String())

	v.SetDefault("audit.max_drift", d.Audit.MaxDrift)
	v.SetDefault("audit.warn_threshold", d.Audit.WarnThreshold)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.required_sections", d.Output.RequiredSections)
	v.SetDefault("output.spec_file", d.Output.SpecFile)
	v.SetDefault("output.auto_correct", d.Output.AutoCorrect)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("logging.debug_file", d.Logging.DebugFile)

	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
	v.SetDefault("tracing.file", d.Tracing.File)
}

// getUserConfigDir returns the XDG config directory for swarm.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "swarm")
	}

	// Fall back to ~/.config/swarm
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "swarm")
	}
	return filepath.Join(home, ".config", "swarm")
}

// findProjectConfig searches for .swarm.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Bedrock: BedrockConfig{},
		Orchestrator: OrchestratorConfig{
			MaxConcurrency:     1,
			ContextMaxChars:    1000,
			SummaryMaxChars:    500,
			SynthesisMinLength: 200,
			TaskTimeout:        5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			Backoff:     2 * time.Second,
		},
		Audit: AuditConfig{
			MaxDrift:      70,
			WarnThreshold: 50,
		},
		Output: OutputConfig{
			RequiredSections: []string{},
			AutoCorrect:      true,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}
