package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/swarm/internal/config"
	"github.com/ShayCichocki/swarm/internal/signals"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a swarm project",
	Long: `Initialize a directory for use with swarm.

This creates the .swarm directory (signals, logs and run history),
a .swarm.yaml template and .gitignore entries for local state.

Examples:
  swarm init              # Initialize current directory
  swarm init ./myproject  # Initialize specific directory
  swarm init --force      # Rewrite the config template`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .swarm.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing swarm in %s...\n\n", absPath)

	cfg, _ := config.Load()
	if _, err := config.GetAPIKey(cfg); err != nil {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	for _, dir := range []string{signals.Dir(absPath), filepath.Join(absPath, ".swarm", "logs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .swarm directory structure", color.FgGreen)

	created, err := createProjectConfig(absPath, initForce)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	if created {
		printStatus("✓", "Created .swarm.yaml template", color.FgGreen)
	} else {
		printStatus("•", ".swarm.yaml already exists (use --force to overwrite)", color.FgCyan)
	}

	if err := updateGitignore(absPath); err != nil {
		printStatus("⚠", fmt.Sprintf("Could not update .gitignore: %v", err), color.FgYellow)
	} else {
		printStatus("✓", "Updated .gitignore with swarm entries", color.FgGreen)
	}

	fmt.Printf("\n%s swarm initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  swarm run \"<objective>\"")
	return nil
}

var gitignoreEntries = []string{
	".swarm/history.db*",
	".swarm/logs/",
	".swarm/signals/",
}

// updateGitignore adds swarm entries to .gitignore if not present.
func updateGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")

	var existing string
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(existing)
	if len(existing) > 0 && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n# swarm\n")
	for _, entry := range missing {
		b.WriteString(entry + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

const projectConfigTemplate = `# swarm project configuration
# Overrides ~/.config/swarm/config.yaml. Environment variables (SWARM_*) win over both.

# anthropic:
#   model: claude-sonnet-4-20250514
#   max_tokens: 4096

# orchestrator:
#   max_concurrency: 1
#   strict_dependencies: false
#   context_max_chars: 1000
#   summary_max_chars: 500
#   synthesis_min_length: 200
#   task_timeout: 5m

# retry:
#   max_attempts: 1
#   backoff: 2s

# audit:
#   max_drift: 70
#   warn_threshold: 50

# output:
#   format: markdown
#   required_sections: [Summary]
#   auto_correct: true

# tracing:
#   exporter: otlp          # or stdout
#   endpoint: localhost:4318
#   insecure: true
`

// createProjectConfig writes the .swarm.yaml template. It reports false
// when a config already exists and force is not set.
func createProjectConfig(dir string, force bool) (bool, error) {
	path := filepath.Join(dir, config.ProjectConfigName)
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(projectConfigTemplate), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
