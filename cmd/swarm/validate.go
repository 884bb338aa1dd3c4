package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/swarm/internal/validation"
)

var (
	validateType     string
	validateSections []string
	validateSpecFile string
	validateFix      bool
	validateJSON     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a document against an output format",
	Long: `Validate a file (or "-" for stdin) against an output format.

Examples:
  swarm validate report.md --type markdown --sections Summary,Risks
  swarm validate answer.json --spec format.yaml
  swarm validate list.txt --type list --fix > fixed.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateType, "type", "markdown", "Format type: markdown, json, code, list, freeform")
	validateCmd.Flags().StringSliceVar(&validateSections, "sections", nil, "Required markdown sections")
	validateCmd.Flags().StringVar(&validateSpecFile, "spec", "", "YAML format spec (overrides --type and --sections)")
	validateCmd.Flags().BoolVar(&validateFix, "fix", false, "Print the auto-corrected document instead of a report")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the validation result as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	content, err := readInput(args[0])
	if err != nil {
		return err
	}

	spec, err := validateSpec()
	if err != nil {
		return err
	}

	result := validation.Validate(content, spec)

	if validateFix {
		out := content
		if result.CorrectedOutput != nil {
			out = *result.CorrectedOutput
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}

	if validateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printValidation(result)
	}

	if !result.Valid {
		return fmt.Errorf("%s does not match the %s format", args[0], spec.Type)
	}
	return nil
}

func validateSpec() (validation.FormatSpec, error) {
	if validateSpecFile != "" {
		return validation.LoadSpec(validateSpecFile)
	}
	spec := validation.FormatSpec{
		Type:             validation.FormatType(strings.ToLower(validateType)),
		RequiredSections: validateSections,
	}
	if !spec.Type.Valid() {
		return validation.FormatSpec{}, fmt.Errorf("unknown format type %q", validateType)
	}
	return spec, nil
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func printValidation(v validation.FormatValidation) {
	if v.Valid {
		printStatus("✓", "Output matches the expected format", color.FgGreen)
		return
	}
	for _, e := range v.Errors {
		printStatus("✗", e.Error(), color.FgRed)
		if e.Suggestion != "" {
			fmt.Printf("    %s\n", color.New(color.Faint).Sprint(e.Suggestion))
		}
	}
	if v.CorrectedOutput != nil {
		printStatus("•", "An auto-correction is available (rerun with --fix)", color.FgCyan)
	}
}
