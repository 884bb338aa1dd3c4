package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/swarm/internal/orchestrator"
	"github.com/ShayCichocki/swarm/internal/state"
	"github.com/ShayCichocki/swarm/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// printProgress renders one orchestrator event as a progress line.
func printProgress(w io.Writer, ev orchestrator.OrchestratorEvent) {
	switch ev.Type {
	case orchestrator.EventPlan:
		if ev.Plan == nil {
			return
		}
		note := ""
		if ev.Plan.Fallback {
			note = color.YellowString(" (fallback)")
		}
		fmt.Fprintf(w, "%s planned %d task(s)%s\n", color.CyanString("•"), len(ev.Plan.Tasks), note)
		for _, t := range ev.Plan.Tasks {
			fmt.Fprintf(w, "    %s\n", describeTask(t))
		}
	case orchestrator.EventChunk:
		fmt.Fprintf(w, "%s task %d (%s) done\n", color.GreenString("✓"), ev.TaskID, ev.Role)
	case orchestrator.EventStatus:
		switch ev.Status {
		case models.TaskStatusFailed:
			fmt.Fprintf(w, "%s task %d (%s) failed: %v\n", color.RedString("✗"), ev.TaskID, ev.Role, ev.Error)
		case models.TaskStatusRunning:
			msg := ev.Message
			if ev.Attempt > 1 {
				msg = fmt.Sprintf("%s (attempt %d: %v)", msg, ev.Attempt, ev.Error)
			}
			fmt.Fprintf(w, "%s %s\n", color.New(color.Faint).Sprint("…"), msg)
		default:
			if ev.Message != "" {
				fmt.Fprintf(w, "%s %s\n", color.New(color.Faint).Sprint("·"), ev.Message)
			}
		}
	case orchestrator.EventError:
		if ev.Error != nil {
			fmt.Fprintf(w, "%s %v\n", color.RedString("✗"), ev.Error)
		}
	}
}

func describeTask(t *models.Task) string {
	deps := ""
	if len(t.Dependencies) > 0 {
		ids := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			ids[i] = fmt.Sprint(d)
		}
		deps = " after " + strings.Join(ids, ",")
	}
	return fmt.Sprintf("[%d] %s%s: %s", t.ID, t.Role, deps, truncateLine(t.Instruction, 80))
}

// renderReport formats a finished run for the terminal.
func renderReport(r *orchestrator.Report, cost float64) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(answerStyle.Render(strings.TrimRight(r.Answer, "\n")))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Tasks"))
	b.WriteString("\n")
	if len(r.Results) == 0 {
		b.WriteString("  none\n")
	}
	for _, res := range r.Results {
		mark := okStyle.Render("✓")
		if !res.Success {
			mark = failedStyle.Render("✗")
		}
		fmt.Fprintf(&b, "  %s task %d (%s)", mark, res.TaskID, res.Role)
		if res.Error != "" {
			fmt.Fprintf(&b, ": %s", truncateLine(res.Error, 100))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(r.Errors) > 0 {
		b.WriteString(headerStyle.Render("Problems"))
		b.WriteString("\n")
		for _, e := range r.Errors {
			style := warnStyle
			if e == r.Fatal {
				style = failedStyle
			}
			fmt.Fprintf(&b, "  %s\n", style.Render(e.Error()))
		}
		b.WriteString("\n")
	}

	b.WriteString(headerStyle.Render("Run"))
	b.WriteString("\n")
	row(&b, "id", r.RunID)
	row(&b, "status", string(r.Status()))
	row(&b, "answer", answerSource(r))
	drift := fmt.Sprintf("%d%%", r.Drift)
	if !r.IntentOK {
		drift = failedStyle.Render(drift + " (over limit)")
	}
	row(&b, "drift", drift)
	if r.Validation != nil {
		valid := okStyle.Render("valid")
		if !r.Validation.Valid {
			valid = warnStyle.Render(fmt.Sprintf("%d problem(s)", len(r.Validation.Errors)))
		}
		row(&b, "format", valid)
	}
	row(&b, "tokens", fmt.Sprintf("%d in / %d out", r.InputTokens, r.OutputTokens))
	if cost > 0 {
		row(&b, "cost", fmt.Sprintf("$%.4f", cost))
	}
	row(&b, "duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String())

	return b.String()
}

func answerSource(r *orchestrator.Report) string {
	switch {
	case r.ShortCircuit:
		return "single task result"
	case r.Synthesized:
		return "synthesized"
	case r.Failed():
		return "failure message"
	default:
		return "raw task results"
	}
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s%s\n", labelStyle.Render(label), value)
}

// renderRunList formats history entries, one per line.
func renderRunList(runs []state.RunRecord) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  %s  %-9s  %s\n",
			r.ID[:min(8, len(r.ID))],
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			statusText(r.Status),
			truncateLine(r.Objective, 60))
	}
	return b.String()
}

// renderRun formats one stored run with its tasks and audit trail.
func renderRun(r *state.RunRecord) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Run " + r.ID))
	b.WriteString("\n")
	row(&b, "status", statusText(r.Status))
	row(&b, "objective", r.Objective)
	if r.PlanObjective != "" && r.PlanObjective != r.Objective {
		row(&b, "planned as", r.PlanObjective)
	}
	if r.FallbackPlan {
		row(&b, "plan", "fallback")
	}
	row(&b, "drift", fmt.Sprintf("%d%%", r.Drift))
	if r.FormatValid != nil {
		row(&b, "format valid", fmt.Sprint(*r.FormatValid))
	}
	row(&b, "tokens", fmt.Sprintf("%d in / %d out", r.InputTokens, r.OutputTokens))
	row(&b, "started", r.StartedAt.Local().Format(time.RFC3339))
	b.WriteString("\n")

	if len(r.Tasks) > 0 {
		b.WriteString(headerStyle.Render("Tasks"))
		b.WriteString("\n")
		for _, t := range r.Tasks {
			mark := okStyle.Render("✓")
			if !t.Success {
				mark = failedStyle.Render("✗")
			}
			fmt.Fprintf(&b, "  %s [%d] %s: %s\n", mark, t.TaskID, t.Role, truncateLine(t.Instruction, 80))
			if t.Error != "" {
				fmt.Fprintf(&b, "      %s\n", failedStyle.Render(truncateLine(t.Error, 100)))
			}
		}
		b.WriteString("\n")
	}

	if len(r.Transformations) > 0 {
		b.WriteString(headerStyle.Render("Transformations"))
		b.WriteString("\n")
		for _, tr := range r.Transformations {
			fmt.Fprintf(&b, "  %s (%d%%): %s\n", tr.Source, tr.DriftScore, tr.Reason)
		}
		b.WriteString("\n")
	}

	b.WriteString(headerStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(answerStyle.Render(strings.TrimRight(r.Answer, "\n")))
	b.WriteString("\n")
	return b.String()
}

func statusText(s state.RunStatus) string {
	switch s {
	case state.RunCompleted:
		return okStyle.Render(string(s))
	case state.RunCanceled:
		return warnStyle.Render(string(s))
	default:
		return failedStyle.Render(string(s))
	}
}

// truncateLine flattens s to one line and cuts it to n runes.
func truncateLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
