package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/swarm/pkg/models"
)

// maxLogLines bounds the activity log.
const maxLogLines = 8

type taskRow struct {
	TaskInfo
	status  models.TaskStatus
	attempt int
	err     string
}

// RunView displays the progress of a single run.
type RunView struct {
	objective string
	phase     string
	fallback  bool
	tasks     []*taskRow
	byID      map[int]*taskRow
	logs      []LogMsg
	spinner   spinner.Model
	width     int

	paused     bool
	cancelling bool
	done       bool
	success    bool
	message    string
	quitting   bool

	onCancel func()
	onPause  func(paused bool)

	// Styles
	titleStyle   lipgloss.Style
	phaseStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	hintStyle    lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
	pendingStyle lipgloss.Style
	warningStyle lipgloss.Style
}

// NewRunView creates a view for objective.
func NewRunView(objective string) *RunView {
	return &RunView{
		objective: objective,
		phase:     "planning",
		byID:      make(map[int]*taskRow),
		width:     80,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
		),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")),

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
	}
}

// NewRunProgram wraps view in a full-screen program.
func NewRunProgram(view *RunView) *tea.Program {
	return tea.NewProgram(view, tea.WithAltScreen())
}

// SetCancelHandler sets the callback invoked when the user cancels the run.
func (v *RunView) SetCancelHandler(fn func()) {
	v.onCancel = fn
}

// SetPauseHandler sets the callback invoked when the user toggles pause.
func (v *RunView) SetPauseHandler(fn func(paused bool)) {
	v.onPause = fn
}

// Done reports whether the run has finished.
func (v *RunView) Done() bool {
	return v.done
}

// Init implements tea.Model.
func (v *RunView) Init() tea.Cmd {
	return v.spinner.Tick
}

// Update implements tea.Model.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case tea.WindowSizeMsg:
		v.width = msg.Width

	case spinner.TickMsg:
		if v.done {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case PlanMsg:
		v.setPlan(msg)

	case PhaseMsg:
		v.phase = msg.Phase

	case TaskMsg:
		v.updateTask(msg)

	case LogMsg:
		v.addLog(msg)

	case DoneMsg:
		v.done = true
		v.success = msg.Success
		v.message = msg.Message
		v.phase = "done"
	}
	return v, nil
}

func (v *RunView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if v.done || v.cancelling {
			v.quitting = true
			return v, tea.Quit
		}
		v.cancelling = true
		v.addLog(LogMsg{Timestamp: time.Now(), Message: "cancelling run..."})
		if v.onCancel != nil {
			v.onCancel()
		}
	case "p":
		if v.done || v.cancelling {
			return v, nil
		}
		v.paused = !v.paused
		if v.paused {
			v.addLog(LogMsg{Timestamp: time.Now(), Message: "dispatch paused"})
		} else {
			v.addLog(LogMsg{Timestamp: time.Now(), Message: "dispatch resumed"})
		}
		if v.onPause != nil {
			v.onPause(v.paused)
		}
	}
	return v, nil
}

func (v *RunView) setPlan(msg PlanMsg) {
	v.fallback = msg.Fallback
	v.tasks = v.tasks[:0]
	v.byID = make(map[int]*taskRow, len(msg.Tasks))
	for _, t := range msg.Tasks {
		row := &taskRow{TaskInfo: t, status: models.TaskStatusPending}
		v.tasks = append(v.tasks, row)
		v.byID[t.ID] = row
	}
}

func (v *RunView) updateTask(msg TaskMsg) {
	row, ok := v.byID[msg.ID]
	if !ok {
		row = &taskRow{TaskInfo: TaskInfo{ID: msg.ID, Role: msg.Role}}
		v.tasks = append(v.tasks, row)
		v.byID[msg.ID] = row
		sort.Slice(v.tasks, func(i, j int) bool { return v.tasks[i].ID < v.tasks[j].ID })
	}
	if msg.Role != "" {
		row.Role = msg.Role
	}
	row.status = msg.Status
	row.attempt = msg.Attempt
	row.err = msg.Error
}

func (v *RunView) addLog(msg LogMsg) {
	v.logs = append(v.logs, msg)
	if len(v.logs) > maxLogLines {
		v.logs = v.logs[len(v.logs)-maxLogLines:]
	}
}

// counts returns completed, failed and total task counts.
func (v *RunView) counts() (done, failed, total int) {
	for _, t := range v.tasks {
		switch t.status {
		case models.TaskStatusCompleted:
			done++
		case models.TaskStatusFailed:
			failed++
		}
	}
	return done, failed, len(v.tasks)
}

// View implements tea.Model.
func (v *RunView) View() string {
	if v.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(v.titleStyle.Render("swarm"))
	b.WriteString("\n")
	b.WriteString(v.labelStyle.Render("Objective"))
	b.WriteString(truncate(v.objective, v.width-14))
	b.WriteString("\n")

	b.WriteString(v.labelStyle.Render("Phase"))
	b.WriteString(v.renderPhase())
	b.WriteString("\n")

	done, failed, total := v.counts()
	b.WriteString(v.labelStyle.Render("Tasks"))
	fmt.Fprintf(&b, "%d/%d done", done, total)
	if failed > 0 {
		b.WriteString(v.failedStyle.Render(fmt.Sprintf(", %d failed", failed)))
	}
	if v.fallback {
		b.WriteString(v.warningStyle.Render(" (fallback plan)"))
	}
	b.WriteString("\n\n")

	for _, t := range v.tasks {
		b.WriteString(v.renderTask(t))
		b.WriteString("\n")
	}

	if len(v.logs) > 0 {
		b.WriteString("\n")
		for _, l := range v.logs {
			line := fmt.Sprintf("%s %s", l.Timestamp.Format("15:04:05"), l.Message)
			if l.Error {
				b.WriteString(v.failedStyle.Render(truncate(line, v.width)))
			} else {
				b.WriteString(v.hintStyle.Render(truncate(line, v.width)))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.renderFooter())
	return b.String()
}

func (v *RunView) renderPhase() string {
	switch {
	case v.done && v.success:
		return v.doneStyle.Render("done")
	case v.done:
		return v.failedStyle.Render("done")
	case v.cancelling:
		return v.warningStyle.Render(v.phase + " (cancelling)")
	case v.paused:
		return v.warningStyle.Render(v.phase + " (paused)")
	}
	return v.spinner.View() + " " + v.phaseStyle.Render(v.phase)
}

func (v *RunView) renderTask(t *taskRow) string {
	var icon string
	switch t.status {
	case models.TaskStatusRunning:
		icon = v.runningStyle.Render("●")
	case models.TaskStatusCompleted:
		icon = v.doneStyle.Render("✓")
	case models.TaskStatusFailed:
		icon = v.failedStyle.Render("✗")
	default:
		icon = v.pendingStyle.Render("○")
	}

	line := fmt.Sprintf("%s [%d] %-10s %s", icon, t.ID, t.Role, truncate(t.Instruction, v.width-20))
	if t.status == models.TaskStatusRunning && t.attempt > 1 {
		line += v.warningStyle.Render(fmt.Sprintf(" (attempt %d)", t.attempt))
	}
	if t.status == models.TaskStatusFailed && t.err != "" {
		line += "\n      " + v.failedStyle.Render(truncate(t.err, v.width-8))
	}
	return line
}

func (v *RunView) renderFooter() string {
	if v.done {
		msg := v.doneStyle.Render(v.message)
		if !v.success {
			msg = v.failedStyle.Render(v.message)
		}
		return msg + "  " + v.hintStyle.Render("q: close")
	}
	if v.cancelling {
		return v.hintStyle.Render("waiting for running tasks...  q: force quit")
	}
	return v.hintStyle.Render("p: pause/resume  q: cancel")
}

// truncate cuts s to n runes on one line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
