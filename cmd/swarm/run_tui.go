package main

import (
	"context"
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/swarm/internal/orchestrator"
	"github.com/ShayCichocki/swarm/internal/tui"
)

// runWithTUI runs the orchestrator behind the full-screen progress view.
// Quitting the view before the run ends cancels the run.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, orch *orchestrator.Orchestrator,
	emitter *orchestrator.EventEmitter, pause *orchestrator.PauseController, objective string) (*orchestrator.Report, error) {
	// Log output corrupts the display.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	view := tui.NewRunView(objective)
	view.SetCancelHandler(cancel)
	view.SetPauseHandler(func(paused bool) {
		if paused {
			pause.Pause()
		} else {
			pause.Resume()
		}
	})
	program := tui.NewRunProgram(view)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		var f eventForwarder
		for ev := range emitter.Events() {
			for _, msg := range f.messages(ev) {
				program.Send(msg)
			}
		}
	}()

	reportCh := make(chan *orchestrator.Report, 1)
	go func() {
		report := orch.Run(ctx, objective)
		emitter.Close()
		reportCh <- report
	}()

	tuiDone := make(chan error, 1)
	go func() {
		_, err := program.Run()
		tuiDone <- err
	}()

	select {
	case report := <-reportCh:
		<-forwarded
		program.Send(doneMessage(report))
		// Leave the result on screen until the user closes the view.
		err := <-tuiDone
		return report, err

	case err := <-tuiDone:
		cancel()
		report := <-reportCh
		<-forwarded
		return report, err
	}
}

// eventForwarder converts orchestrator events into view messages.
type eventForwarder struct {
	phase orchestrator.Phase
}

func (f *eventForwarder) messages(ev orchestrator.OrchestratorEvent) []tea.Msg {
	var msgs []tea.Msg
	if ev.Phase != "" && ev.Phase != f.phase {
		f.phase = ev.Phase
		msgs = append(msgs, tui.PhaseMsg{Phase: string(ev.Phase)})
	}

	switch ev.Type {
	case orchestrator.EventPlan:
		if ev.Plan == nil {
			break
		}
		plan := tui.PlanMsg{Fallback: ev.Plan.Fallback}
		for _, t := range ev.Plan.Tasks {
			plan.Tasks = append(plan.Tasks, tui.TaskInfo{
				ID:           t.ID,
				Role:         t.Role,
				Instruction:  t.Instruction,
				Dependencies: t.Dependencies,
			})
		}
		msgs = append(msgs, plan)

	case orchestrator.EventChunk:
		msgs = append(msgs, tui.TaskMsg{ID: ev.TaskID, Role: ev.Role, Status: ev.Status, Attempt: ev.Attempt})

	case orchestrator.EventStatus:
		if ev.TaskID != 0 {
			msg := tui.TaskMsg{ID: ev.TaskID, Role: ev.Role, Status: ev.Status, Attempt: ev.Attempt}
			if ev.Error != nil {
				msg.Error = ev.Error.Error()
			}
			msgs = append(msgs, msg)
		}
		if ev.Message != "" {
			msgs = append(msgs, tui.LogMsg{Timestamp: ev.Timestamp, Message: ev.Message, Error: ev.Error != nil})
		}

	case orchestrator.EventError:
		message := ev.Message
		if ev.Error != nil {
			message = ev.Error.Error()
		}
		msgs = append(msgs, tui.LogMsg{Timestamp: ev.Timestamp, Message: message, Error: true})
	}
	return msgs
}

func doneMessage(r *orchestrator.Report) tui.DoneMsg {
	if r.Failed() {
		return tui.DoneMsg{Success: false, Message: fmt.Sprintf("Run %s", r.Status())}
	}
	return tui.DoneMsg{Success: true, Message: "Answer ready"}
}
