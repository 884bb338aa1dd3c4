// Package tui provides the terminal progress view for swarm runs.
//
// The view is read-only: it shows the current phase, the planned tasks with
// their status and a short activity log. Keys control the run instead of
// editing it: 'p' pauses or resumes task dispatch and 'q' or Ctrl+C cancels
// the run. Once the run is done, 'q' closes the view.
//
// Usage:
//
//	view := tui.NewRunView(objective)
//	view.SetCancelHandler(cancel)
//	program := tui.NewRunProgram(view)
//	go program.Run()
//
//	program.Send(tui.PlanMsg{Tasks: tasks})
//	program.Send(tui.TaskMsg{ID: 1, Status: models.TaskStatusRunning})
//	program.Send(tui.DoneMsg{Success: true, Message: "Answer ready"})
package tui
