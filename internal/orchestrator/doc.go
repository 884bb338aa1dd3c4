// Package orchestrator manages the coordination of agents working on one objective.
//
// A run moves through four phases, never backwards:
//   - Planning: a coordinator agent splits the objective into a task graph
//   - Executing: the Scheduler runs each task once its dependencies have finished
//   - Synthesizing: the results are condensed into a single answer
//   - Done: drift is checked, a terminal event is emitted and the run is stored
//
// Failures at a phase boundary come back as a PhaseResult and are either
// recovered (fallback plan, raw results) or end the run. Run itself never
// fails; the Report explains what happened.
//
// Example usage:
//
//	client, _ := api.NewClient(api.ClientConfig{})
//	orch := orchestrator.New(api.NewBackend(client))
//	report := orch.Run(ctx, "Compare three Go HTTP routers")
//	fmt.Println(report.Answer)
package orchestrator
