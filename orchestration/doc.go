// Package orchestration implements Magentic orchestration: a manager that
// plans a task, keeps a ledger of facts and plan, and coordinates a team of
// member agents one speaker at a time.
//
// A run consists of an outer loop and an inner loop. The outer loop
// broadcasts the current task ledger to every member. The inner loop runs
// once per member response: the manager judges progress with a progress
// ledger, then either prepares the final answer, replans and resets the team
// when the conversation stalls too often, or asks the next speaker to act.
// Round and reset limits end a run with a notice instead of an answer.
//
// Participants are actors on a runtime (see package runtime). Every run gets
// its own topic, so several runs can share one runtime.
//
// Core pieces:
//   - Manager: the planning strategy; StandardManager uses a chat model with
//     structured output for the progress ledger
//   - MagenticOrchestration: validates the team and drives a run via Invoke
//   - Result: the pending final message of a run
//
// Example:
//
//	mgr, _ := orchestration.NewStandardManager(openai.NewModel())
//	orch, _ := orchestration.NewMagenticOrchestration([]core.Agent{researcher, coder}, mgr)
//
//	rt := runtime.New()
//	defer rt.Stop(context.Background())
//
//	res, _ := orch.Invoke(ctx, core.NewUserMessage("Summarize the latest release notes"), rt)
//	answer, err := res.Get(ctx)
package orchestration
