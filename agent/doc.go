// Package agent contains member agent implementations for magentic teams.
//
//  1. Identity plumbing (BaseAgent)
//  2. Model-backed conversational member (ChatAgent) with an optional
//     stateful InMemoryThread
//  3. Composite members (SequentialAgent, ParallelAgent) that present a
//     pipeline or fan-out of agents as a single participant
//
// Every type implements core.Agent and can be handed to
// orchestration.NewMagenticOrchestration.
package agent
