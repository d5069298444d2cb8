package core

import "context"

// Agent is the member capability driven by an orchestration.
//
// Name is the correlation key used to address the agent and must be unique
// within one orchestration. Description is fed to the planning model as the
// agent's roster entry and must be non-empty.
//
// Invoke runs the agent once. When thread is nil the agent starts from the
// supplied messages; otherwise the messages are appended to the thread and
// the thread's own transcript is used. Implementations may stream internally
// but must return the final aggregated message.
type Agent interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, messages []Message, thread Thread) (AgentResponse, error)
}

// AgentResponse carries the final message of an invocation and the thread
// that now holds the conversation (nil for stateless agents).
type AgentResponse struct {
	Message Message
	Thread  Thread
}

// Thread is a stateful conversation owned by an agent. Once an agent has
// returned a thread it supersedes any locally tracked history.
type Thread interface {
	ID() string
	// OnNewMessage records a message produced elsewhere in the conversation.
	OnNewMessage(ctx context.Context, m Message) error
	// Delete discards the thread; it must not be used afterwards.
	Delete(ctx context.Context) error
}
