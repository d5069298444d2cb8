package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/magentic/core"
)

// Invocation records one call to StubAgent.Invoke.
type Invocation struct {
	Messages []core.Message
	Thread   core.Thread
}

// StubAgent is a core.Agent that answers with a fixed text and records its
// invocations. With Stateful set it returns a StubThread on first use.
type StubAgent struct {
	AgentName        string
	AgentDescription string
	Reply            func(n int) string
	Err              error
	Stateful         bool

	mu          sync.Mutex
	invocations []Invocation
	threads     []*StubThread
}

// NewStubAgent creates a stateless agent replying "<name> reply <n>".
func NewStubAgent(name, description string) *StubAgent {
	return &StubAgent{AgentName: name, AgentDescription: description}
}

// Name implements core.Agent.
func (a *StubAgent) Name() string { return a.AgentName }

// Description implements core.Agent.
func (a *StubAgent) Description() string { return a.AgentDescription }

// Invoke implements core.Agent.
func (a *StubAgent) Invoke(ctx context.Context, messages []core.Message, thread core.Thread) (core.AgentResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	copied := make([]core.Message, len(messages))
	for i, m := range messages {
		copied[i] = m.Clone()
	}
	a.invocations = append(a.invocations, Invocation{Messages: copied, Thread: thread})
	if a.Err != nil {
		return core.AgentResponse{}, a.Err
	}

	n := len(a.invocations)
	text := fmt.Sprintf("%s reply %d", a.AgentName, n)
	if a.Reply != nil {
		text = a.Reply(n)
	}
	resp := core.AgentResponse{Message: core.NewAssistantMessage(a.AgentName, text)}

	if a.Stateful {
		t, _ := thread.(*StubThread)
		if t == nil {
			t = NewStubThread(fmt.Sprintf("%s-thread-%d", a.AgentName, len(a.threads)+1))
			a.threads = append(a.threads, t)
			for _, m := range copied {
				_ = t.OnNewMessage(ctx, m)
			}
		} else {
			for _, m := range copied {
				_ = t.OnNewMessage(ctx, m)
			}
		}
		_ = t.OnNewMessage(ctx, resp.Message)
		resp.Thread = t
	}
	return resp, nil
}

// Invocations returns the recorded invocations.
func (a *StubAgent) Invocations() []Invocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Invocation(nil), a.invocations...)
}

// Threads returns the threads created by the agent.
func (a *StubAgent) Threads() []*StubThread {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*StubThread(nil), a.threads...)
}

// StubThread is an in-memory core.Thread recording what it receives.
type StubThread struct {
	id string

	mu       sync.Mutex
	messages []core.Message
	deleted  bool
}

// NewStubThread creates an empty thread.
func NewStubThread(id string) *StubThread { return &StubThread{id: id} }

// ID implements core.Thread.
func (t *StubThread) ID() string { return t.id }

// OnNewMessage implements core.Thread.
func (t *StubThread) OnNewMessage(_ context.Context, m core.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deleted {
		return fmt.Errorf("thread %s deleted", t.id)
	}
	t.messages = append(t.messages, m.Clone())
	return nil
}

// Delete implements core.Thread.
func (t *StubThread) Delete(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted = true
	return nil
}

// Messages returns the recorded messages.
func (t *StubThread) Messages() []core.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]core.Message(nil), t.messages...)
}

// Deleted reports whether Delete was called.
func (t *StubThread) Deleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleted
}
