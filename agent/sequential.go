package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/magentic/core"
)

// ErrNoChildren is returned when a composite agent has nothing to run.
var ErrNoChildren = errors.New("composite agent has no children")

// SequentialAgent presents a pipeline of agents as one participant.
//
// Each child sees the conversation plus the replies of the children before
// it; the last reply is returned under the sequential agent's name. Threads
// are not propagated, so the pipeline is stateless from the caller's view.
//
// SequentialAgent is ideal for:
//   - Draft and review pairs
//   - Workflows requiring specific execution order
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent creates a new sequential execution coordinator.
func NewSequentialAgent(name, description string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name, description),
		children:  children,
	}
}

// Invoke implements core.Agent. Errors stop further processing immediately.
func (s *SequentialAgent) Invoke(ctx context.Context, messages []core.Message, _ core.Thread) (core.AgentResponse, error) {
	if len(s.children) == 0 {
		return core.AgentResponse{}, ErrNoChildren
	}

	history := make([]core.Message, 0, len(messages)+len(s.children))
	for _, m := range messages {
		history = append(history, m.Clone())
	}

	var last core.Message
	for _, child := range s.children {
		resp, err := child.Invoke(ctx, history, nil)
		if err != nil {
			return core.AgentResponse{}, fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
		last = resp.Message
		history = append(history, last)
	}

	reply := last.Clone()
	reply.Role = core.RoleAssistant
	reply.Name = s.Name()
	return core.AgentResponse{Message: reply}, nil
}
