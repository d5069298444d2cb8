package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/magentic/core"
)

// ParallelAgent fans the conversation out to several agents at once and
// answers with their replies combined, in child order, as one message.
//
// ParallelAgent is ideal for:
//   - Gathering independent opinions or sources
//   - I/O bound members that can run concurrently
type ParallelAgent struct {
	BaseAgent
	children []core.Agent
	timeout  time.Duration // Zero means no timeout
}

// NewParallelAgent creates a new parallel execution coordinator.
func NewParallelAgent(name, description string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(name, description),
		children:  children,
		timeout:   timeout,
	}
}

// Invoke implements core.Agent. The first child error cancels the siblings
// and is returned.
func (p *ParallelAgent) Invoke(ctx context.Context, messages []core.Message, _ core.Thread) (core.AgentResponse, error) {
	if len(p.children) == 0 {
		return core.AgentResponse{}, ErrNoChildren
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	replies := make([]core.Message, len(p.children))
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range p.children {
		// Each branch gets its own copy of the conversation.
		branch := make([]core.Message, len(messages))
		for j, m := range messages {
			branch[j] = m.Clone()
		}
		g.Go(func() error {
			resp, err := child.Invoke(gctx, branch, nil)
			if err != nil {
				return fmt.Errorf("parallel execution failed for agent %s: %w", child.Name(), err)
			}
			replies[i] = resp.Message
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.AgentResponse{}, err
	}

	sections := make([]string, len(replies))
	for i, r := range replies {
		sections[i] = fmt.Sprintf("[%s]\n%s", p.children[i].Name(), r.Text())
	}
	return core.AgentResponse{
		Message: core.NewAssistantMessage(p.Name(), strings.Join(sections, "\n\n")),
	}, nil
}
