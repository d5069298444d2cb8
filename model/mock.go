package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/magentic/core"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
//
// Replies are chosen in order of precedence: the next queued reply (Enqueue),
// a canned reply keyed by the last message text (AddResponse), then an echo.
// MockModel claims structured output support; queue JSON replies when the
// caller sets a ResponseFormat.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	queue     []string
	responses map[string]string
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends replies returned by subsequent calls, first in first out.
func (m *MockModel) Enqueue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, replies...)
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockModel) next(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	if len(m.queue) > 0 {
		reply := m.queue[0]
		m.queue = m.queue[1:]
		return reply, nil
	}
	input := req.Messages[len(req.Messages)-1].Text()
	if reply, ok := m.responses[input]; ok {
		return reply, nil
	}
	return fmt.Sprintf("Mock response to: %s", input), nil
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		full, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Message: core.Message{Role: core.RoleAssistant, Parts: []core.Part{core.TextPart{Text: string(r)}}},
				}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			ID:           core.NewID(),
			Message:      core.NewMessage(core.RoleAssistant, full),
			FinishReason: "stop",
		}:
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// SupportsResponseFormat implements StructuredOutputModel.
func (m *MockModel) SupportsResponseFormat() bool { return true }
