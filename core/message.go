package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the conversational role of a message author.
type Role string

const (
	// RoleSystem marks instructions for a model.
	RoleSystem Role = "system"
	// RoleUser marks user (or orchestrator-as-user) turns.
	RoleUser Role = "user"
	// RoleAssistant marks model or agent turns.
	RoleAssistant Role = "assistant"
	// RoleTool marks tool output.
	RoleTool Role = "tool"
)

// Message is the unit of conversation exchanged between the orchestration,
// its member agents and the completion service. After it has been appended
// to a History or broadcast it should be treated as immutable; use Clone to
// derive a modified copy.
type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Name      string            `json:"name,omitempty"` // Author name (agent or component)
	Parts     []Part            `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewMessage creates a message with a single text part.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Parts:     []Part{TextPart{Text: text}},
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message { return NewMessage(RoleUser, text) }

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(text string) Message { return NewMessage(RoleSystem, text) }

// NewAssistantMessage creates an assistant message authored by name.
func NewAssistantMessage(name, text string) Message {
	m := NewMessage(RoleAssistant, text)
	m.Name = name
	return m
}

// Text concatenates all text parts in order.
func (m Message) Text() string {
	if len(m.Parts) == 1 {
		if tp, ok := m.Parts[0].(TextPart); ok {
			return tp.Text
		}
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Clone returns a deep copy whose parts and metadata can be mutated without
// affecting the receiver. Data part values are copied through nested
// map[string]any, []any, map[string]string and []string; other values, such
// as pointers, are shared.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = clonePart(p)
		}
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// NewID generates a new unique identifier for messages, runs and threads.
func NewID() string { return uuid.NewString() }
