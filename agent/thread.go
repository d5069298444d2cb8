package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/magentic/core"
)

// ErrThreadDeleted is returned when a deleted thread is used.
var ErrThreadDeleted = errors.New("thread has been deleted")

// Transcript is a thread that can replay its conversation. ChatAgent only
// continues threads that implement it.
type Transcript interface {
	core.Thread
	Messages() []core.Message
}

// InMemoryThread is a volatile conversation thread. It is safe for
// concurrent access; messages are cloned on the way in and out to prevent
// external mutation of internal state.
type InMemoryThread struct {
	id string

	mu       sync.RWMutex
	messages []core.Message
	deleted  bool
}

var _ Transcript = (*InMemoryThread)(nil)

// NewInMemoryThread constructs an empty thread with a fresh id.
func NewInMemoryThread() *InMemoryThread {
	return &InMemoryThread{id: core.NewID()}
}

// ID implements core.Thread.
func (t *InMemoryThread) ID() string { return t.id }

// OnNewMessage implements core.Thread.
func (t *InMemoryThread) OnNewMessage(_ context.Context, m core.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deleted {
		return ErrThreadDeleted
	}
	t.messages = append(t.messages, m.Clone())
	return nil
}

// Delete implements core.Thread. Deleting twice is a no-op.
func (t *InMemoryThread) Delete(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted = true
	t.messages = nil
	return nil
}

// Messages returns a copy of the conversation.
func (t *InMemoryThread) Messages() []core.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (t *InMemoryThread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
