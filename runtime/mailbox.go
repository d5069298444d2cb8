package runtime

import (
	"context"
	"sync"
)

type envelope struct {
	ctx   context.Context
	msg   any
	mc    MessageContext
	reply chan error // nil for published messages
}

// mailbox is an unbounded FIFO queue. Senders never block, so an actor
// publishing to a busy peer cannot deadlock the run.
type mailbox struct {
	mu     sync.Mutex
	queue  []envelope
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(e envelope) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns all queued envelopes.
func (m *mailbox) drain() []envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.queue
	m.queue = nil
	return batch
}

// close rejects further pushes and returns what was still queued.
func (m *mailbox) close() []envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	rest := m.queue
	m.queue = nil
	return rest
}
