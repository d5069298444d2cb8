package core

// History is an ordered chat transcript. It is not safe for concurrent use;
// owners that share it across goroutines must hand out Clone copies.
type History struct {
	messages []Message
}

// NewHistory creates a history seeded with the given messages.
func NewHistory(msgs ...Message) *History {
	h := &History{}
	for _, m := range msgs {
		h.Add(m)
	}
	return h
}

// Add appends a message.
func (h *History) Add(m Message) { h.messages = append(h.messages, m) }

// Len returns the number of messages.
func (h *History) Len() int { return len(h.messages) }

// Last returns the most recent message and false when the history is empty.
func (h *History) Last() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// Messages returns a copy of the message slice.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Clear drops every message.
func (h *History) Clear() { h.messages = nil }

// Clone returns a deep copy of the history.
func (h *History) Clone() *History {
	out := &History{messages: make([]Message, len(h.messages))}
	for i, m := range h.messages {
		out.messages[i] = m.Clone()
	}
	return out
}
