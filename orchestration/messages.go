package orchestration

import "github.com/hupe1980/magentic/core"

// Message is the closed set of messages exchanged on a run's topic.
type Message interface {
	isMagenticMessage()
}

// StartMessage starts a run with the user's task.
type StartMessage struct {
	Body core.Message
}

// ResponseMessage carries a transcript entry, from the manager or a member.
type ResponseMessage struct {
	Body core.Message
}

// RequestMessage asks the named member to speak next. Every member receives
// it; only the named one acts.
type RequestMessage struct {
	AgentName string
}

// ResetMessage tells members to drop their history and threads.
type ResetMessage struct{}

func (StartMessage) isMagenticMessage()    {}
func (ResponseMessage) isMagenticMessage() {}
func (RequestMessage) isMagenticMessage()  {}
func (ResetMessage) isMagenticMessage()    {}
