package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/model"
)

// ErrUnsupportedThread is returned when ChatAgent is asked to continue a
// thread that cannot replay its transcript.
var ErrUnsupportedThread = errors.New("thread does not expose its transcript")

// ChatAgentOptions configures a ChatAgent instance.
//
// Use functional options with NewChatAgent to override defaults.
type ChatAgentOptions struct {
	Description        string
	Instruction        Instruction
	Settings           model.Settings
	EnableStreaming    bool
	OnChunk            func(model.Response) // Receives partial chunks when streaming
	MaxHistoryMessages int                  // Zero keeps the full transcript
	Stateful           bool                 // Return an InMemoryThread on first use
	Logger             logging.Logger
}

// ChatAgent answers with a single chat completion over the conversation it
// has seen so far.
//
// A stateless ChatAgent is driven by the history the caller passes in. A
// stateful one returns an InMemoryThread on its first invocation and
// continues it afterwards.
type ChatAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	settings           model.Settings
	enableStreaming    bool
	onChunk            func(model.Response)
	maxHistoryMessages int
	stateful           bool
	logger             logging.Logger
}

// NewChatAgent creates a chat agent with sensible defaults.
//
// Example:
//
//	coder := agent.NewChatAgent("coder", openai.NewModel(), func(o *agent.ChatAgentOptions) {
//	    o.Description = "Writes and explains Go code"
//	    o.Instruction = agent.NewInstructionFromText("You are a senior Go engineer.")
//	})
func NewChatAgent(name string, llm model.Model, optFns ...func(o *ChatAgentOptions)) *ChatAgent {
	opts := ChatAgentOptions{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ChatAgent{
		BaseAgent:          NewBaseAgent(name, opts.Description),
		llm:                llm,
		instruction:        opts.Instruction,
		settings:           opts.Settings.Clone(),
		enableStreaming:    opts.EnableStreaming,
		onChunk:            opts.OnChunk,
		maxHistoryMessages: opts.MaxHistoryMessages,
		stateful:           opts.Stateful,
		logger:             opts.Logger,
	}
}

// Model returns the language model instance.
func (a *ChatAgent) Model() model.Model { return a.llm }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ChatAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsStateful returns whether the agent keeps its conversation in a thread.
func (a *ChatAgent) IsStateful() bool { return a.stateful }

// Invoke implements core.Agent.
func (a *ChatAgent) Invoke(ctx context.Context, messages []core.Message, thread core.Thread) (core.AgentResponse, error) {
	history, transcript, err := a.prepareHistory(ctx, messages, thread)
	if err != nil {
		return core.AgentResponse{}, err
	}

	if a.maxHistoryMessages > 0 && len(history) > a.maxHistoryMessages {
		history = history[len(history)-a.maxHistoryMessages:]
	}

	instructions, err := a.instruction.Resolve(ctx)
	if err != nil {
		return core.AgentResponse{}, fmt.Errorf("agent %s instruction: %w", a.Name(), err)
	}

	a.logger.Debug("agent.invoke.start",
		"agent", a.Name(),
		"messages", len(history),
		"stream", a.enableStreaming,
		"stateful", transcript != nil,
	)

	req := model.Request{
		Instructions: instructions,
		Messages:     history,
		Settings:     a.settings.Clone(),
	}

	var reply core.Message
	if a.enableStreaming {
		onChunk := a.onChunk
		if onChunk == nil {
			onChunk = func(model.Response) {}
		}
		reply, err = model.Stream(ctx, a.llm, req, onChunk)
	} else {
		reply, err = model.Complete(ctx, a.llm, req)
	}
	if err != nil {
		a.logger.Error("agent.invoke.error", "agent", a.Name(), "error", err.Error())
		return core.AgentResponse{}, err
	}

	reply.Role = core.RoleAssistant
	reply.Name = a.Name()

	resp := core.AgentResponse{Message: reply}
	if transcript != nil {
		if err := transcript.OnNewMessage(ctx, reply); err != nil {
			return core.AgentResponse{}, err
		}
		resp.Thread = transcript
	}

	a.logger.Debug("agent.invoke.complete", "agent", a.Name(), "chars", len(reply.Text()))
	return resp, nil
}

// prepareHistory records messages in the thread, if any, and returns the
// transcript the model sees.
func (a *ChatAgent) prepareHistory(ctx context.Context, messages []core.Message, thread core.Thread) ([]core.Message, Transcript, error) {
	var transcript Transcript
	switch {
	case thread != nil:
		t, ok := thread.(Transcript)
		if !ok {
			return nil, nil, fmt.Errorf("agent %s: %w", a.Name(), ErrUnsupportedThread)
		}
		transcript = t
	case a.stateful:
		transcript = NewInMemoryThread()
	default:
		return messages, nil, nil
	}

	for _, m := range messages {
		if err := transcript.OnNewMessage(ctx, m); err != nil {
			return nil, nil, fmt.Errorf("agent %s thread: %w", a.Name(), err)
		}
	}
	return transcript.Messages(), transcript, nil
}
