package orchestration

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/observability"
	"github.com/hupe1980/magentic/runtime"
)

// agentActor wraps one member. It keeps the member's view of the transcript,
// either locally or in the thread the member returned.
type agentActor struct {
	host       runtime.Host
	agent      core.Agent
	topic      runtime.TopicID
	onResponse func(core.Message)
	onError    func(err error)

	logger  logging.Logger
	tracer  trace.Tracer
	metrics *observability.Instruments

	history *core.History
	thread  core.Thread
}

// HandleMessage implements runtime.Actor.
func (a *agentActor) HandleMessage(ctx context.Context, msg any, _ runtime.MessageContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s: %w: %v", a.agent.Name(), ErrPanic, r)
			a.logger.Error("magentic.agent.panic", "recover", r)
			a.onError(err)
		}
	}()

	m, ok := msg.(Message)
	if !ok {
		a.logger.Debug("magentic.agent.unhandled", "type", fmt.Sprintf("%T", msg))
		return nil
	}

	switch m := m.(type) {
	case ResponseMessage:
		err = a.handleResponse(ctx, m)
	case RequestMessage:
		err = a.handleRequest(ctx, m)
	case ResetMessage:
		err = a.handleReset(ctx)
	case StartMessage:
		// The task reaches members through the broadcast task ledger.
	}

	if err != nil {
		a.onError(err)
	}
	return err
}

func (a *agentActor) handleResponse(ctx context.Context, m ResponseMessage) error {
	a.logger.Debug("magentic.agent.response_received", "from", m.Body.Name)

	var msgs []core.Message
	if m.Body.Role != core.RoleUser {
		msgs = append(msgs, core.NewUserMessage(transferredTo(m.Body.Name)))
	}
	msgs = append(msgs, m.Body.Clone())

	if a.thread == nil {
		for _, msg := range msgs {
			a.history.Add(msg)
		}
		return nil
	}
	for _, msg := range msgs {
		if err := a.thread.OnNewMessage(ctx, msg); err != nil {
			return fmt.Errorf("agent %s thread: %w", a.agent.Name(), err)
		}
	}
	return nil
}

func (a *agentActor) handleRequest(ctx context.Context, m RequestMessage) error {
	if m.AgentName != a.agent.Name() {
		return nil
	}
	a.logger.Debug("magentic.agent.requested")

	// Steer the member towards its own persona.
	steer := core.NewUserMessage(transferredTo(a.agent.Name()) + ", adopt the persona immediately.")

	ctx, span := a.tracer.Start(ctx, "magentic.agent.invoke", trace.WithAttributes(
		attribute.String("magentic.agent", a.agent.Name()),
		attribute.Bool("magentic.thread", a.thread != nil),
	))
	defer span.End()

	var (
		resp core.AgentResponse
		err  error
	)
	if a.thread == nil {
		a.history.Add(steer)
		resp, err = a.agent.Invoke(ctx, a.history.Messages(), nil)
	} else {
		resp, err = a.agent.Invoke(ctx, []core.Message{steer}, a.thread)
	}
	a.metrics.AgentInvoked(ctx, a.agent.Name(), err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("agent %s: %w", a.agent.Name(), err)
	}
	if resp.Thread != nil {
		a.thread = resp.Thread
	}

	reply := resp.Message
	if reply.Role == "" {
		reply.Role = core.RoleAssistant
	}
	if reply.Name == "" {
		reply.Name = a.agent.Name()
	}
	if reply.ID == "" {
		reply.ID = core.NewID()
	}

	a.logger.Debug("magentic.agent.responded", "chars", len(reply.Text()))
	if a.onResponse != nil {
		a.onResponse(reply.Clone())
	}

	return a.host.PublishMessage(ctx, ResponseMessage{Body: reply}, a.topic)
}

func (a *agentActor) handleReset(ctx context.Context) error {
	a.logger.Debug("magentic.agent.reset")
	a.history.Clear()
	if a.thread == nil {
		return nil
	}
	thread := a.thread
	a.thread = nil
	if err := thread.Delete(ctx); err != nil {
		return fmt.Errorf("agent %s delete thread: %w", a.agent.Name(), err)
	}
	return nil
}
