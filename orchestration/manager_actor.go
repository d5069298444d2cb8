package orchestration

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/observability"
	"github.com/hupe1980/magentic/runtime"
)

// ManagerName authors every message the manager adds to the transcript.
const ManagerName = "MagenticManager"

// managerActorTypeName prefixes the manager's actor type.
const managerActorTypeName = "MagenticManagerActor"

// managerActor drives the plan, judge and request loop of one run.
type managerActor struct {
	host     runtime.Host
	manager  Manager
	limits   Limits
	roster   Roster
	topic    runtime.TopicID
	onResult func(final core.Message, outcome observability.Outcome)
	onError  func(err error)

	logger  logging.Logger
	tracer  trace.Tracer
	metrics *observability.Instruments

	rc         *RunContext
	ledger     core.Message // current task ledger message
	terminated bool
}

// HandleMessage implements runtime.Actor.
func (a *managerActor) HandleMessage(ctx context.Context, msg any, _ runtime.MessageContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("manager: %w: %v", ErrPanic, r)
			a.logger.Error("magentic.manager.panic", "recover", r)
			a.fail(err)
		}
	}()

	m, ok := msg.(Message)
	if !ok {
		a.logger.Debug("magentic.manager.unhandled", "type", fmt.Sprintf("%T", msg))
		return nil
	}

	switch m := m.(type) {
	case StartMessage:
		err = a.handleStart(ctx, m)
	case ResponseMessage:
		err = a.handleResponse(ctx, m)
	case RequestMessage, ResetMessage:
		// Only the manager sends these.
	}

	if err != nil {
		a.fail(err)
	}
	return err
}

func (a *managerActor) handleStart(ctx context.Context, m StartMessage) error {
	if a.rc != nil {
		return ErrAlreadyStarted
	}
	a.logger.Debug("magentic.manager.start")

	a.rc = NewRunContext(m.Body.Clone(), a.roster)
	a.rc.RunID = a.topic.Type

	ledger, err := timed(ctx, a, "plan", func(ctx context.Context) (core.Message, error) {
		return a.manager.Plan(ctx, a.rc.Clone())
	})
	if err != nil {
		return err
	}
	a.ledger = ledger

	return a.runOuterLoop(ctx)
}

func (a *managerActor) handleResponse(ctx context.Context, m ResponseMessage) error {
	if a.rc == nil {
		return ErrNotStarted
	}
	if a.terminated {
		a.logger.Debug("magentic.manager.ignored", "reason", "terminated", "from", m.Body.Name)
		return nil
	}

	if m.Body.Role != core.RoleUser {
		a.rc.History.Add(core.NewUserMessage(transferredTo(m.Body.Name)))
	}
	a.rc.History.Add(m.Body.Clone())

	restart, err := a.runInnerLoop(ctx)
	if err != nil || !restart {
		return err
	}
	return a.runOuterLoop(ctx)
}

// runOuterLoop publishes the current task ledger and runs inner loop rounds
// until one ends without a replan.
func (a *managerActor) runOuterLoop(ctx context.Context) error {
	for {
		msg := core.NewAssistantMessage(ManagerName, a.ledger.Text())
		// The actor does not receive its own broadcasts.
		a.rc.History.Add(msg)

		a.logger.Debug("magentic.manager.task_ledger", "reset_count", a.rc.ResetCount)
		if err := a.host.PublishMessage(ctx, ResponseMessage{Body: msg.Clone()}, a.topic); err != nil {
			return err
		}

		restart, err := a.runInnerLoop(ctx)
		if err != nil || !restart {
			return err
		}
	}
}

// runInnerLoop runs one round. It reports true when a replan happened and
// the outer loop must start over.
func (a *managerActor) runInnerLoop(ctx context.Context) (bool, error) {
	if notice, exceeded := a.limits.Exceeded(a.rc); exceeded {
		a.logger.Debug("magentic.manager.limit", "notice", notice,
			"round_count", a.rc.RoundCount, "reset_count", a.rc.ResetCount)
		outcome := observability.OutcomeMaxResets
		if notice == MaxRoundCountMessage {
			outcome = observability.OutcomeMaxRounds
		}
		a.finish(core.NewAssistantMessage(ManagerName, notice), outcome)
		return false, nil
	}

	a.rc.RoundCount++
	a.metrics.Round(ctx)
	a.logger.Debug("magentic.manager.round", "round_count", a.rc.RoundCount, "stall_count", a.rc.StallCount)

	ledger, err := timed(ctx, a, "progress_ledger", func(ctx context.Context) (*ProgressLedger, error) {
		return a.manager.CreateProgressLedger(ctx, a.rc.Clone())
	})
	if err != nil {
		return false, err
	}
	if ledger == nil {
		return false, fmt.Errorf("%w: manager returned no ledger", ErrInvalidProgressLedger)
	}

	if ledger.IsRequestSatisfied.Answer.Bool() {
		a.logger.Debug("magentic.manager.satisfied", "reason", ledger.IsRequestSatisfied.Reason)
		final, err := timed(ctx, a, "final_answer", func(ctx context.Context) (core.Message, error) {
			return a.manager.PrepareFinalAnswer(ctx, a.rc.Clone())
		})
		if err != nil {
			return false, err
		}
		a.finish(final, observability.OutcomeAnswered)
		return false, nil
	}

	stalling := ledger.IsStalling()
	if stalling {
		a.metrics.Stall(ctx)
	}
	a.rc.UpdateStallCount(stalling)

	if a.rc.StallCount > a.limits.MaxStallCount {
		a.logger.Debug("magentic.manager.stalled", "stall_count", a.rc.StallCount)
		newLedger, err := timed(ctx, a, "replan", func(ctx context.Context) (core.Message, error) {
			return a.manager.Replan(ctx, a.rc.Clone())
		})
		if err != nil {
			return false, err
		}
		if err := a.host.PublishMessage(ctx, ResetMessage{}, a.topic); err != nil {
			return false, err
		}
		a.rc.Reset()
		a.metrics.Reset(ctx)
		a.ledger = newLedger
		a.logger.Debug("magentic.manager.reset", "reset_count", a.rc.ResetCount)
		return true, nil
	}

	instruction := core.NewAssistantMessage(ManagerName, ledger.InstructionOrQuestion.Answer.String())
	a.rc.History.Add(instruction)
	if err := a.host.PublishMessage(ctx, ResponseMessage{Body: instruction.Clone()}, a.topic); err != nil {
		return false, err
	}

	next, ok := ledger.NextSpeaker.Answer.Text()
	if !ok || !a.roster.Has(next) {
		return false, &UnknownSpeakerError{Name: ledger.NextSpeaker.Answer.String()}
	}

	a.logger.Debug("magentic.manager.next_speaker", "agent", next)
	return false, a.host.PublishMessage(ctx, RequestMessage{AgentName: next}, a.topic)
}

func (a *managerActor) finish(final core.Message, outcome observability.Outcome) {
	a.terminated = true
	a.closeRun()
	a.onResult(final, outcome)
}

func (a *managerActor) fail(err error) {
	a.terminated = true
	a.closeRun()
	a.onError(err)
}

// closeRun releases per-run strategy state once the run is over.
func (a *managerActor) closeRun() {
	if a.rc == nil {
		return
	}
	if c, ok := a.manager.(RunCloser); ok {
		c.CloseRun(a.rc.RunID)
	}
}

// timed wraps a manager call in a span and records its duration.
func timed[T any](ctx context.Context, a *managerActor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := a.tracer.Start(ctx, "magentic.manager."+op, trace.WithAttributes(
		attribute.Int("magentic.round_count", a.rc.RoundCount),
		attribute.Int("magentic.stall_count", a.rc.StallCount),
		attribute.Int("magentic.reset_count", a.rc.ResetCount),
	))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	a.metrics.ManagerCall(ctx, op, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

func transferredTo(name string) string {
	return "Transferred to " + name
}
