package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/observability"
	"github.com/hupe1980/magentic/runtime"
)

// Runtime is the part of the actor runtime the orchestration uses.
// *runtime.Runtime implements it.
type Runtime interface {
	Register(ctx context.Context, actorType string, f runtime.Factory) error
	Get(ctx context.Context, actorType string) (runtime.ActorID, error)
	SendMessage(ctx context.Context, msg any, to runtime.ActorID) error
	AddSubscription(ctx context.Context, sub runtime.TypeSubscription) error
}

// Unregisterer is implemented by runtimes that can drop actor types.
// *runtime.Runtime implements it.
type Unregisterer interface {
	Unregister(ctx context.Context, actorType string) error
}

// Options configures a MagenticOrchestration.
type Options struct {
	// Name and Description identify the orchestration in traces.
	Name        string
	Description string

	// AgentResponseCallback, if set, receives a copy of every member response.
	AgentResponseCallback func(core.Message)

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// TracerProvider and MeterProvider default to the global providers.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// MagenticOrchestration coordinates a team of member agents under a Manager.
//
// A run registers one actor per member plus one manager actor on a fresh
// topic, then sends the task to the manager. The manager plans, publishes the
// task ledger and repeatedly judges progress, asking one member at a time to
// speak, until the request is satisfied, a limit is reached, or stalling
// forces a replan and reset.
//
// Example:
//
//	orch, err := orchestration.NewMagenticOrchestration(members, manager)
//	if err != nil {
//	    return err
//	}
//	rt := runtime.New()
//	defer rt.Stop(context.Background())
//
//	res, err := orch.Invoke(ctx, core.NewUserMessage("Compare these two papers"), rt)
//	if err != nil {
//	    return err
//	}
//	answer, err := res.Get(ctx)
type MagenticOrchestration struct {
	name        string
	description string
	members     []core.Agent
	manager     Manager
	roster      Roster

	agentResponseCallback func(core.Message)

	logger  logging.Logger
	tracer  trace.Tracer
	metrics *observability.Instruments
}

// NewMagenticOrchestration validates the team and creates the orchestration.
// Every member needs a unique name and a non-empty description.
func NewMagenticOrchestration(
	members []core.Agent,
	manager Manager,
	optFns ...func(o *Options),
) (*MagenticOrchestration, error) {
	opts := Options{
		Name:   "MagenticOrchestration",
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if manager == nil {
		return nil, errors.New("manager is required")
	}
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	if err := manager.Limits().Validate(); err != nil {
		return nil, err
	}

	roster := make(Roster, 0, len(members))
	for _, m := range members {
		if m == nil || m.Name() == "" {
			return nil, errors.New("members must be non-nil and named")
		}
		if strings.TrimSpace(m.Description()) == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingDescription, m.Name())
		}
		if roster.Has(m.Name()) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, m.Name())
		}
		roster = append(roster, Participant{Name: m.Name(), Description: m.Description()})
	}

	metrics, err := observability.NewInstruments(opts.MeterProvider)
	if err != nil {
		return nil, err
	}

	return &MagenticOrchestration{
		name:                  opts.Name,
		description:           opts.Description,
		members:               append([]core.Agent(nil), members...),
		manager:               manager,
		roster:                roster,
		agentResponseCallback: opts.AgentResponseCallback,
		logger:                opts.Logger,
		tracer:                observability.Tracer(opts.TracerProvider),
		metrics:               metrics,
	}, nil
}

// Name returns the orchestration name.
func (o *MagenticOrchestration) Name() string { return o.name }

// Description returns the orchestration description.
func (o *MagenticOrchestration) Description() string { return o.description }

// Roster returns the participants in member order.
func (o *MagenticOrchestration) Roster() Roster {
	return append(Roster(nil), o.roster...)
}

// Invoke starts a run of task on rt and returns its pending Result.
// Cancelling ctx cancels the run. Once the result settles, the run's actor
// types are removed from rt if it implements Unregisterer; otherwise they
// stay registered for the lifetime of rt.
func (o *MagenticOrchestration) Invoke(ctx context.Context, task core.Message, rt Runtime) (*Result, error) {
	if err := validateTask(task); err != nil {
		return nil, err
	}

	topicType := core.NewID()
	ctx, span := o.tracer.Start(ctx, "magentic.run", trace.WithAttributes(
		attribute.String("magentic.orchestration", o.name),
		attribute.String("magentic.run_id", topicType),
		attribute.Int("magentic.members", len(o.members)),
	))
	logger := logging.With(o.logger, "run_id", topicType)

	res := newResult(func(outcome observability.Outcome, err error) {
		o.metrics.RunFinished(context.WithoutCancel(ctx), outcome)
		span.SetAttributes(attribute.String("magentic.outcome", string(outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Debug("magentic.run.failed", "error", err.Error())
		} else {
			logger.Debug("magentic.run.finished", "outcome", string(outcome))
		}
		span.End()
	})

	if err := o.prepare(ctx, rt, topicType, res.resolve, res.fail); err != nil {
		res.fail(err)
		return nil, err
	}

	go func() {
		if err := o.Start(ctx, task, rt, topicType); err != nil {
			res.fail(err)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			res.fail(ctx.Err())
		case <-res.Done():
		}
		o.release(context.WithoutCancel(ctx), rt, topicType, logger)
	}()

	return res, nil
}

// release drops the manager's state for the run on topicType and
// unregisters the run's actor types.
func (o *MagenticOrchestration) release(ctx context.Context, rt Runtime, topicType string, logger logging.Logger) {
	if c, ok := o.manager.(RunCloser); ok {
		c.CloseRun(topicType)
	}

	u, ok := rt.(Unregisterer)
	if !ok {
		return
	}
	types := make([]string, 0, len(o.members)+1)
	for _, member := range o.members {
		types = append(types, agentActorType(member, topicType))
	}
	types = append(types, managerActorType(topicType))

	for _, actorType := range types {
		if err := u.Unregister(ctx, actorType); err != nil && !errors.Is(err, runtime.ErrStopped) {
			logger.Debug("magentic.release.failed", "actor_type", actorType, "error", err.Error())
		}
	}
}

// Prepare registers the member and manager actors for topicType on rt and
// subscribes them to the topic. onResult receives the final message once;
// onError receives handler failures. Callers of Prepare own the registered
// actor types and remove them with Unregister when done.
func (o *MagenticOrchestration) Prepare(
	ctx context.Context,
	rt Runtime,
	topicType string,
	onResult func(core.Message),
	onError func(error),
) error {
	return o.prepare(ctx, rt, topicType, func(msg core.Message, _ observability.Outcome) {
		if onResult != nil {
			onResult(msg)
		}
	}, onError)
}

func (o *MagenticOrchestration) prepare(
	ctx context.Context,
	rt Runtime,
	topicType string,
	onResult func(core.Message, observability.Outcome),
	onError func(error),
) error {
	if onError == nil {
		onError = func(error) {}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, member := range o.members {
		g.Go(func() error {
			return rt.Register(gctx, agentActorType(member, topicType), o.agentFactory(member, topicType, onError))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("register members: %w", err)
	}

	if err := rt.Register(ctx, managerActorType(topicType), o.managerFactory(topicType, onResult, onError)); err != nil {
		return fmt.Errorf("register manager: %w", err)
	}

	subs := make([]runtime.TypeSubscription, 0, len(o.members)+1)
	for _, member := range o.members {
		subs = append(subs, runtime.TypeSubscription{TopicType: topicType, ActorType: agentActorType(member, topicType)})
	}
	subs = append(subs, runtime.TypeSubscription{TopicType: topicType, ActorType: managerActorType(topicType)})

	g, gctx = errgroup.WithContext(ctx)
	for _, sub := range subs {
		g.Go(func() error { return rt.AddSubscription(gctx, sub) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	o.logger.Debug("magentic.prepared", "run_id", topicType, "members", len(o.members))
	return nil
}

// Start sends task to the manager actor registered for topicType and waits
// for the manager to finish handling it.
func (o *MagenticOrchestration) Start(ctx context.Context, task core.Message, rt Runtime, topicType string) error {
	if err := validateTask(task); err != nil {
		return err
	}
	id, err := rt.Get(ctx, managerActorType(topicType))
	if err != nil {
		return err
	}
	return rt.SendMessage(ctx, StartMessage{Body: task.Clone()}, id)
}

func (o *MagenticOrchestration) managerFactory(
	topicType string,
	onResult func(core.Message, observability.Outcome),
	onError func(error),
) runtime.Factory {
	return func(h runtime.Host) (runtime.Actor, error) {
		return &managerActor{
			host:     h,
			manager:  o.manager,
			limits:   o.manager.Limits(),
			roster:   o.Roster(),
			topic:    runtime.TopicID{Type: topicType, Source: h.ID().Key},
			onResult: onResult,
			onError:  onError,
			logger:   logging.With(o.logger, "actor", h.ID().Type, "run_id", topicType),
			tracer:   o.tracer,
			metrics:  o.metrics,
		}, nil
	}
}

func (o *MagenticOrchestration) agentFactory(member core.Agent, topicType string, onError func(error)) runtime.Factory {
	return func(h runtime.Host) (runtime.Actor, error) {
		return &agentActor{
			host:       h,
			agent:      member,
			topic:      runtime.TopicID{Type: topicType, Source: h.ID().Key},
			onResponse: o.agentResponseCallback,
			onError:    onError,
			logger:     logging.With(o.logger, "actor", h.ID().Type, "run_id", topicType),
			tracer:     o.tracer,
			metrics:    o.metrics,
			history:    core.NewHistory(),
		}, nil
	}
}

func agentActorType(a core.Agent, topicType string) string {
	return a.Name() + "_" + topicType
}

func managerActorType(topicType string) string {
	return managerActorTypeName + "_" + topicType
}

func validateTask(task core.Message) error {
	if strings.TrimSpace(task.Text()) == "" {
		return ErrInvalidTask
	}
	return nil
}
