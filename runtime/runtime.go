package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/magentic/logging"
)

// Options configures a Runtime.
type Options struct {
	// Logger receives debug traces of actor lifecycle and delivery.
	// Defaults to a no-op logger.
	Logger logging.Logger

	// ErrorHandler is called when a handler for a published message fails.
	// Defaults to logging the error.
	ErrorHandler ErrorHandler
}

// Runtime is an in-process actor runtime.
//
// Each actor instance owns one goroutine and one unbounded FIFO mailbox, so
// an actor handles exactly one message at a time while different actors run
// concurrently. Instances are created lazily the first time they are
// addressed, either directly or through a subscription.
//
// Example:
//
//	rt := runtime.New()
//	defer rt.Stop(context.Background())
//
//	_ = rt.Register(ctx, "echo", func(h runtime.Host) (runtime.Actor, error) {
//	    return runtime.ActorFunc(func(ctx context.Context, msg any, mc runtime.MessageContext) error {
//	        fmt.Println(h.ID(), msg)
//	        return nil
//	    }), nil
//	})
//	id, _ := rt.Get(ctx, "echo")
//	_ = rt.SendMessage(ctx, "hello", id)
type Runtime struct {
	logger  logging.Logger
	onError ErrorHandler

	mu            sync.Mutex
	factories     map[string]Factory
	instances     map[ActorID]*instance
	subscriptions []TypeSubscription
	stopped       bool

	stop chan struct{}
	wg   sync.WaitGroup
}

type instance struct {
	id    ActorID
	actor Actor
	box   *mailbox
	quit  chan struct{}
}

// New creates a Runtime ready for registration.
func New(optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Runtime{
		logger:    opts.Logger,
		onError:   opts.ErrorHandler,
		factories: make(map[string]Factory),
		instances: make(map[ActorID]*instance),
		stop:      make(chan struct{}),
	}
	if r.onError == nil {
		r.onError = func(_ context.Context, id ActorID, _ any, err error) {
			r.logger.Error("runtime.handler.error", "actor", id.String(), "error", err.Error())
		}
	}
	return r
}

// Register makes actorType addressable. The factory runs once per ActorID,
// on first delivery.
func (r *Runtime) Register(ctx context.Context, actorType string, f Factory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if actorType == "" || f == nil {
		return fmt.Errorf("register: actor type and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if _, ok := r.factories[actorType]; ok {
		return fmt.Errorf("register %q: %w", actorType, ErrActorTypeExists)
	}
	r.factories[actorType] = f
	r.logger.Debug("runtime.actor_type.registered", "actor_type", actorType)
	return nil
}

// Get returns the address of the default instance of actorType.
func (r *Runtime) Get(ctx context.Context, actorType string) (ActorID, error) {
	return r.GetWithKey(ctx, actorType, DefaultKey)
}

// GetWithKey returns the address of the instance of actorType with the given key.
func (r *Runtime) GetWithKey(ctx context.Context, actorType, key string) (ActorID, error) {
	if err := ctx.Err(); err != nil {
		return ActorID{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ActorID{}, ErrStopped
	}
	if _, ok := r.factories[actorType]; !ok {
		return ActorID{}, fmt.Errorf("get %q: %w", actorType, ErrUnknownActorType)
	}
	return ActorID{Type: actorType, Key: key}, nil
}

// AddSubscription routes topics of sub.TopicType to actors of sub.ActorType.
// Adding the same subscription twice is a no-op.
func (r *Runtime) AddSubscription(ctx context.Context, sub TypeSubscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}
	if _, ok := r.factories[sub.ActorType]; !ok {
		return fmt.Errorf("subscribe %q: %w", sub.ActorType, ErrUnknownActorType)
	}
	for _, s := range r.subscriptions {
		if s == sub {
			return nil
		}
	}
	r.subscriptions = append(r.subscriptions, sub)
	r.logger.Debug("runtime.subscription.added", "topic_type", sub.TopicType, "actor_type", sub.ActorType)
	return nil
}

// Unregister removes actorType, its subscriptions and its instances. Queued
// direct sends to those instances fail with ErrStopped. It does not wait for
// in-flight handlers, so an actor may unregister its own type.
func (r *Runtime) Unregister(ctx context.Context, actorType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrStopped
	}
	if _, ok := r.factories[actorType]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("unregister %q: %w", actorType, ErrUnknownActorType)
	}
	delete(r.factories, actorType)
	r.subscriptions = slices.DeleteFunc(r.subscriptions, func(s TypeSubscription) bool {
		return s.ActorType == actorType
	})
	var removed []*instance
	for id, in := range r.instances {
		if id.Type == actorType {
			removed = append(removed, in)
			delete(r.instances, id)
		}
	}
	r.mu.Unlock()

	for _, in := range removed {
		close(in.quit)
	}
	r.logger.Debug("runtime.actor_type.unregistered", "actor_type", actorType, "instances", len(removed))
	return nil
}

// ActorTypes returns the registered actor types in sorted order.
func (r *Runtime) ActorTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// SendMessage delivers msg to one actor and waits for its handler to finish,
// returning the handler's error.
func (r *Runtime) SendMessage(ctx context.Context, msg any, to ActorID) error {
	return r.send(ctx, msg, to, nil)
}

// PublishMessage enqueues msg for every actor subscribed to the topic type.
// It returns once the message is queued, not handled. Handler failures are
// reported to the ErrorHandler.
func (r *Runtime) PublishMessage(ctx context.Context, msg any, topic TopicID) error {
	return r.publish(ctx, msg, topic, nil)
}

// Stop rejects new work, fails queued direct sends with ErrStopped and waits
// for in-flight handlers to return or ctx to expire.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.stop)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Debug("runtime.stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) send(ctx context.Context, msg any, to ActorID, sender *ActorID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sender != nil && *sender == to {
		return fmt.Errorf("actor %s cannot send to itself", to)
	}

	in, err := r.instance(to)
	if err != nil {
		return err
	}

	reply := make(chan error, 1)
	e := envelope{
		ctx:   ctx,
		msg:   msg,
		mc:    MessageContext{MessageID: uuid.NewString(), Sender: sender, IsRPC: true},
		reply: reply,
	}
	if !in.box.push(e) {
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) publish(ctx context.Context, msg any, topic TopicID, sender *ActorID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrStopped
	}
	var targets []ActorID
	for _, s := range r.subscriptions {
		if s.TopicType != topic.Type {
			continue
		}
		id := ActorID{Type: s.ActorType, Key: topic.Source}
		if sender != nil && *sender == id {
			continue
		}
		targets = append(targets, id)
	}
	r.mu.Unlock()

	messageID := uuid.NewString()
	for _, id := range targets {
		in, err := r.instance(id)
		if err != nil {
			return err
		}
		t := topic
		e := envelope{
			ctx: ctx,
			msg: msg,
			mc:  MessageContext{MessageID: messageID, Sender: sender, Topic: &t},
		}
		if !in.box.push(e) {
			return ErrStopped
		}
	}
	return nil
}

// instance returns the running instance for id, creating it on first use.
func (r *Runtime) instance(id ActorID) (*instance, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrStopped
	}
	if in, ok := r.instances[id]; ok {
		r.mu.Unlock()
		return in, nil
	}
	factory, ok := r.factories[id.Type]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("actor %s: %w", id, ErrUnknownActorType)
	}

	// The factory runs outside the lock so it may call back into the runtime.
	actor, err := factory(&host{r: r, id: id})
	if err != nil {
		return nil, fmt.Errorf("create actor %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil, ErrStopped
	}
	if in, ok := r.instances[id]; ok {
		return in, nil
	}

	in := &instance{id: id, actor: actor, box: newMailbox(), quit: make(chan struct{})}
	r.instances[id] = in
	r.wg.Add(1)
	go r.run(in)

	r.logger.Debug("runtime.actor.created", "actor", id.String())
	return in, nil
}

func (r *Runtime) run(in *instance) {
	defer r.wg.Done()

	for {
		select {
		case <-in.box.notify:
		case <-r.stop:
			r.reject(in.box.close())
			return
		case <-in.quit:
			r.reject(in.box.close())
			return
		}

		batch := in.box.drain()
		for i, e := range batch {
			select {
			case <-r.stop:
			case <-in.quit:
			default:
				r.deliver(in, e)
				continue
			}
			r.reject(batch[i:])
			r.reject(in.box.close())
			return
		}
	}
}

func (r *Runtime) deliver(in *instance, e envelope) {
	if err := e.ctx.Err(); err != nil {
		if e.reply != nil {
			e.reply <- err
			return
		}
		r.logger.Debug("runtime.message.dropped", "actor", in.id.String(), "reason", err.Error())
		return
	}

	err := r.invoke(in, e)
	if e.reply != nil {
		e.reply <- err
		return
	}
	if err != nil {
		r.onError(e.ctx, in.id, e.msg, err)
	}
}

func (r *Runtime) invoke(in *instance, e envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("runtime.handler.panic", "actor", in.id.String(), "recover", rec)
			err = &HandlerError{Actor: in.id, Err: panicError(rec)}
		}
	}()

	if herr := in.actor.HandleMessage(e.ctx, e.msg, e.mc); herr != nil {
		return &HandlerError{Actor: in.id, Err: herr}
	}
	return nil
}

func (r *Runtime) reject(batch []envelope) {
	for _, e := range batch {
		if e.reply != nil {
			e.reply <- ErrStopped
		}
	}
}

type host struct {
	r  *Runtime
	id ActorID
}

func (h *host) ID() ActorID { return h.id }

func (h *host) PublishMessage(ctx context.Context, msg any, topic TopicID) error {
	return h.r.publish(ctx, msg, topic, &h.id)
}

func (h *host) SendMessage(ctx context.Context, msg any, to ActorID) error {
	return h.r.send(ctx, msg, to, &h.id)
}
