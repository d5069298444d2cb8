package runtime

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrActorTypeExists is returned when registering an actor type twice.
	ErrActorTypeExists = errors.New("actor type already registered")
	// ErrUnknownActorType is returned when addressing an actor type that was never registered.
	ErrUnknownActorType = errors.New("unknown actor type")
	// ErrStopped is returned by every operation once the runtime has been stopped.
	ErrStopped = errors.New("runtime stopped")
)

// DefaultKey is the actor key used by Get.
const DefaultKey = "default"

// ActorID addresses one actor instance.
type ActorID struct {
	Type string
	Key  string
}

func (id ActorID) String() string { return id.Type + "/" + id.Key }

// TopicID identifies a broadcast topic. Source becomes the key of the
// actors instantiated for subscribers.
type TopicID struct {
	Type   string
	Source string
}

func (t TopicID) String() string { return t.Type + "/" + t.Source }

// TypeSubscription routes every topic of TopicType to actors of ActorType.
type TypeSubscription struct {
	TopicType string
	ActorType string
}

// MessageContext describes how a message reached an actor.
type MessageContext struct {
	MessageID string
	Sender    *ActorID // nil when sent from outside the runtime
	Topic     *TopicID // nil for direct sends
	IsRPC     bool     // true for SendMessage deliveries
}

// Actor processes messages one at a time, in arrival order.
type Actor interface {
	HandleMessage(ctx context.Context, msg any, mc MessageContext) error
}

// ActorFunc adapts a function to the Actor interface.
type ActorFunc func(ctx context.Context, msg any, mc MessageContext) error

// HandleMessage implements Actor.
func (f ActorFunc) HandleMessage(ctx context.Context, msg any, mc MessageContext) error {
	return f(ctx, msg, mc)
}

// Host is handed to factories so actors can address the runtime on their
// own behalf. Messages published through a Host are never delivered back to
// the publishing actor.
type Host interface {
	ID() ActorID
	PublishMessage(ctx context.Context, msg any, topic TopicID) error
	SendMessage(ctx context.Context, msg any, to ActorID) error
}

// Factory creates the actor for a newly addressed ActorID.
type Factory func(host Host) (Actor, error)

// ErrorHandler receives failures of handlers for published messages, which
// have no caller to return the error to.
type ErrorHandler func(ctx context.Context, id ActorID, msg any, err error)

// HandlerError wraps an error returned (or a panic raised) by an actor.
type HandlerError struct {
	Actor ActorID
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("actor %s: %v", e.Actor, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
