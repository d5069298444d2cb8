package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects messages per actor.
type recorder struct {
	mu   sync.Mutex
	seen map[ActorID][]any
}

func newRecorder() *recorder { return &recorder{seen: make(map[ActorID][]any)} }

func (r *recorder) add(id ActorID, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[id] = append(r.seen[id], msg)
}

func (r *recorder) get(id ActorID) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.seen[id]...)
}

func recordingFactory(rec *recorder) Factory {
	return func(h Host) (Actor, error) {
		return ActorFunc(func(_ context.Context, msg any, _ MessageContext) error {
			rec.add(h.ID(), msg)
			return nil
		}), nil
	}
}

func newTestRuntime(t *testing.T, optFns ...func(o *Options)) *Runtime {
	t.Helper()
	rt := New(optFns...)
	t.Cleanup(func() { _ = rt.Stop(context.Background()) })
	return rt
}

func TestRegister_DuplicateType(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	require.NoError(t, rt.Register(ctx, "a", recordingFactory(newRecorder())))
	err := rt.Register(ctx, "a", recordingFactory(newRecorder()))
	assert.ErrorIs(t, err, ErrActorTypeExists)
}

func TestGet_UnknownType(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownActorType)
}

func TestSendMessage_ReturnsHandlerError(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	boom := errors.New("boom")
	require.NoError(t, rt.Register(ctx, "failing", func(Host) (Actor, error) {
		return ActorFunc(func(context.Context, any, MessageContext) error { return boom }), nil
	}))

	id, err := rt.Get(ctx, "failing")
	require.NoError(t, err)
	assert.Equal(t, ActorID{Type: "failing", Key: DefaultKey}, id)

	err = rt.SendMessage(ctx, "x", id)
	require.ErrorIs(t, err, boom)
	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, id, herr.Actor)
}

func TestSendMessage_RecoversPanic(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	require.NoError(t, rt.Register(ctx, "panicky", func(Host) (Actor, error) {
		return ActorFunc(func(context.Context, any, MessageContext) error { panic("kaboom") }), nil
	}))
	id, _ := rt.Get(ctx, "panicky")

	err := rt.SendMessage(ctx, "x", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// The actor goroutine survives and keeps serving.
	err = rt.SendMessage(ctx, "y", id)
	require.Error(t, err)
}

func TestPublishMessage_SkipsPublisher(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	rec := newRecorder()

	require.NoError(t, rt.Register(ctx, "speaker", func(h Host) (Actor, error) {
		return ActorFunc(func(ctx context.Context, msg any, mc MessageContext) error {
			rec.add(h.ID(), msg)
			if mc.IsRPC {
				return h.PublishMessage(ctx, "broadcast", TopicID{Type: "chat", Source: h.ID().Key})
			}
			return nil
		}), nil
	}))
	require.NoError(t, rt.Register(ctx, "listener", recordingFactory(rec)))
	require.NoError(t, rt.AddSubscription(ctx, TypeSubscription{TopicType: "chat", ActorType: "speaker"}))
	require.NoError(t, rt.AddSubscription(ctx, TypeSubscription{TopicType: "chat", ActorType: "listener"}))

	speaker, _ := rt.Get(ctx, "speaker")
	require.NoError(t, rt.SendMessage(ctx, "go", speaker))

	listener := ActorID{Type: "listener", Key: DefaultKey}
	require.Eventually(t, func() bool { return len(rec.get(listener)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []any{"broadcast"}, rec.get(listener))

	// Give a stray self-delivery time to show up.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []any{"go"}, rec.get(speaker))
}

func TestPublishMessage_TopicSourceBecomesKey(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	rec := newRecorder()
	require.NoError(t, rt.Register(ctx, "listener", recordingFactory(rec)))
	require.NoError(t, rt.AddSubscription(ctx, TypeSubscription{TopicType: "chat", ActorType: "listener"}))
	require.NoError(t, rt.PublishMessage(ctx, "hi", TopicID{Type: "chat", Source: "run-1"}))
	require.NoError(t, rt.PublishMessage(ctx, "other", TopicID{Type: "news", Source: "run-1"}))

	id := ActorID{Type: "listener", Key: "run-1"}
	require.Eventually(t, func() bool { return len(rec.get(id)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []any{"hi"}, rec.get(id))
}

func TestMailbox_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	rec := newRecorder()
	require.NoError(t, rt.Register(ctx, "listener", func(h Host) (Actor, error) {
		return ActorFunc(func(_ context.Context, msg any, _ MessageContext) error {
			time.Sleep(time.Millisecond)
			rec.add(h.ID(), msg)
			return nil
		}), nil
	}))
	require.NoError(t, rt.AddSubscription(ctx, TypeSubscription{TopicType: "t", ActorType: "listener"}))

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, rt.PublishMessage(ctx, i, TopicID{Type: "t", Source: DefaultKey}))
	}

	id := ActorID{Type: "listener", Key: DefaultKey}
	require.Eventually(t, func() bool { return len(rec.get(id)) == n }, 2*time.Second, 5*time.Millisecond)
	for i, msg := range rec.get(id) {
		assert.Equal(t, i, msg)
	}
}

func TestErrorHandler_ReceivesPublishedFailures(t *testing.T) {
	ctx := context.Background()
	got := make(chan error, 1)
	rt := newTestRuntime(t, func(o *Options) {
		o.ErrorHandler = func(_ context.Context, id ActorID, _ any, err error) {
			assert.Equal(t, "failing", id.Type)
			got <- err
		}
	})
	boom := errors.New("boom")
	require.NoError(t, rt.Register(ctx, "failing", func(Host) (Actor, error) {
		return ActorFunc(func(context.Context, any, MessageContext) error { return boom }), nil
	}))
	require.NoError(t, rt.AddSubscription(ctx, TypeSubscription{TopicType: "t", ActorType: "failing"}))
	require.NoError(t, rt.PublishMessage(ctx, "x", TopicID{Type: "t", Source: DefaultKey}))

	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("error handler not called")
	}
}

func TestInstance_SingleInstancePerID(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	var (
		mu    sync.Mutex
		calls int
	)
	require.NoError(t, rt.Register(ctx, "a", func(Host) (Actor, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return ActorFunc(func(context.Context, any, MessageContext) error { return nil }), nil
	}))
	id, _ := rt.Get(ctx, "a")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rt.SendMessage(ctx, "x", id))
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	// A racing creation may run the factory again, but only one instance is kept.
	assert.GreaterOrEqual(t, calls, 1)
	rt.mu.Lock()
	assert.Len(t, rt.instances, 1)
	rt.mu.Unlock()
}

func TestSendMessage_ContextCancelled(t *testing.T) {
	rt := newTestRuntime(t)
	release := make(chan struct{})
	require.NoError(t, rt.Register(context.Background(), "slow", func(Host) (Actor, error) {
		return ActorFunc(func(context.Context, any, MessageContext) error {
			<-release
			return nil
		}), nil
	}))
	defer close(release)
	id, _ := rt.Get(context.Background(), "slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rt.SendMessage(ctx, "x", id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStop_RejectsFurtherWork(t *testing.T) {
	ctx := context.Background()
	rt := New()
	require.NoError(t, rt.Register(ctx, "a", recordingFactory(newRecorder())))
	id, _ := rt.Get(ctx, "a")
	require.NoError(t, rt.SendMessage(ctx, "x", id))

	require.NoError(t, rt.Stop(ctx))
	require.NoError(t, rt.Stop(ctx))

	assert.ErrorIs(t, rt.SendMessage(ctx, "y", id), ErrStopped)
	assert.ErrorIs(t, rt.PublishMessage(ctx, "y", TopicID{Type: "t"}), ErrStopped)
	assert.ErrorIs(t, rt.Register(ctx, "b", recordingFactory(newRecorder())), ErrStopped)
}

func TestHost_CannotSendToItself(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	require.NoError(t, rt.Register(ctx, "a", func(h Host) (Actor, error) {
		return ActorFunc(func(ctx context.Context, msg any, _ MessageContext) error {
			return h.SendMessage(ctx, msg, h.ID())
		}), nil
	}))
	id, _ := rt.Get(ctx, "a")
	err := rt.SendMessage(ctx, "x", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot send to itself")
}

func TestUnregister_RemovesTypeSubscriptionsAndInstances(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	rec := newRecorder()
	require.NoError(t, rt.Register(ctx, "a", recordingFactory(rec)))
	require.NoError(t, rt.Register(ctx, "b", recordingFactory(rec)))
	require.NoError(t, rt.AddSubscription(ctx, TypeSubscription{TopicType: "t", ActorType: "a"}))
	require.NoError(t, rt.AddSubscription(ctx, TypeSubscription{TopicType: "t", ActorType: "b"}))

	topic := TopicID{Type: "t", Source: "s"}
	require.NoError(t, rt.PublishMessage(ctx, "first", topic))
	idA := ActorID{Type: "a", Key: "s"}
	idB := ActorID{Type: "b", Key: "s"}
	require.Eventually(t, func() bool { return len(rec.get(idA)) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, rt.Unregister(ctx, "a"))
	assert.Equal(t, []string{"b"}, rt.ActorTypes())

	require.NoError(t, rt.PublishMessage(ctx, "second", topic))
	require.Eventually(t, func() bool { return len(rec.get(idB)) == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.get(idA), 1)

	_, err := rt.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrUnknownActorType)
	assert.ErrorIs(t, rt.SendMessage(ctx, "x", idA), ErrUnknownActorType)
	assert.ErrorIs(t, rt.Unregister(ctx, "a"), ErrUnknownActorType)

	// The type can be registered again afresh.
	require.NoError(t, rt.Register(ctx, "a", recordingFactory(rec)))
	require.NoError(t, rt.SendMessage(ctx, "again", idA))
	assert.Equal(t, []any{"first", "again"}, rec.get(idA))
}

func TestUnregister_FromOwnHandler(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t)
	require.NoError(t, rt.Register(ctx, "self", func(h Host) (Actor, error) {
		return ActorFunc(func(ctx context.Context, _ any, _ MessageContext) error {
			return rt.Unregister(ctx, h.ID().Type)
		}), nil
	}))
	id, _ := rt.Get(ctx, "self")

	require.NoError(t, rt.SendMessage(ctx, "bye", id))
	assert.Empty(t, rt.ActorTypes())
}
