package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/model"
)

// mockModelImpl replies with the text configured via On("Generate", ...).
type mockModelImpl struct{ mock.Mock }

func (m *mockModelImpl) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(ctx, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	if err := args.Error(1); err != nil {
		errCh <- err
	} else {
		respCh <- model.Response{
			Message:      core.NewMessage(core.RoleAssistant, args.String(0)),
			FinishReason: "stop",
		}
	}
	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *mockModelImpl) Info() model.Info { return model.Info{Name: "mock", Provider: "test"} }

type opaqueThread struct{}

func (opaqueThread) ID() string { return "opaque" }
func (opaqueThread) OnNewMessage(context.Context, core.Message) error { return nil }
func (opaqueThread) Delete(context.Context) error { return nil }

func TestChatAgent_NewAgent(t *testing.T) {
	llm := &mockModelImpl{}
	a := NewChatAgent("coder", llm)

	assert.Equal(t, "coder", a.Name())
	assert.Empty(t, a.Description())
	assert.Same(t, llm, a.Model())
	assert.False(t, a.IsStreamingEnabled())
	assert.False(t, a.IsStateful())

	text, err := a.instruction.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "You are coder, a helpful AI assistant.", text)
}

func TestChatAgent_InvokeStateless(t *testing.T) {
	llm := &mockModelImpl{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "Be terse." && len(req.Messages) == 2 && !req.Stream
	})).Return("done", nil).Once()

	a := NewChatAgent("coder", llm, func(o *ChatAgentOptions) {
		o.Description = "writes code"
		o.Instruction = NewInstructionFromText("Be terse.")
	})

	resp, err := a.Invoke(context.Background(), []core.Message{
		core.NewUserMessage("task"),
		core.NewUserMessage("Transferred to coder, adopt the persona immediately."),
	}, nil)
	require.NoError(t, err)

	assert.Nil(t, resp.Thread)
	assert.Equal(t, "done", resp.Message.Text())
	assert.Equal(t, "coder", resp.Message.Name)
	assert.Equal(t, core.RoleAssistant, resp.Message.Role)
	llm.AssertExpectations(t)
}

func TestChatAgent_InvokeStateful(t *testing.T) {
	llm := model.NewMockModel("m")
	llm.Enqueue("first", "second")

	a := NewChatAgent("coder", llm, func(o *ChatAgentOptions) {
		o.Stateful = true
	})

	resp, err := a.Invoke(context.Background(), []core.Message{core.NewUserMessage("a"), core.NewUserMessage("b")}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Thread)

	thread, ok := resp.Thread.(*InMemoryThread)
	require.True(t, ok)
	assert.Equal(t, 3, thread.Len())

	require.NoError(t, thread.OnNewMessage(context.Background(), core.NewAssistantMessage("reviewer", "looks good")))

	resp, err = a.Invoke(context.Background(), []core.Message{core.NewUserMessage("again")}, resp.Thread)
	require.NoError(t, err)
	assert.Same(t, thread, resp.Thread)
	assert.Equal(t, "second", resp.Message.Text())
	assert.Equal(t, 6, thread.Len())

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Messages, 5)
	assert.Equal(t, "looks good", reqs[1].Messages[3].Text())
}

func TestChatAgent_UnsupportedThread(t *testing.T) {
	a := NewChatAgent("coder", model.NewMockModel("m"))

	_, err := a.Invoke(context.Background(), []core.Message{core.NewUserMessage("a")}, opaqueThread{})
	assert.ErrorIs(t, err, ErrUnsupportedThread)
}

func TestChatAgent_DeletedThread(t *testing.T) {
	a := NewChatAgent("coder", model.NewMockModel("m"))
	thread := NewInMemoryThread()
	require.NoError(t, thread.Delete(context.Background()))

	_, err := a.Invoke(context.Background(), []core.Message{core.NewUserMessage("a")}, thread)
	assert.ErrorIs(t, err, ErrThreadDeleted)
}

func TestChatAgent_MaxHistoryMessages(t *testing.T) {
	llm := model.NewMockModel("m")
	a := NewChatAgent("coder", llm, func(o *ChatAgentOptions) {
		o.MaxHistoryMessages = 2
	})

	msgs := []core.Message{
		core.NewUserMessage("1"),
		core.NewUserMessage("2"),
		core.NewUserMessage("3"),
	}
	_, err := a.Invoke(context.Background(), msgs, nil)
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, "2", reqs[0].Messages[0].Text())
	assert.Equal(t, "3", reqs[0].Messages[1].Text())
}

func TestChatAgent_Streaming(t *testing.T) {
	llm := model.NewMockModel("m")
	llm.Enqueue("hey")

	var chunks []string
	a := NewChatAgent("coder", llm, func(o *ChatAgentOptions) {
		o.EnableStreaming = true
		o.OnChunk = func(r model.Response) { chunks = append(chunks, r.Message.Text()) }
	})

	resp, err := a.Invoke(context.Background(), []core.Message{core.NewUserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hey", resp.Message.Text())
	assert.Equal(t, []string{"h", "e", "y"}, chunks)
	assert.True(t, llm.Requests()[0].Stream)
}

func TestChatAgent_Errors(t *testing.T) {
	t.Run("model", func(t *testing.T) {
		boom := errors.New("boom")
		llm := &mockModelImpl{}
		llm.On("Generate", mock.Anything, mock.Anything).Return("", boom)

		_, err := NewChatAgent("coder", llm).Invoke(context.Background(), []core.Message{core.NewUserMessage("hi")}, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("instruction", func(t *testing.T) {
		boom := errors.New("no instruction")
		a := NewChatAgent("coder", &mockModelImpl{}, func(o *ChatAgentOptions) {
			o.Instruction = NewInstructionFromFunc(func(context.Context) (string, error) { return "", boom })
		})

		_, err := a.Invoke(context.Background(), []core.Message{core.NewUserMessage("hi")}, nil)
		assert.ErrorIs(t, err, boom)
	})
}
