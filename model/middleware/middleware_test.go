package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/model"
)

func request(text string) model.Request {
	return model.Request{Messages: []core.Message{core.NewUserMessage(text)}}
}

func TestChain_PreservesCapability(t *testing.T) {
	wrapped := Chain(model.NewMockModel("m"), RateLimit(600, 1), Tracing(nil))
	assert.True(t, model.SupportsResponseFormat(wrapped))
	assert.Equal(t, "mock", wrapped.Info().Provider)

	// Embedding the interface hides SupportsResponseFormat from the mock.
	var plain model.Model = struct{ model.Model }{model.NewMockModel("m")}
	assert.False(t, model.SupportsResponseFormat(Chain(plain, Tracing(nil))))
}

func TestRateLimit_BlocksUntilContextDeadline(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	m := Chain(model.NewMockModel("m"), WithLimiter(limiter))

	msg, err := model.Complete(context.Background(), m, request("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", msg.Text())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = model.Complete(ctx, m, request("again"))
	require.Error(t, err)
}

func TestTracing_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mock := model.NewMockModel("m")
	m := Chain(mock, Tracing(tp.Tracer("test")))

	_, err := model.Complete(context.Background(), m, request("hi"))
	require.NoError(t, err)

	_, err = model.Complete(context.Background(), m, model.Request{})
	require.Error(t, err)

	require.Eventually(t, func() bool { return len(sr.Ended()) == 2 }, time.Second, 5*time.Millisecond)
	spans := sr.Ended()
	assert.Equal(t, "model.generate", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
