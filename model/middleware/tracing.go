package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/magentic/model"
)

const tracerName = "github.com/hupe1980/magentic/model"

type traced struct {
	base
	tracer trace.Tracer
}

// Tracing returns a middleware recording one span per generate call. A nil
// tracer uses the global tracer provider.
func Tracing(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return func(next model.Model) model.Model {
		if next == nil {
			return nil
		}
		return &traced{base: base{next: next}, tracer: tracer}
	}
}

func (t *traced) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	info := t.next.Info()
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", info.Provider),
		attribute.String("llm.model", info.Name),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Bool("llm.stream", req.Stream),
	}
	if rf := req.Settings.ResponseFormat; rf != nil {
		attrs = append(attrs, attribute.String("llm.response_format", rf.Name))
	}

	ctx, span := t.tracer.Start(ctx, "model.generate", trace.WithAttributes(attrs...))
	respCh, errCh := t.next.Generate(ctx, req)

	return forward(ctx, respCh, errCh, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	})
}
