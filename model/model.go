package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/magentic/core"
)

// ErrNoResponse is returned by Complete when a stream closes without any output.
var ErrNoResponse = errors.New("model returned no response")

// ResponseFormat constrains a completion to a JSON schema. Name identifies
// the schema to providers that require one (OpenAI json_schema name,
// Anthropic forced tool name).
type ResponseFormat struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
}

// Settings carries per-call generation parameters.
// A nil Temperature or zero MaxTokens defers to the provider adapter's defaults.
type Settings struct {
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int64           `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Clone returns a copy whose ResponseFormat can be replaced independently.
func (s Settings) Clone() Settings {
	out := s
	if s.Temperature != nil {
		t := *s.Temperature
		out.Temperature = &t
	}
	if s.ResponseFormat != nil {
		rf := *s.ResponseFormat
		out.ResponseFormat = &rf
	}
	return out
}

// Request captures the normalized model input.
type Request struct {
	Instructions string         `json:"instructions,omitempty"` // Sent as a leading system message
	Messages     []core.Message `json:"messages"`
	Settings     Settings       `json:"settings"`
	Stream       bool           `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the completion service. Generate emits zero or more partial
// responses followed by exactly one final response, or a single error.
// Both channels are closed when generation ends.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// StructuredOutputModel is implemented by models able to guarantee replies
// that conform to Settings.ResponseFormat. Wrappers implement it
// unconditionally and report the wrapped model's capability through
// SupportsResponseFormat.
type StructuredOutputModel interface {
	Model
	SupportsResponseFormat() bool
}

// SupportsResponseFormat reports whether m can honour a ResponseFormat.
func SupportsResponseFormat(m Model) bool {
	sm, ok := m.(StructuredOutputModel)
	return ok && sm.SupportsResponseFormat()
}

// Complete drains a Generate call and returns the final message. When a
// provider only emits partial chunks the chunks are concatenated.
func Complete(ctx context.Context, m Model, req Request) (core.Message, error) {
	req.Stream = false
	return collect(ctx, m, req)
}

// Stream behaves like Complete but asks the provider to stream, forwarding
// each partial chunk to onChunk before returning the aggregated message.
func Stream(ctx context.Context, m Model, req Request, onChunk func(Response)) (core.Message, error) {
	req.Stream = true
	return collect(ctx, m, req, onChunk)
}

func collect(ctx context.Context, m Model, req Request, observers ...func(Response)) (core.Message, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final   *core.Message
		partial strings.Builder
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				partial.WriteString(resp.Message.Text())
				for _, fn := range observers {
					fn(resp)
				}
				continue
			}
			msg := resp.Message
			final = &msg
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return core.Message{}, fmt.Errorf("%s generate: %w", m.Info().Provider, err)
			}
		}
	}

	if final == nil {
		if partial.Len() == 0 {
			return core.Message{}, ErrNoResponse
		}
		msg := core.NewMessage(core.RoleAssistant, partial.String())
		final = &msg
	}
	if final.Role == "" {
		final.Role = core.RoleAssistant
	}
	if final.ID == "" {
		final.ID = core.NewID()
	}
	return *final, nil
}
