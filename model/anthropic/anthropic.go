// Package anthropic provides a model wrapper for the Anthropic Claude API.
//
// Schema-constrained output is implemented by offering a single tool whose
// input schema is the requested schema and forcing the model to call it; the
// tool input is returned as the message text.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var _ model.StructuredOutputModel = (*Model)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// SupportsResponseFormat implements model.StructuredOutputModel.
func (m *Model) SupportsResponseFormat() bool { return true }

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		// Forced tool use is not streamed; the tool input arrives as JSON deltas.
		if req.Stream && req.Settings.ResponseFormat == nil {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		text, err := extractText(resp, req.Settings.ResponseFormat)
		if err != nil {
			errCh <- err
			return
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Message:      core.NewMessage(core.RoleAssistant, text),
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	temperature := m.opts.Temperature
	if req.Settings.Temperature != nil {
		temperature = *req.Settings.Temperature
	}
	maxTokens := m.opts.MaxTokens
	if req.Settings.MaxTokens > 0 {
		maxTokens = req.Settings.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}

	if systemBlocks := extractSystem(req); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	if rf := req.Settings.ResponseFormat; rf != nil {
		params.Tools = []anthropic.ToolUnionParam{buildSchemaTool(rf)}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: rf.Name},
		}
	}

	return params
}

// handleStreaming forwards text deltas as partial responses and emits the
// aggregated text once the stream ends.
func (m *Model) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	var (
		textBuilder  strings.Builder
		id           string
		finishReason = "stop"
	)
	for stream.Next() {
		switch ev := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			id = ev.Message.ID
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				textBuilder.WriteString(delta.Text)
				out <- model.Response{
					ID:      id,
					Partial: true,
					Message: core.Message{
						Role:  core.RoleAssistant,
						Parts: []core.Part{core.TextPart{Text: delta.Text}},
					},
				}
			}
		case anthropic.MessageDeltaEvent:
			if ev.Delta.StopReason != "" {
				finishReason = string(ev.Delta.StopReason)
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}
	out <- model.Response{
		ID:           id,
		Message:      core.NewMessage(core.RoleAssistant, textBuilder.String()),
		FinishReason: finishReason,
	}
}

// extractText returns the concatenated text blocks, or the forced tool input
// as JSON when a response format was requested.
func extractText(resp *anthropic.Message, rf *model.ResponseFormat) (string, error) {
	var b strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			b.WriteString(block.AsText().Text)
		case "tool_use":
			toolBlock := block.AsToolUse()
			if rf == nil || toolBlock.Name != rf.Name {
				continue
			}
			args, err := json.Marshal(toolBlock.Input)
			if err != nil {
				return "", fmt.Errorf("anthropic: encode %s input: %w", rf.Name, err)
			}
			return string(args), nil
		}
	}
	if rf != nil {
		return "", fmt.Errorf("anthropic: model did not call %s", rf.Name)
	}
	return b.String(), nil
}

// buildMessages converts magentic messages to Anthropic message format.
// System messages are sent separately; tool messages are treated as user turns.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, msg := range msgs {
		text := msg.Text()
		if msg.Role == core.RoleSystem || text == "" {
			continue
		}
		block := anthropic.NewTextBlock(text)
		if msg.Role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}

	return messages
}

// extractSystem collects request instructions and system messages.
func extractSystem(req model.Request) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam

	if req.Instructions != "" {
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if msg.Role != core.RoleSystem {
			continue
		}
		if text := msg.Text(); text != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: text})
		}
	}

	return systemBlocks
}

// buildSchemaTool exposes a response format as the single tool the model must call.
func buildSchemaTool(rf *model.ResponseFormat) anthropic.ToolUnionParam {
	inputSchema := anthropic.ToolInputSchemaParam{
		Type: constant.Object("object"),
	}
	if properties, ok := rf.Schema["properties"]; ok {
		inputSchema.Properties = properties
	}
	switch req := rf.Schema["required"].(type) {
	case []string:
		inputSchema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				inputSchema.Required = append(inputSchema.Required, s)
			}
		}
	}

	tool := anthropic.ToolUnionParamOfTool(inputSchema, rf.Name)
	if rf.Description != "" && tool.OfTool != nil {
		tool.OfTool.Description = anthropic.String(rf.Description)
	}
	return tool
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     string(m.opts.Model),
		Provider: "anthropic",
	}
}
