package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/model"
)

func TestBuildParams_SplitsSystemMessages(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	params := m.buildParams(model.Request{
		Instructions: "be brief",
		Messages: []core.Message{
			core.NewSystemMessage("sys"),
			core.NewUserMessage("task"),
			core.NewAssistantMessage("agent_a", "answer"),
		},
	})

	require.Len(t, params.System, 2)
	assert.Equal(t, "be brief", params.System[0].Text)
	assert.Equal(t, "sys", params.System[1].Text)
	require.Len(t, params.Messages, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params.Messages[1].Role)
	assert.Empty(t, params.Tools)
}

func TestBuildParams_ResponseFormatForcesTool(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	params := m.buildParams(model.Request{
		Messages: []core.Message{core.NewUserMessage("task")},
		Settings: model.Settings{ResponseFormat: &model.ResponseFormat{
			Name: "progress_ledger",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"a": map[string]any{"type": "string"}},
				"required":   []any{"a"},
			},
		}},
	})

	require.Len(t, params.Tools, 1)
	require.NotNil(t, params.Tools[0].OfTool)
	assert.Equal(t, "progress_ledger", params.Tools[0].OfTool.Name)
	assert.Equal(t, []string{"a"}, params.Tools[0].OfTool.InputSchema.Required)
	require.NotNil(t, params.ToolChoice.OfTool)
	assert.Equal(t, "progress_ledger", params.ToolChoice.OfTool.Name)
}

func TestModel_Capabilities(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	assert.True(t, model.SupportsResponseFormat(m))
	assert.Equal(t, "anthropic", m.Info().Provider)
}
