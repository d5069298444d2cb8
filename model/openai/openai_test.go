package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/model"
)

func newTestModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient(option.WithAPIKey("test"))
	return NewModelFromClient(&client, optFns...)
}

func TestBuildParams_MapsRolesAndInstructions(t *testing.T) {
	m := newTestModel()
	params := m.buildParams(model.Request{
		Instructions: "be brief",
		Messages: []core.Message{
			core.NewSystemMessage("sys"),
			core.NewUserMessage("task"),
			core.NewAssistantMessage("agent_a", "answer"),
			core.NewMessage(core.RoleTool, "tool output"),
		},
	})

	require.Len(t, params.Messages, 5)
	assert.NotNil(t, params.Messages[0].OfSystem)
	assert.NotNil(t, params.Messages[1].OfSystem)
	assert.NotNil(t, params.Messages[2].OfUser)
	assert.NotNil(t, params.Messages[3].OfAssistant)
	assert.NotNil(t, params.Messages[4].OfUser)
	assert.Nil(t, params.ResponseFormat.OfJSONSchema)
}

func TestBuildParams_SettingsOverrideDefaults(t *testing.T) {
	m := newTestModel(func(o *Options) { o.Temperature = 0.5 })
	temp := 0.1
	params := m.buildParams(model.Request{
		Messages: []core.Message{core.NewUserMessage("task")},
		Settings: model.Settings{Temperature: &temp, MaxTokens: 128},
	})
	assert.Equal(t, 0.1, params.Temperature.Value)
	assert.Equal(t, int64(128), params.MaxCompletionTokens.Value)
}

func TestBuildParams_ResponseFormat(t *testing.T) {
	m := newTestModel()
	schema := map[string]any{"type": "object"}
	params := m.buildParams(model.Request{
		Messages: []core.Message{core.NewUserMessage("task")},
		Settings: model.Settings{ResponseFormat: &model.ResponseFormat{Name: "progress_ledger", Schema: schema}},
	})
	require.NotNil(t, params.ResponseFormat.OfJSONSchema)
	assert.Equal(t, "progress_ledger", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
	assert.True(t, params.ResponseFormat.OfJSONSchema.JSONSchema.Strict.Value)
}

func TestModel_Capabilities(t *testing.T) {
	m := newTestModel(func(o *Options) { o.Model = "gpt-test" })
	assert.True(t, model.SupportsResponseFormat(m))
	assert.Equal(t, model.Info{Name: "gpt-test", Provider: "openai"}, m.Info())
}
