package cli

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/magentic/agent"
	"github.com/hupe1980/magentic/config"
	"github.com/hupe1980/magentic/core"
	"github.com/hupe1980/magentic/logging"
	"github.com/hupe1980/magentic/model"
	"github.com/hupe1980/magentic/model/anthropic"
	"github.com/hupe1980/magentic/model/middleware"
	"github.com/hupe1980/magentic/model/openai"
	"github.com/hupe1980/magentic/orchestration"
)

// newModel creates the provider model. Tests replace it.
var newModel = func(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderMock:
		name := cfg.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// team is everything a run needs, built from the config.
type team struct {
	manager orchestration.Manager
	members []core.Agent
}

func buildTeam(cfg *config.Config, tracer trace.Tracer, logger logging.Logger, onChunk func(model.Response)) (*team, error) {
	base, err := newModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	mws := []middleware.Middleware{middleware.Tracing(tracer)}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	}
	llm := middleware.Chain(base, mws...)

	settings := model.Settings{
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	}

	manager, err := orchestration.NewStandardManager(llm, func(o *orchestration.StandardManagerOptions) {
		o.Settings = settings
		o.MaxStallCount = cfg.Manager.MaxStallCount
		o.MaxResetCount = cfg.Manager.MaxResetCount
		o.MaxRoundCount = cfg.Manager.MaxRoundCount
		o.Logger = logging.With(logger, "component", "manager")
	})
	if err != nil {
		return nil, err
	}

	members := make([]core.Agent, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		members = append(members, agent.NewChatAgent(m.Name, llm, func(o *agent.ChatAgentOptions) {
			o.Description = m.Description
			if m.Instructions != "" {
				o.Instruction = agent.NewInstructionFromText(m.Instructions)
			}
			o.Settings = settings
			o.Stateful = m.Stateful
			o.EnableStreaming = cfg.Model.Stream
			o.OnChunk = onChunk
			o.Logger = logging.With(logger, "component", "agent")
		}))
	}

	return &team{manager: manager, members: members}, nil
}
