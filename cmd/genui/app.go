package main

import (
	"fmt"
	"io"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/genui"
	"github.com/hupe1980/genui/agent"
	"github.com/hupe1980/genui/config"
	"github.com/hupe1980/genui/engine"
	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/model"
	"github.com/hupe1980/genui/model/anthropic"
	"github.com/hupe1980/genui/model/openai"
	"github.com/hupe1980/genui/tool"
	"github.com/hupe1980/genui/tool/github"
	"github.com/hupe1980/genui/tool/invoice"
	"github.com/hupe1980/genui/tool/weather"
)

func newLogger(cfg config.LogConfig, out io.Writer) (*logging.StructuredLogger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		AddSource: cfg.AddSource,
	}), nil
}

func newModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Name
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = sdkanthropic.Model(cfg.Name)
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderMock:
		return model.NewMockModel(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func newTools(cfg config.ToolsConfig) []tool.Tool {
	return []tool.Tool{
		github.New(func(o *github.Options) {
			o.BaseURL = cfg.GitHub.BaseURL
			o.Token = cfg.GitHub.Token
		}),
		weather.New(func(o *weather.Options) {
			o.GeocodeBaseURL = cfg.Weather.GeocodeBaseURL
			o.WeatherBaseURL = cfg.Weather.WeatherBaseURL
			o.UserAgent = cfg.Weather.UserAgent
		}),
		invoice.New(),
	}
}

// build wires a GenUI instance from cfg.
func build(cfg *config.Config, logger logging.Logger) (*genui.GenUI, error) {
	llm, err := newModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	return genui.New(llm, func(o *genui.Options) {
		o.EngineConfig = engine.Config{
			MaxConcurrentInvocations: cfg.Engine.MaxConcurrentInvocations,
			InvocationTimeout:        cfg.Engine.InvocationTimeout,
		}
		if cfg.Agent.Instructions != "" {
			o.Instruction = agent.NewInstructionFromText(cfg.Agent.Instructions)
		}
		o.EnableStreaming = cfg.Model.Stream
		o.Tools = newTools(cfg.Tools)
		o.Logger = logger
	})
}
