// Package config loads the service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Stream      bool    `yaml:"stream"`
}

type EngineConfig struct {
	MaxConcurrentInvocations int           `yaml:"max_concurrent_invocations"`
	InvocationTimeout        time.Duration `yaml:"invocation_timeout"`
}

type AgentConfig struct {
	Instructions string `yaml:"instructions"`
}

type GitHubConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type WeatherConfig struct {
	GeocodeBaseURL string `yaml:"geocode_base_url"`
	WeatherBaseURL string `yaml:"weather_base_url"`
	UserAgent      string `yaml:"user_agent"`
}

type ToolsConfig struct {
	GitHub  GitHubConfig  `yaml:"github"`
	Weather WeatherConfig `yaml:"weather"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Config is the root configuration document.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Engine EngineConfig `yaml:"engine"`
	Agent  AgentConfig  `yaml:"agent"`
	Tools  ToolsConfig  `yaml:"tools"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Name:        "gpt-4o",
			Temperature: 0,
			MaxTokens:   4096,
			Stream:      true,
		},
		Engine: EngineConfig{
			MaxConcurrentInvocations: 10,
			InvocationTimeout:        2 * time.Minute,
		},
		Tools: ToolsConfig{
			GitHub: GitHubConfig{BaseURL: "https://api.github.com"},
			Weather: WeatherConfig{
				GeocodeBaseURL: "https://geocode.xyz",
				WeatherBaseURL: "https://api.weather.gov",
				UserAgent:      "genui",
			},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment. Provider API keys fall back
// to the vendor variables (OPENAI_API_KEY, ANTHROPIC_API_KEY).
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("GENUI_LISTEN", &c.Server.Listen)
	str("GENUI_MODEL_PROVIDER", &c.Model.Provider)
	str("GENUI_MODEL_NAME", &c.Model.Name)
	str("GENUI_MODEL_BASE_URL", &c.Model.BaseURL)
	str("GENUI_LOG_LEVEL", &c.Log.Level)
	str("GENUI_LOG_FORMAT", &c.Log.Format)
	str("GITHUB_TOKEN", &c.Tools.GitHub.Token)

	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case ProviderOpenAI:
			str("OPENAI_API_KEY", &c.Model.APIKey)
		case ProviderAnthropic:
			str("ANTHROPIC_API_KEY", &c.Model.APIKey)
		}
	}

	if v, ok := lookup("GENUI_MAX_CONCURRENT_INVOCATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GENUI_MAX_CONCURRENT_INVOCATIONS: %w", err)
		}
		c.Engine.MaxConcurrentInvocations = n
	}
	if v, ok := lookup("GENUI_MODEL_STREAM"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GENUI_MODEL_STREAM: %w", err)
		}
		c.Model.Stream = b
	}
	return nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Model.Provider) {
	case ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen must be set"))
	}
	if c.Engine.MaxConcurrentInvocations < 0 {
		errs = append(errs, errors.New("engine.max_concurrent_invocations must not be negative"))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, errors.New("model.max_tokens must not be negative"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
