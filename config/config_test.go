package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genui.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Listen)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.True(t, cfg.Model.Stream)
	assert.Equal(t, 10, cfg.Engine.MaxConcurrentInvocations)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  listen: ":9000"
model:
  provider: anthropic
  name: claude-3-5-sonnet-latest
  api_key: from-file
  stream: false
engine:
  max_concurrent_invocations: 3
  invocation_timeout: 30s
agent:
  instructions: be brief
tools:
  github:
    token: gh-token
log:
  level: debug
  format: json
`)
	t.Setenv("ANTHROPIC_API_KEY", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "from-file", cfg.Model.APIKey)
	assert.False(t, cfg.Model.Stream)
	assert.Equal(t, 3, cfg.Engine.MaxConcurrentInvocations)
	assert.Equal(t, 30*time.Second, cfg.Engine.InvocationTimeout)
	assert.Equal(t, "be brief", cfg.Agent.Instructions)
	assert.Equal(t, "gh-token", cfg.Tools.GitHub.Token)
	assert.Equal(t, "https://api.github.com", cfg.Tools.GitHub.BaseURL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "server:\n  listen: \":9000\"\n")
	t.Setenv("GENUI_LISTEN", ":7000")
	t.Setenv("GENUI_MODEL_PROVIDER", "mock")
	t.Setenv("GENUI_MAX_CONCURRENT_INVOCATIONS", "5")
	t.Setenv("GENUI_MODEL_STREAM", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Listen)
	assert.Equal(t, ProviderMock, cfg.Model.Provider)
	assert.Equal(t, 5, cfg.Engine.MaxConcurrentInvocations)
	assert.False(t, cfg.Model.Stream)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("GENUI_MAX_CONCURRENT_INVOCATIONS", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "GENUI_MAX_CONCURRENT_INVOCATIONS")
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "model:\n  provider: cohere\nlog:\n  format: xml\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
	assert.Contains(t, err.Error(), "unknown format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeFile(t, "server: [unclosed")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}
