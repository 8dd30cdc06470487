package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.ClassifierModel)
	require.InDelta(t, 0.7, cfg.OpenAI.Temperature, 1e-6)
	require.Equal(t, 1024, cfg.OpenAI.MaxTokens)
	require.Equal(t, 10*time.Second, cfg.ClassifierTimeout)
	require.Equal(t, 25*time.Second, cfg.ResponderTimeout)
	require.Equal(t, 2000, cfg.MaxMessageLength)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "/api/chat", cfg.HTTP.ChatPath)
	require.Zero(t, cfg.HTTP.RateLimitPerMin)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Encoding)
	require.Empty(t, cfg.InteractionTable)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openai:
  model: gpt-4o
  classifier_model: gpt-4o-mini
  temperature: 0.2
param_prefix: /site-assistant/prod/
responder_timeout: 40s
http:
  chat_path: /chat
  rate_limit_per_min: 30
log:
  encoding: Console
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.ClassifierModel)
	require.InDelta(t, 0.2, cfg.OpenAI.Temperature, 1e-6)
	require.Equal(t, "/site-assistant/prod", cfg.ParamPrefix)
	require.Equal(t, 40*time.Second, cfg.ResponderTimeout)
	require.Equal(t, "/chat", cfg.HTTP.ChatPath)
	require.Equal(t, 30, cfg.HTTP.RateLimitPerMin)
	require.Equal(t, "console", cfg.Log.Encoding)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  model: from-file\n"), 0o600))

	t.Setenv("OPENAI_API_KEY", " sk-env ")
	t.Setenv("OPENAI_MODEL", "from-env")
	t.Setenv("INTERACTION_TABLE", "interactions")
	t.Setenv("CLASSIFIER_TIMEOUT", "3s")
	t.Setenv("CHAT_PATH", "/support")
	t.Setenv("RATE_LIMIT_PER_MIN", "12")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	require.Equal(t, "from-env", cfg.OpenAI.Model)
	require.Equal(t, "from-env", cfg.OpenAI.ClassifierModel)
	require.Equal(t, "interactions", cfg.InteractionTable)
	require.Equal(t, 3*time.Second, cfg.ClassifierTimeout)
	require.Equal(t, "/support", cfg.HTTP.ChatPath)
	require.Equal(t, 12, cfg.HTTP.RateLimitPerMin)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "model", mutate: func(c *Config) { c.OpenAI.Model = "" }, want: "openai.model"},
		{name: "temperature", mutate: func(c *Config) { c.OpenAI.Temperature = 2.5 }, want: "openai.temperature"},
		{name: "max tokens", mutate: func(c *Config) { c.OpenAI.MaxTokens = 0 }, want: "openai.max_tokens"},
		{name: "classifier timeout", mutate: func(c *Config) { c.ClassifierTimeout = 0 }, want: "classifier_timeout"},
		{name: "responder timeout", mutate: func(c *Config) { c.ResponderTimeout = -time.Second }, want: "responder_timeout"},
		{name: "message length", mutate: func(c *Config) { c.MaxMessageLength = 0 }, want: "max_message_length"},
		{name: "addr", mutate: func(c *Config) { c.HTTP.Addr = " " }, want: "http.addr"},
		{name: "chat path", mutate: func(c *Config) { c.HTTP.ChatPath = "chat" }, want: "http.chat_path"},
		{name: "rate limit", mutate: func(c *Config) { c.HTTP.RateLimitPerMin = -1 }, want: "http.rate_limit_per_min"},
		{name: "encoding", mutate: func(c *Config) { c.Log.Encoding = "xml" }, want: "log.encoding"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
