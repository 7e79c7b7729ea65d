package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GENAI_API_KEY", "GEMINI_API_KEY", "API_KEY", "APIS_GENAI_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadFromFile_Defaults(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfig(t, `
app:
  name: quoter
apis:
  genai:
    api_key: test-key
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "quoter", cfg.App.Name)
	assert.Equal(t, "Smart Bytes", cfg.App.Brand)
	assert.Equal(t, "gemini-2.5-flash", cfg.APIs.GenAI.Model)
	assert.InDelta(t, 0.4, cfg.APIs.GenAI.Temperature, 1e-9)
	assert.Equal(t, 60000, cfg.APIs.GenAI.Timeout)
	assert.Equal(t, 5, cfg.Quote.WorkingDaysPerWeek)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.True(t, cfg.Export.Enabled)
	assert.Equal(t, "light", cfg.Export.DefaultTheme)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_MissingAPIKeyIsFatal(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfig(t, `
app:
  name: quoter
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apis.genai.api_key is required")
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GENAI_API_KEY", "from-env")
	t.Setenv("QUOTE_REDIS_HOST", "redis.internal:6379")

	path := writeConfig(t, `
session:
  backend: redis
database:
  redis:
    address: ${QUOTE_REDIS_HOST}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIs.GenAI.APIKey)
	assert.Equal(t, "redis.internal:6379", cfg.Database.Redis.Address)
	assert.Equal(t, "quote:session:", cfg.Database.Redis.KeyPrefix)
}

func TestLoadFromFile_ExplicitZeroTemperature(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfig(t, `
apis:
  genai:
    api_key: k
    temperature: 0
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.APIs.GenAI.Temperature)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.APIs.GenAI.APIKey = "k"
		cfg.Session.Backend = SessionBackendMemory
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "redis without address", mutate: func(c *Config) { c.Session.Backend = SessionBackendRedis }, wantErr: "database.redis.address"},
		{name: "unknown backend", mutate: func(c *Config) { c.Session.Backend = "disk" }, wantErr: "session.backend"},
		{name: "camunda without broker", mutate: func(c *Config) { c.Camunda.Enabled = true }, wantErr: "camunda.broker_address"},
		{name: "ses without sender", mutate: func(c *Config) {
			c.Integrations.AWS.SES.Enabled = true
			c.Integrations.AWS.Region = "eu-west-1"
		}, wantErr: "from_email"},
		{name: "bad theme", mutate: func(c *Config) { c.Export.DefaultTheme = "sepia" }, wantErr: "default_theme"},
		{name: "bad working days", mutate: func(c *Config) { c.Quote.WorkingDaysPerWeek = 9 }, wantErr: "working_days_per_week"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"generate-quote": {Enabled: false, MaxJobsActive: 2, Timeout: 1000}}}
	cfg.APIs.GenAI.APIKey = "k"
	applyDefaults(cfg)

	wc := GetWorkerConfig(cfg, "generate-quote")
	assert.False(t, wc.Enabled)
	assert.Equal(t, 2, wc.MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "generate-quote"))

	fallback := GetWorkerConfig(cfg, "unknown")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, cfg.Camunda.MaxJobsActive, fallback.MaxJobsActive)
	assert.Equal(t, 2*time.Minute, GetDuration(fallback.Timeout))
}
