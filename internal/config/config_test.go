package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/course-builder/internal/llm"
)

// clearEnv isolates a test from variables that Load reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"GEMINI_API_KEY", "DATABASE_URL", "JWT_SECRET", "JWT_EXPIRATION_HOURS"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.StandardModel)
	assert.Equal(t, llm.DefaultTimeout, cfg.LLM.Timeout)
	assert.Equal(t, llm.DefaultMaxAttempts, cfg.LLM.MaxAttempts)
	assert.Equal(t, 3, cfg.Stage.MaxAttempts)
	assert.Equal(t, 5, cfg.Stage.LessonCount)
	assert.Equal(t, int64(4), cfg.Pipeline.MaxConcurrentRuns)
	assert.Equal(t, 24*time.Hour, cfg.Pipeline.Retention)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Auth.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "course.yaml", `
log:
  mode: dev
  level: debug
llm:
  advanced_model: gemini-exp
  timeout: 30s
  max_attempts: 3
stage:
  lesson_count: 8
pipeline:
  max_concurrent_runs: 2
  retention: 1h
store:
  backend: memory
server:
  allowed_origins: ["https://app.example.com"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Log.Mode)
	assert.Equal(t, "gemini-exp", cfg.LLM.AdvancedModel)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 8, cfg.Stage.LessonCount)
	assert.Equal(t, 3, cfg.Stage.MaxAttempts, "unset keys keep defaults")
	assert.Equal(t, int64(2), cfg.Pipeline.MaxConcurrentRuns)
	assert.Equal(t, time.Hour, cfg.Pipeline.Retention)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("COURSE_LLM_MAX_ATTEMPTS", "7")
	t.Setenv("COURSE_SERVER_ADDR", ":9090")
	t.Setenv("GEMINI_API_KEY", "key-from-env")
	t.Setenv("DATABASE_URL", "postgres://localhost/course")
	t.Setenv("COURSE_STORE_BACKEND", "postgres")

	cfg, err := Load(writeFile(t, "course.json", `{"llm": {"max_attempts": 2}}`))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.LLM.MaxAttempts, "env wins over file")
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "key-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "postgres://localhost/course", cfg.Database.URL)
	assert.NoError(t, cfg.LLM.RequireAPIKey())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load(writeFile(t, "bad.json", `{ invalid json }`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "s3" }, wantErr: "Backend"},
		{name: "file backend without dir", mutate: func(c *Config) { c.Store.Dir = "" }, wantErr: "store.dir"},
		{name: "postgres without url", mutate: func(c *Config) { c.Store.Backend = StorePostgres }, wantErr: "database.url"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Pipeline.MaxConcurrentRuns = 0 }, wantErr: "MaxConcurrentRuns"},
		{name: "max delay below base", mutate: func(c *Config) { c.LLM.MaxDelay = time.Millisecond }, wantErr: "MaxDelay"},
		{name: "questions inverted", mutate: func(c *Config) { c.Stage.MaxQuestions = 1 }, wantErr: "MaxQuestions"},
		{name: "short jwt secret", mutate: func(c *Config) { c.Auth.Secret = "short" }, wantErr: "JWT_SECRET"},
		{name: "valid jwt secret", mutate: func(c *Config) { c.Auth.Secret = testSecret }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLLMConfig_ClientConfig(t *testing.T) {
	cfg := Default().LLM
	cfg.RequestsPerMinute = 30

	client := cfg.ClientConfig()
	assert.Equal(t, llm.ProviderGemini, client.Provider)
	assert.Equal(t, "gemini-2.5-pro", client.GetModel(llm.TierAdvanced))
	assert.Equal(t, 30, client.RequestsPerMinute)
	assert.Equal(t, cfg.MaxDelay, client.MaxDelay)

	assert.Error(t, cfg.RequireAPIKey())
}
