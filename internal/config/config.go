// Package config loads service and CLI settings from defaults, an optional
// config file and COURSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/course-builder/internal/llm"
	"github.com/jonathan/course-builder/internal/logging"
	"github.com/jonathan/course-builder/internal/stage"
)

// EnvPrefix is prepended to every environment override, e.g. COURSE_LLM_TIMEOUT.
const EnvPrefix = "COURSE"

// DefaultConfigName is searched for in the working directory when no file is given.
const DefaultConfigName = "course_agent"

// Store backends.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the full application configuration.
type Config struct {
	Log      logging.Config `mapstructure:"log"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Stage    stage.Config   `mapstructure:"stage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Store    StoreConfig    `mapstructure:"store"`
	Guidance GuidanceConfig `mapstructure:"guidance"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     JWTConfig      `mapstructure:"auth"`
}

// LLMConfig selects models and the transport retry policy.
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	LiteModel         string        `mapstructure:"lite_model" validate:"required"`
	StandardModel     string        `mapstructure:"standard_model" validate:"required"`
	AdvancedModel     string        `mapstructure:"advanced_model" validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1,lte=20"`
	BaseDelay         time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay          time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gte=0"`
}

// PipelineConfig bounds run concurrency and registry retention.
type PipelineConfig struct {
	MaxConcurrentRuns int64         `mapstructure:"max_concurrent_runs" validate:"gte=1"`
	Retention         time.Duration `mapstructure:"retention" validate:"gt=0"`
	JanitorSchedule   string        `mapstructure:"janitor_schedule" validate:"required"`
}

// StoreConfig selects where artifacts are kept.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=file memory postgres"`
	Dir     string `mapstructure:"dir"`
}

// GuidanceConfig points at markdown guidance fragments. Empty disables file guidance.
type GuidanceConfig struct {
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"` // requests per second per client, 0 disables
	RateBurst       int           `mapstructure:"rate_burst" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Load reads configuration. An empty path searches ./course_agent.{yaml,json,toml};
// a missing file is not an error in that case.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// conventional names win only when the prefixed variable is unset
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("auth.jwt_expiration_hours", EnvPrefix+"_AUTH_JWT_EXPIRATION_HOURS", "JWT_EXPIRATION_HOURS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	llmDefaults := llm.DefaultGeminiConfig()
	v.SetDefault("log.mode", "prod")
	v.SetDefault("log.level", "info")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.lite_model", llmDefaults.Models[llm.TierLite])
	v.SetDefault("llm.standard_model", llmDefaults.Models[llm.TierStandard])
	v.SetDefault("llm.advanced_model", llmDefaults.Models[llm.TierAdvanced])
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_attempts", llm.DefaultMaxAttempts)
	v.SetDefault("llm.base_delay", llm.DefaultBaseDelay)
	v.SetDefault("llm.max_delay", llm.DefaultMaxDelay)
	v.SetDefault("llm.requests_per_minute", 0)

	stageDefaults := stage.DefaultConfig()
	v.SetDefault("stage.max_attempts", stageDefaults.MaxAttempts)
	v.SetDefault("stage.base_temperature", stageDefaults.BaseTemperature)
	v.SetDefault("stage.temperature_step", stageDefaults.TemperatureStep)
	v.SetDefault("stage.lesson_count", stageDefaults.LessonCount)
	v.SetDefault("stage.min_questions", stageDefaults.MinQuestions)
	v.SetDefault("stage.max_questions", stageDefaults.MaxQuestions)
	v.SetDefault("stage.min_content_chars", stageDefaults.MinContentChars)

	v.SetDefault("pipeline.max_concurrent_runs", 4)
	v.SetDefault("pipeline.retention", 24*time.Hour)
	v.SetDefault("pipeline.janitor_schedule", "@every 10m")

	v.SetDefault("store.backend", StoreFile)
	v.SetDefault("store.dir", "data/artifacts")
	v.SetDefault("guidance.dir", "")
	v.SetDefault("database.url", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiration_hours", DefaultJWTExpirationHours)
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("config error: store.dir is required for the file backend")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			return errors.New("config error: database.url is required for the postgres backend")
		}
	}
	if c.Auth.Enabled() {
		if err := c.Auth.normalize(); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}
	return nil
}

// ClientConfig converts the LLM section into the generation client config.
func (c LLMConfig) ClientConfig() *llm.Config {
	return &llm.Config{
		Provider: llm.ProviderGemini,
		Models: map[llm.ModelTier]string{
			llm.TierLite:     c.LiteModel,
			llm.TierStandard: c.StandardModel,
			llm.TierAdvanced: c.AdvancedModel,
		},
		Timeout:           c.Timeout,
		MaxAttempts:       c.MaxAttempts,
		BaseDelay:         c.BaseDelay,
		MaxDelay:          c.MaxDelay,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

// RequireAPIKey fails when no generation API key is configured.
func (c LLMConfig) RequireAPIKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("generation API key is required (set GEMINI_API_KEY or COURSE_LLM_API_KEY)")
	}
	return nil
}
