// Package config provides configuration loading, validation, and defaults
// for the ReplyCoach service. Values come from config.yaml (optional) with
// COACH_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all components
// of the service: logging, HTTP server, AI integration, database, the
// orchestration engine, and scheduled tasks.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls slog level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// AIConfig holds settings for the Gemini text-generation service.
type AIConfig struct {
	APIKey      string  `mapstructure:"api_key"      validate:"required"`
	Model       string  `mapstructure:"model"        validate:"required"`
	VisionModel string  `mapstructure:"vision_model" validate:"required"`
	Temperature float32 `mapstructure:"temperature"  validate:"min=0,max=2"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// EngineConfig holds orchestration engine tunables.
type EngineConfig struct {
	// AdvisorTimeout bounds each concurrent advisor call. A timed-out call
	// degrades like any other per-call failure; the batch still completes.
	AdvisorTimeout time.Duration `mapstructure:"advisor_timeout" validate:"min=1s,max=10m"`
	// AnalysisTimeout bounds the scene analyzer call.
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout" validate:"min=1s,max=10m"`
	// PatternLimit caps how many successful/failed patterns are injected
	// into advisor prompts.
	PatternLimit int `mapstructure:"pattern_limit" validate:"min=1,max=20"`
}

// SchedulerConfig maps task names to cron schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// LoadConfig reads configuration from the given YAML file (a missing file is
// not an error), applies defaults, overlays COACH_* environment variables,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Registered empty so COACH_AI_API_KEY is picked up during Unmarshal;
	// validation still rejects a missing key.
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.vision_model", "gemini-2.0-flash")
	v.SetDefault("ai.temperature", 0.8)

	v.SetDefault("database.path", "replycoach.db")

	v.SetDefault("engine.advisor_timeout", 45*time.Second)
	v.SetDefault("engine.analysis_timeout", 45*time.Second)
	v.SetDefault("engine.pattern_limit", 5)

	v.SetDefault("scheduler.tasks.insight_refresh.enabled", true)
	v.SetDefault("scheduler.tasks.insight_refresh.schedule", "0 0 3 * * *")
	v.SetDefault("scheduler.tasks.db_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.db_maintenance.schedule", "0 30 4 * * 0")
}
