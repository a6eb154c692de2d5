// Package config provides configuration loading, validation, and management
// for the brainbot application. It handles reading from YAML files,
// setting default values, and validating configuration parameters.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config defines the application configuration parameters for all components
// of the brainbot system: logging, the Telegram adapter, the remote
// completion client, the HTTP surface, and the database.
type Config struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogJSON  bool   `koanf:"log_json"`

	TelegramToken string `koanf:"telegram_token" validate:"required"`
	// TelegramPublicURL enables webhook mode: when set, the webhook is
	// registered against <url>/webhook and long-polling is disabled.
	TelegramPublicURL string `koanf:"telegram_public_url" validate:"omitempty,url"`
	// TelegramProcessCommands controls whether messages beginning with a
	// command prefix ("/") are handled like any other message. Off by
	// default: commands are acknowledged but never persisted or answered.
	TelegramProcessCommands bool `koanf:"telegram_process_commands"`
	// TelegramGroupLearning enables passive memory capture from group chats.
	TelegramGroupLearning bool `koanf:"telegram_group_learning"`

	AIProvider       string        `koanf:"ai_provider"        validate:"oneof=openai gemini"`
	AIToken          string        `koanf:"ai_token"           validate:"required"`
	AIBaseURL        string        `koanf:"ai_base_url"        validate:"omitempty,url"`
	AIModel          string        `koanf:"ai_model"           validate:"required"`
	AITemperature    float32       `koanf:"ai_temperature"     validate:"min=0,max=2"`
	AIInstruction    string        `koanf:"ai_instruction"     validate:"required"`
	AITimeout        time.Duration `koanf:"ai_timeout"         validate:"min=1s,max=10m"`
	AIContextEntries int           `koanf:"ai_context_entries" validate:"min=0,max=200"`

	FallbackReply string `koanf:"fallback_reply" validate:"required"`

	HTTPAddr string `koanf:"http_addr" validate:"required"`

	DBPath string `koanf:"db_path" validate:"required"`

	// MaintenanceSchedule is a cron expression for the periodic SQLite
	// maintenance task. Empty disables the task.
	MaintenanceSchedule string `koanf:"maintenance_schedule"`
}

// Load reads configuration from the given YAML file, sets default values
// for optional fields, and validates the result. A missing config file is
// not an error; defaults and environment-populated values are used instead.
func Load(path string) (*Config, error) {
	startTime := time.Now()
	slog.Info("loading configuration", "path", path)

	config := &Config{}
	setDefaults(config)

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load configuration file", "error", err, "path", path)
			return nil, err
		}
		slog.Info("configuration file not found, using defaults", "path", path)
	} else {
		if err := k.Unmarshal("", config); err != nil {
			slog.Error("failed to parse configuration", "error", err, "path", path)
			return nil, err
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		slog.Error("configuration validation failed", "error", err)
		return nil, err
	}

	slog.Info("configuration loaded successfully",
		"log_level", config.LogLevel,
		"ai_provider", config.AIProvider,
		"ai_model", config.AIModel,
		"http_addr", config.HTTPAddr,
		"db_path", config.DBPath,
		"duration_ms", time.Since(startTime).Milliseconds())

	return config, nil
}

// applyEnvOverrides lets secrets and deployment-specific values come from
// the environment so they can stay out of the config file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("BOT_TELEGRAM_TOKEN"); v != "" {
		config.TelegramToken = v
	}
	if v := os.Getenv("BOT_AI_TOKEN"); v != "" {
		config.AIToken = v
	}
	if v := os.Getenv("BOT_TELEGRAM_PUBLIC_URL"); v != "" {
		config.TelegramPublicURL = v
	}
	if v := os.Getenv("BOT_HTTP_ADDR"); v != "" {
		config.HTTPAddr = v
	}
}

func setDefaults(config *Config) {
	config.LogLevel = "info"
	config.LogJSON = true

	config.AIProvider = "openai"
	config.AIBaseURL = "https://openrouter.ai/api/v1"
	config.AIModel = "openai/gpt-3.5-turbo"
	config.AITemperature = 1.0
	config.AIInstruction = "You are a helpful assistant trained to respond in the operator's tone for deal-based conversations."
	config.AITimeout = 2 * time.Minute
	config.AIContextEntries = 15

	config.FallbackReply = "I couldn't think of a response."

	config.HTTPAddr = ":10000"

	config.DBPath = "storage.db"

	config.TelegramGroupLearning = true
}
