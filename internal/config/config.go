// Package config provides configuration loading and validation for the bot
// profile manager. Configuration is read from a YAML file with BOTADMIN_*
// environment variable overrides, and validated before use.
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

// Language is one entry of the supported language list. The empty code is
// reserved for the default-language profile and must not appear here.
type Language struct {
	Code string `mapstructure:"code" json:"code" validate:"required"`
	Name string `mapstructure:"name" json:"name" validate:"required"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig holds HTTP server settings. StaticDir, when set, points at a
// built UI bundle served with an index.html fallback.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds remote API settings. APIURL is overridable so tests
// can point the client at a local fake server.
type TelegramConfig struct {
	APIURL         string        `mapstructure:"api_url" validate:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=5m"`
}

// SyncConfig bounds the per-language fan-out during registration and refresh.
type SyncConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"min=1,max=64"`
}

// TaskConfig describes one scheduled background task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// Config is the root configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Languages []Language      `mapstructure:"languages" validate:"dive"`
}

// LoadConfig reads configuration from the given YAML file, applies defaults
// and environment overrides, and validates the result. A missing config file
// is not an error; defaults and environment variables are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOTADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	for _, lang := range cfg.Languages {
		if lang.Code == "" {
			return nil, fmt.Errorf("invalid configuration: empty language code is reserved for the default profile")
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "data/bots.db")

	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", 10*time.Second)

	v.SetDefault("sync.concurrency", 4)
}
