// Package config loads application configuration from an optional YAML file
// and SLOTWATCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables; a double underscore
// separates nesting levels, e.g. SLOTWATCH_DATABASE__MAX_OPEN_CONNS maps to
// database.max_open_conns.
const envPrefix = "SLOTWATCH_"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Provider ProviderConfig `koanf:"provider"`
	Telegram TelegramConfig `koanf:"telegram"`
	Poll     PollConfig     `koanf:"poll"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"min=1"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// ProviderConfig configures the availability provider client.
type ProviderConfig struct {
	BaseURL              string        `koanf:"base_url" validate:"required,url"`
	AccessToken          string        `koanf:"access_token" validate:"required"`
	MaxResults           int           `koanf:"max_results" validate:"min=1"`
	Timeout              time.Duration `koanf:"timeout"`
	MaxConcurrentFetches int           `koanf:"max_concurrent_fetches" validate:"min=1"`
	RequestsPerSecond    float64       `koanf:"requests_per_second"`
}

// TelegramConfig configures the chat transport.
type TelegramConfig struct {
	BotToken    string        `koanf:"bot_token" validate:"required"`
	AdminChatID int64         `koanf:"admin_chat_id"`
	RateLimit   float64       `koanf:"rate_limit"`
	PollTimeout time.Duration `koanf:"poll_timeout"`
}

// PollConfig controls the availability polling interval. Hours and minutes
// are additive, matching the deployment knobs of the original scheduler.
type PollConfig struct {
	IntervalHours   int `koanf:"interval_hours" validate:"min=0"`
	IntervalMinutes int `koanf:"interval_minutes" validate:"min=0"`
}

// Interval returns the combined polling interval.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalHours)*time.Hour + time.Duration(p.IntervalMinutes)*time.Minute
}

// Default returns the configuration defaults applied before file and
// environment loading.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Provider: ProviderConfig{
			MaxResults:           31,
			Timeout:              10 * time.Second,
			MaxConcurrentFetches: 4,
			RequestsPerSecond:    5,
		},
		Telegram: TelegramConfig{
			RateLimit:   25,
			PollTimeout: 30 * time.Second,
		},
		Poll: PollConfig{
			IntervalHours:   3,
			IntervalMinutes: 0,
		},
	}
}

// Load reads configuration from path (optional, may be empty) and the
// environment, applies it over the defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration beyond struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Poll.Interval() <= 0 {
		return fmt.Errorf("validate config: poll interval must be positive")
	}
	return nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
