package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/AndreRH09/download_valet/internal/artifact"
)

// Config struct for environment variables.
type Config struct {
	WatchDir   string `envconfig:"WATCH_DIR" required:"true"`
	ArchiveDir string `envconfig:"ARCHIVE_DIR" required:"true"`

	MaxWait      time.Duration `envconfig:"MAX_WAIT" default:"30s"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`

	UpdateInterval    time.Duration `envconfig:"UPDATE_INTERVAL" default:"5s"`
	MaxParallel       int           `envconfig:"MAX_PARALLEL" default:"5"`
	KeepArtifactsFor  time.Duration `envconfig:"KEEP_ARTIFACTS_FOR" default:"24h"`
	CleanupInterval   time.Duration `envconfig:"CLEANUP_INTERVAL" default:"10m"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL"`
	DBPath            string        `envconfig:"DB_PATH" default:"deliveries.db"`

	API struct {
		Username string `split_words:"true"`
		Password string `split_words:"true"`
	}

	Eyes struct {
		BaseURL string        `split_words:"true"`
		Token   string        `split_words:"true"`
		Timeout time.Duration `split_words:"true" default:"30s"`
	}

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		OTLPEndpoint string `split_words:"true"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the wait and scheduling knobs before any filesystem or
// network work happens.
func (c *Config) Validate() error {
	var errs []error

	if c.WatchDir == "" {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "WATCH_DIR", Reason: "must not be empty"})
	}

	if c.ArchiveDir == "" {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "ARCHIVE_DIR", Reason: "must not be empty"})
	}

	if c.MaxWait <= 0 {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "MAX_WAIT", Reason: "must be positive"})
	}

	if c.PollInterval <= 0 {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "POLL_INTERVAL", Reason: "must be positive"})
	}

	if c.MaxWait > 0 && c.PollInterval > c.MaxWait {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "POLL_INTERVAL", Reason: "must not exceed MAX_WAIT"})
	}

	if c.UpdateInterval <= 0 {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "UPDATE_INTERVAL", Reason: "must be positive"})
	}

	if c.MaxParallel < 1 {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "MAX_PARALLEL", Reason: "must be at least 1"})
	}

	if c.KeepArtifactsFor <= 0 {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "KEEP_ARTIFACTS_FOR", Reason: "must be positive"})
	}

	if c.CleanupInterval <= 0 {
		errs = append(errs, &artifact.InvalidArgumentError{Argument: "CLEANUP_INTERVAL", Reason: "must be positive"})
	}

	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
