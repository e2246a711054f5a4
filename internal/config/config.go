package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/drallgood/abs-hardcover-progress/internal/api/audiobookshelf"
	"github.com/drallgood/abs-hardcover-progress/internal/api/hardcover"
	"github.com/drallgood/abs-hardcover-progress/internal/cache"
	"github.com/drallgood/abs-hardcover-progress/internal/database"
	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/status"
	"github.com/drallgood/abs-hardcover-progress/internal/sync"
	"github.com/drallgood/abs-hardcover-progress/internal/util"
)

// Config holds all configuration for the application
type Config struct {
	// Logging configuration
	Logging struct {
		// Log level (debug, info, warn, error)
		Level string `yaml:"level"`
		// Log format (json or console)
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Audiobookshelf configuration
	Audiobookshelf struct {
		URL           string        `yaml:"url"`
		Token         string        `yaml:"token"`
		Timeout       time.Duration `yaml:"timeout"`
		MaxConcurrent int           `yaml:"max_concurrent"`
		PageSize      int           `yaml:"page_size"`
	} `yaml:"audiobookshelf"`

	// Hardcover configuration
	Hardcover struct {
		Token             string        `yaml:"token"`
		BaseURL           string        `yaml:"base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerMinute int           `yaml:"requests_per_minute"`
		Burst             int           `yaml:"burst"`
		MaxRetries        int           `yaml:"max_retries"`
		RetryDelay        time.Duration `yaml:"retry_delay"`
	} `yaml:"hardcover"`

	// Sync behaviour
	Sync struct {
		// UserID keys the cache; empty means the Hardcover account id
		UserID              string        `yaml:"user_id"`
		Workers             int           `yaml:"workers"`
		Parallel            bool          `yaml:"parallel"`
		DryRun              bool          `yaml:"dry_run"`
		ActivationThreshold float64       `yaml:"activation_threshold"`
		CompletionThreshold float64       `yaml:"completion_threshold"`
		ProgressTolerance   float64       `yaml:"progress_tolerance"`
		Interval            time.Duration `yaml:"interval"`
	} `yaml:"sync"`

	// Database holds the cache store settings
	Database database.Config `yaml:"database"`

	// Server configuration for serve mode
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
}

// envFiles are loaded when present. Variables already set in the process win.
var envFiles = []string{"config/secrets.env", ".env"}

// DefaultConfig returns a configuration with every optional value filled in.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Audiobookshelf.Timeout = 30 * time.Second
	cfg.Audiobookshelf.MaxConcurrent = 4
	cfg.Audiobookshelf.PageSize = 100

	cfg.Hardcover.BaseURL = hardcover.DefaultBaseURL
	cfg.Hardcover.Timeout = hardcover.DefaultTimeout
	cfg.Hardcover.RequestsPerMinute = util.DefaultRequestsPerMinute
	cfg.Hardcover.Burst = util.DefaultBurst
	cfg.Hardcover.MaxRetries = hardcover.DefaultMaxRetries
	cfg.Hardcover.RetryDelay = hardcover.DefaultRetryDelay

	thresholds := status.DefaultThresholds()
	cfg.Sync.Workers = sync.DefaultWorkers
	cfg.Sync.Parallel = true
	cfg.Sync.ActivationThreshold = thresholds.Activation
	cfg.Sync.CompletionThreshold = thresholds.Completion
	cfg.Sync.ProgressTolerance = cache.DefaultTolerance
	cfg.Sync.Interval = time.Hour

	cfg.Database = database.DefaultConfig()

	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second

	return cfg
}

// Load builds the configuration from defaults, the optional YAML file and the
// environment, in that order of precedence.
func Load(configFile string) (*Config, error) {
	loadEnvFiles()

	cfg := DefaultConfig()
	if configFile != "" {
		if err := cfg.loadFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()
	cfg.Database.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("Failed to load env file")
			continue
		}
		log.Debug().Str("file", f).Msg("Loaded env file")
	}
}

// loadFromEnv overrides fields with any environment variables that are set.
func (c *Config) loadFromEnv() {
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.Audiobookshelf.URL = getEnv("AUDIOBOOKSHELF_URL", c.Audiobookshelf.URL)
	c.Audiobookshelf.Token = getEnv("AUDIOBOOKSHELF_TOKEN", c.Audiobookshelf.Token)

	c.Hardcover.Token = getEnv("HARDCOVER_TOKEN", c.Hardcover.Token)
	c.Hardcover.BaseURL = getEnv("HARDCOVER_API_URL", c.Hardcover.BaseURL)
	c.Hardcover.RequestsPerMinute = getIntFromEnv("HARDCOVER_REQUESTS_PER_MINUTE", c.Hardcover.RequestsPerMinute)
	c.Hardcover.MaxRetries = getIntFromEnv("MAX_RETRIES", c.Hardcover.MaxRetries)
	c.Hardcover.RetryDelay = getDurationFromEnv("RETRY_DELAY", c.Hardcover.RetryDelay)

	c.Sync.UserID = getEnv("SYNC_USER_ID", c.Sync.UserID)
	c.Sync.Workers = getIntFromEnv("MAX_WORKERS", c.Sync.Workers)
	c.Sync.Parallel = getBoolFromEnv("ENABLE_PARALLEL", c.Sync.Parallel)
	c.Sync.DryRun = getBoolFromEnv("DRY_RUN", c.Sync.DryRun)
	c.Sync.ActivationThreshold = getFloat64FromEnv("MIN_PROGRESS_THRESHOLD", c.Sync.ActivationThreshold)
	c.Sync.CompletionThreshold = getFloat64FromEnv("COMPLETION_THRESHOLD", c.Sync.CompletionThreshold)
	c.Sync.ProgressTolerance = getFloat64FromEnv("PROGRESS_TOLERANCE", c.Sync.ProgressTolerance)
	c.Sync.Interval = getDurationFromEnv("SYNC_INTERVAL", c.Sync.Interval)

	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		c.Database.Type = database.ParseType(v)
	}
	c.Database.Path = getEnv("DATABASE_PATH", c.Database.Path)
	c.Database.Host = getEnv("DATABASE_HOST", c.Database.Host)
	c.Database.Port = getIntFromEnv("DATABASE_PORT", c.Database.Port)
	c.Database.Database = getEnv("DATABASE_NAME", c.Database.Database)
	c.Database.Username = getEnv("DATABASE_USER", c.Database.Username)
	c.Database.Password = getEnv("DATABASE_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DATABASE_SSL_MODE", c.Database.SSLMode)

	c.Server.Port = getEnv("PORT", c.Server.Port)
}

// Thresholds returns the status thresholds as configured.
func (c *Config) Thresholds() status.Thresholds {
	return status.Thresholds{
		Activation: c.Sync.ActivationThreshold,
		Completion: c.Sync.CompletionThreshold,
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Audiobookshelf.URL == "" {
		errs = append(errs, &ConfigError{Field: "audiobookshelf.url", Msg: "is required"})
	}
	if c.Audiobookshelf.Token == "" {
		errs = append(errs, &ConfigError{Field: "audiobookshelf.token", Msg: "is required"})
	}
	if c.Hardcover.Token == "" {
		errs = append(errs, &ConfigError{Field: "hardcover.token", Msg: "is required"})
	}
	if err := c.Thresholds().Validate(); err != nil {
		errs = append(errs, &ConfigError{Field: "sync.thresholds", Msg: err.Error()})
	}
	if c.Sync.Workers < 1 {
		errs = append(errs, &ConfigError{Field: "sync.workers", Msg: "must be at least 1"})
	}
	if c.Sync.ProgressTolerance < 0 {
		errs = append(errs, &ConfigError{Field: "sync.progress_tolerance", Msg: "must not be negative"})
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, &ConfigError{Field: "database", Msg: err.Error()})
	}

	return errors.Join(errs...)
}

// SyncConfig returns the orchestrator settings.
func (c *Config) SyncConfig() sync.Config {
	return sync.Config{
		UserID:     c.Sync.UserID,
		Workers:    c.Sync.Workers,
		Parallel:   c.Sync.Parallel,
		DryRun:     c.Sync.DryRun,
		Thresholds: c.Thresholds(),
	}
}

// HardcoverConfig returns the Hardcover client settings.
func (c *Config) HardcoverConfig() hardcover.ClientConfig {
	return hardcover.ClientConfig{
		BaseURL:           c.Hardcover.BaseURL,
		Timeout:           c.Hardcover.Timeout,
		MaxRetries:        c.Hardcover.MaxRetries,
		RetryDelay:        c.Hardcover.RetryDelay,
		RequestsPerMinute: c.Hardcover.RequestsPerMinute,
		Burst:             c.Hardcover.Burst,
	}
}

// AudiobookshelfConfig returns the Audiobookshelf client settings.
func (c *Config) AudiobookshelfConfig() audiobookshelf.ClientConfig {
	return audiobookshelf.ClientConfig{
		BaseURL:       c.Audiobookshelf.URL,
		Token:         c.Audiobookshelf.Token,
		Timeout:       c.Audiobookshelf.Timeout,
		MaxConcurrent: c.Audiobookshelf.MaxConcurrent,
		PageSize:      c.Audiobookshelf.PageSize,
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: logger.ParseLogFormat(c.Logging.Format),
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Msg
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getBoolFromEnv(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid boolean in environment, using default")
		return defaultValue
	}
	return b
}

func getIntFromEnv(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
		return defaultValue
	}
	return i
}

func getFloat64FromEnv(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number in environment, using default")
		return defaultValue
	}
	return f
}

func getDurationFromEnv(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration in environment, using default")
		return defaultValue
	}
	return d
}

// String renders the configuration with secrets masked, for debug logging.
func (c *Config) String() string {
	return fmt.Sprintf("abs=%s hardcover=%s workers=%d parallel=%t dry_run=%t thresholds=%.1f/%.1f db=%s",
		c.Audiobookshelf.URL, c.Hardcover.BaseURL, c.Sync.Workers, c.Sync.Parallel, c.Sync.DryRun,
		c.Sync.ActivationThreshold, c.Sync.CompletionThreshold, c.Database.Type)
}
