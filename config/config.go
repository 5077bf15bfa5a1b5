package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of the api process.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Email    EmailConfig    `yaml:"email"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type HTTPConfig struct {
	Addr               string `yaml:"addr"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EmailConfig configures the Resend HTTP client used for outbound mail.
type EmailConfig struct {
	ResendAPIKey  string `yaml:"resend_api_key"`
	ResendBaseURL string `yaml:"resend_base_url"`
	From          string `yaml:"from"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BatchSize    int           `yaml:"batch_size"`
}

type NotifyConfig struct {
	AppBaseURL string `yaml:"app_base_url"`
	Stream     string `yaml:"stream"`
}

var (
	// ErrMissingDatabaseURL is returned by Validate when no DSN is configured.
	ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required")
	// ErrMissingJWTSecret is returned by Validate when no signing secret is configured.
	ErrMissingJWTSecret = errors.New("config: JWT_SECRET is required")
)

// Defaults returns the baseline configuration before file and env overrides.
func Defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.RateLimitPerMinute = 120
	cfg.Database.MaxConns = 16
	cfg.Redis.Addr = "localhost:6379"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Email.ResendBaseURL = "https://api.resend.com"
	cfg.Email.From = "Maintflow <no-reply@maintflow.app>"
	cfg.Outbox.PollInterval = 2 * time.Second
	cfg.Outbox.MaxAttempts = 5
	cfg.Outbox.BatchSize = 20
	cfg.Notify.AppBaseURL = "http://localhost:5173"
	cfg.Notify.Stream = "maintflow:notifications"
	return cfg
}

// Load builds the configuration from defaults, the optional YAML file named by
// MAINTFLOW_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("MAINTFLOW_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.RateLimitPerMinute = parseInt(getEnv("RATE_LIMIT_PER_MINUTE", ""), cfg.HTTP.RateLimitPerMinute)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = int32(parseInt(getEnv("DB_MAX_CONNS", ""), int(cfg.Database.MaxConns)))
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", ""), cfg.Redis.DB)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)
	cfg.Email.ResendBaseURL = getEnv("RESEND_BASE_URL", cfg.Email.ResendBaseURL)
	cfg.Email.From = getEnv("EMAIL_FROM", cfg.Email.From)
	cfg.Outbox.PollInterval = parseDuration(getEnv("OUTBOX_POLL_INTERVAL", ""), cfg.Outbox.PollInterval)
	cfg.Outbox.MaxAttempts = parseInt(getEnv("OUTBOX_MAX_ATTEMPTS", ""), cfg.Outbox.MaxAttempts)
	cfg.Notify.AppBaseURL = getEnv("APP_BASE_URL", cfg.Notify.AppBaseURL)
	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", cfg.Notify.Stream)

	return cfg, nil
}

// Validate reports settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
