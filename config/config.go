// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/darezone/darezone-ledger/internal/infrastructure/persistence/postgres"
	"github.com/darezone/darezone-ledger/internal/infrastructure/persistence/redis"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Database
	Database postgres.Config

	// Redis
	Redis RedisConfig

	// Ledger scoring
	Ledger LedgerConfig

	// Reminder throttle
	Reminder ReminderConfig

	// Push delivery
	Notification NotificationConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Timezone for the civil-day boundary and scheduled jobs (default: UTC).
	Timezone string
	Location *time.Location

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// RedisConfig wraps the cache connection settings.
type RedisConfig struct {
	redis.Config

	// Disabled runs the worker without the rank cache. Reads fall through
	// to the store.
	Disabled bool
}

// LedgerConfig holds the point-award constants.
type LedgerConfig struct {
	// BasePoints is the award for a regular check-in.
	BasePoints int

	// StreakMultiplier scales BasePoints when a streak extends.
	StreakMultiplier int
}

// ReminderConfig holds reminder throttle settings.
type ReminderConfig struct {
	// DefaultQuota is the daily reminder allowance granted to new members.
	// Membership creation lives in the API deployment, which shares this
	// config package; the engine itself only reads and decrements the quota
	// (the migrations seed the same value as the column default).
	DefaultQuota int

	// MaxTargetsPerCall caps the target list of a single send.
	MaxTargetsPerCall int
}

// NotificationConfig holds push delivery pacing settings.
type NotificationConfig struct {
	// RatePerSecond caps deliveries to the push gateway.
	RatePerSecond float64

	// Burst is the limiter burst size.
	Burst int

	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	// Enabled toggles the background scheduler.
	Enabled bool

	// RefreshInterval is how often the dirty-challenge sweep runs.
	RefreshInterval time.Duration

	// RefreshTimeout bounds one sweep.
	RefreshTimeout time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is json or text.
	LogFormat string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App:           loadAppConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Ledger:        loadLedgerConfig(),
		Reminder:      loadReminderConfig(),
		Notification:  loadNotificationConfig(),
		Scheduler:     loadSchedulerConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	timezone := getEnv("APP_TIMEZONE", "UTC")

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	return AppConfig{
		Name:            getEnv("APP_NAME", "darezone-ledger"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		Timezone:        timezone,
		Location:        loc,
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() postgres.Config {
	cfg := postgres.DefaultConfig()

	cfg.Host = getEnv("DB_HOST", cfg.Host)
	cfg.Port = getEnvInt("DB_PORT", cfg.Port)
	cfg.Database = getEnv("DB_NAME", cfg.Database)
	cfg.User = getEnv("DB_USER", cfg.User)
	cfg.Password = getEnv("DB_PASSWORD", cfg.Password)
	cfg.SSLMode = getEnv("DB_SSLMODE", cfg.SSLMode)
	cfg.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(cfg.MaxConns)))
	cfg.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(cfg.MinConns)))
	cfg.MaxConnLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.MaxConnLifetime)
	cfg.MaxConnIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", cfg.MaxConnIdleTime)
	cfg.ConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", cfg.ConnectTimeout)

	return cfg
}

func loadRedisConfig() RedisConfig {
	cfg := redis.DefaultConfig()

	cfg.Host = getEnv("REDIS_HOST", cfg.Host)
	cfg.Port = getEnvInt("REDIS_PORT", cfg.Port)
	cfg.Password = getEnv("REDIS_PASSWORD", cfg.Password)
	cfg.DB = getEnvInt("REDIS_DB", cfg.DB)
	cfg.PoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.PoolSize)
	cfg.MinIdleConns = getEnvInt("REDIS_MIN_IDLE_CONNS", cfg.MinIdleConns)
	cfg.DialTimeout = getEnvDuration("REDIS_DIAL_TIMEOUT", cfg.DialTimeout)
	cfg.ReadTimeout = getEnvDuration("REDIS_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("REDIS_WRITE_TIMEOUT", cfg.WriteTimeout)

	return RedisConfig{
		Config:   cfg,
		Disabled: getEnvBool("REDIS_DISABLED", false),
	}
}

func loadLedgerConfig() LedgerConfig {
	return LedgerConfig{
		BasePoints:       getEnvInt("LEDGER_BASE_POINTS", 10),
		StreakMultiplier: getEnvInt("LEDGER_STREAK_MULTIPLIER", 2),
	}
}

func loadReminderConfig() ReminderConfig {
	return ReminderConfig{
		DefaultQuota:      getEnvInt("REMINDER_DEFAULT_QUOTA", 2),
		MaxTargetsPerCall: getEnvInt("REMINDER_MAX_TARGETS", 10),
	}
}

func loadNotificationConfig() NotificationConfig {
	return NotificationConfig{
		RatePerSecond: getEnvFloat("NOTIFICATION_RATE_PER_SECOND", 20),
		Burst:         getEnvInt("NOTIFICATION_BURST", 5),
		SendTimeout:   getEnvDuration("NOTIFICATION_SEND_TIMEOUT", 5*time.Second),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:         getEnvBool("SCHEDULER_ENABLED", true),
		RefreshInterval: getEnvDuration("SCHEDULER_REFRESH_INTERVAL", 30*time.Second),
		RefreshTimeout:  getEnvDuration("SCHEDULER_REFRESH_TIMEOUT", 2*time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Ledger.BasePoints <= 0 {
		errs = append(errs, "LEDGER_BASE_POINTS must be positive")
	}
	if c.Ledger.StreakMultiplier < 1 {
		errs = append(errs, "LEDGER_STREAK_MULTIPLIER must be at least 1")
	}
	if c.Reminder.DefaultQuota < 0 {
		errs = append(errs, "REMINDER_DEFAULT_QUOTA must not be negative")
	}
	if c.Reminder.MaxTargetsPerCall <= 0 {
		errs = append(errs, "REMINDER_MAX_TARGETS must be positive")
	}
	if c.Scheduler.RefreshInterval <= 0 {
		errs = append(errs, "SCHEDULER_REFRESH_INTERVAL must be positive")
	}

	if c.App.Environment == EnvProduction {
		if c.Database.Host == "" {
			errs = append(errs, "DB_HOST is required in production")
		}
		if c.Database.Password == "" {
			errs = append(errs, "DB_PASSWORD is required in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
