// Package config provides configuration management functionality.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/notify"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/reliability"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/scheduler"
	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for all databases, always absolute
	Port             int
	DevMode          bool
	LogLevel         string
	LogPretty        bool
	StrategyFile     string // Optional YAML override of the embedded strategy
	CacheBackend     string
	RedisURL         string
	FrequentSchedule string
	DailySchedule    string
	SchedulerEnabled bool
	MaintenanceCron  string
	BinanceAPIKey    string
	BinanceAPISecret string
	SMTP             notify.SMTPConfig
	Backup           BackupConfig
}

// BackupConfig holds off-site backup settings
type BackupConfig struct {
	R2            reliability.R2Config
	Schedule      string
	RetentionDays int
}

// Enabled reports whether backups should be scheduled
func (c BackupConfig) Enabled() bool {
	return c.R2.Enabled()
}

// SettingsReader is the read side of the settings service
type SettingsReader interface {
	Get(ctx context.Context, key, def string) string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("SAP_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("SAP_PORT", 8080),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", false),
		StrategyFile:     getEnv("SAP_STRATEGY_FILE", ""),
		CacheBackend:     strings.ToLower(getEnv("SAP_CACHE_BACKEND", CacheBackendSQLite)),
		RedisURL:         getEnv("REDIS_URL", ""),
		FrequentSchedule: getEnv("SAP_FREQUENT_SCHEDULE", "@every 30m"),
		DailySchedule:    getEnv("SAP_DAILY_SCHEDULE", "0 0 1 * * *"),
		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", true),
		MaintenanceCron:  getEnv("SAP_MAINTENANCE_SCHEDULE", "0 30 3 * * *"),
		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret: getEnv("BINANCE_API_SECRET", ""),
		SMTP: notify.SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		Backup: BackupConfig{
			R2: reliability.R2Config{
				AccountID:       getEnv("R2_ACCOUNT_ID", ""),
				AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
				Bucket:          getEnv("R2_BUCKET", ""),
				Endpoint:        getEnv("R2_ENDPOINT", ""),
			},
			Schedule:      getEnv("R2_BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays: getEnvAsInt("R2_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
// Settings values take precedence over environment variables when non-empty.
func (c *Config) UpdateFromSettings(ctx context.Context, store SettingsReader) {
	if v := store.Get(ctx, settings.KeyBinanceAPIKey, ""); v != "" {
		c.BinanceAPIKey = v
	}
	if v := store.Get(ctx, settings.KeyBinanceAPISecret, ""); v != "" {
		c.BinanceAPISecret = v
	}
	if v := store.Get(ctx, settings.KeySchedulerEnabled, ""); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.SchedulerEnabled = enabled
		}
	}

	if mode := store.Get(ctx, settings.KeySchedulerMode, ""); mode != "" {
		c.DailySchedule = scheduler.ScheduleFromSettings(
			mode,
			atoiOr(store.Get(ctx, settings.KeySchedulerIntervalHours, ""), 4),
			atoiOr(store.Get(ctx, settings.KeySchedulerHour, ""), 1),
		)
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case CacheBackendSQLite:
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SAP_CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// DatabasePath returns the path of a named database inside DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	return atoiOr(os.Getenv(key), defaultValue)
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func atoiOr(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	// settings may hold "3.0"
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return defaultValue
}
