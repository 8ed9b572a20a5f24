package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSettings map[string]string

func (m mapSettings) Get(_ context.Context, key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("SAP_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.DirExists(t, dir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, CacheBackendSQLite, cfg.CacheBackend)
	assert.Equal(t, "@every 30m", cfg.FrequentSchedule)
	assert.Equal(t, "0 0 1 * * *", cfg.DailySchedule)
	assert.True(t, cfg.SchedulerEnabled)
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.DatabasePath("ledger"))
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SAP_DATA_DIR", t.TempDir())
	t.Setenv("SAP_PORT", "9090")
	t.Setenv("SAP_CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "sap@example.com")
	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET", "backups")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, CacheBackendRedis, cfg.CacheBackend)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, 30, cfg.Backup.RetentionDays)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite", Config{CacheBackend: CacheBackendSQLite, Port: 8080}, false},
		{"redis without url", Config{CacheBackend: CacheBackendRedis, Port: 8080}, true},
		{"redis", Config{CacheBackend: CacheBackendRedis, RedisURL: "redis://x", Port: 8080}, false},
		{"unknown backend", Config{CacheBackend: "memcached", Port: 8080}, true},
		{"bad port", Config{CacheBackend: CacheBackendSQLite, Port: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateFromSettings(t *testing.T) {
	cfg := &Config{
		BinanceAPIKey:    "env-key",
		BinanceAPISecret: "env-secret",
		DailySchedule:    "0 0 1 * * *",
		SchedulerEnabled: true,
	}

	cfg.UpdateFromSettings(context.Background(), mapSettings{
		settings.KeyBinanceAPIKey:          "db-key",
		settings.KeySchedulerEnabled:       "false",
		settings.KeySchedulerMode:          "INTERVAL",
		settings.KeySchedulerIntervalHours: "6",
	})

	assert.Equal(t, "db-key", cfg.BinanceAPIKey)
	assert.Equal(t, "env-secret", cfg.BinanceAPISecret)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, "0 0 */6 * * *", cfg.DailySchedule)
}

func TestUpdateFromSettings_DailyHour(t *testing.T) {
	cfg := &Config{DailySchedule: "0 0 1 * * *"}
	cfg.UpdateFromSettings(context.Background(), mapSettings{
		settings.KeySchedulerMode: "DAILY",
		settings.KeySchedulerHour: "3.0",
	})
	assert.Equal(t, "0 0 3 * * *", cfg.DailySchedule)
}

func TestUpdateFromSettings_EmptyKeepsEnv(t *testing.T) {
	cfg := &Config{DailySchedule: "0 15 2 * * *", SchedulerEnabled: true}
	cfg.UpdateFromSettings(context.Background(), mapSettings{})
	assert.Equal(t, "0 15 2 * * *", cfg.DailySchedule)
	assert.True(t, cfg.SchedulerEnabled)
}
