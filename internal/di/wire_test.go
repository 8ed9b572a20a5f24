package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/config"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = zerolog.New(nil).Level(zerolog.Disabled)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:          t.TempDir(),
		Port:             8080,
		CacheBackend:     config.CacheBackendSQLite,
		FrequentSchedule: "@every 30m",
		DailySchedule:    "0 0 1 * * *",
		MaintenanceCron:  "0 30 3 * * *",
		SchedulerEnabled: true,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(cfg, quiet)
	require.NoError(t, err)
	defer container.Close()

	assert.Len(t, container.Databases(), 4)
	assert.FileExists(t, cfg.DatabasePath("ledger"))
	assert.NotNil(t, container.SQLiteCache)
	assert.Nil(t, container.RedisClient)
	assert.Nil(t, container.Backups)
	assert.Equal(t, []string{"Binance"}, container.SyncManager.Venues())
	assert.NotEmpty(t, container.Rules.Rules())

	// seeded defaults drive the daily schedule
	assert.Equal(t, "0 0 1 * * *", cfg.DailySchedule)
	assert.Equal(t, "100000", container.NewSettings().Get(context.Background(), settings.KeyTreasuryReserve, ""))
}

func TestWire_SettingsOverrideSchedule(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(cfg, quiet)
	require.NoError(t, err)
	require.NoError(t, container.SettingsRepo.Set(context.Background(), settings.KeySchedulerMode, "INTERVAL"))
	require.NoError(t, container.SettingsRepo.Set(context.Background(), settings.KeySchedulerIntervalHours, "6"))
	require.NoError(t, container.Close())

	container, err = Wire(cfg, quiet)
	require.NoError(t, err)
	defer container.Close()
	assert.Equal(t, "0 0 */6 * * *", cfg.DailySchedule)
}

func TestWire_MissingSourcesFailTheRun(t *testing.T) {
	container, err := Wire(testConfig(t), quiet)
	require.NoError(t, err)
	defer container.Close()

	_, err = container.Automation.BuildContext(context.Background())
	assert.Error(t, err)
}

func TestNewServer_Routes(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(cfg, quiet)
	require.NoError(t, err)
	defer container.Close()

	router := NewServer(container, cfg, "test", quiet).Router()
	for _, path := range []string{"/api/health", "/api/settings/", "/api/ledger", "/api/snapshots/", "/api/allocation/targets", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRegisterJobs(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(cfg, quiet)
	require.NoError(t, err)
	defer container.Close()

	require.NoError(t, RegisterJobs(container, cfg, scheduler.New(quiet), quiet))

	cfg.FrequentSchedule = "whenever"
	assert.Error(t, RegisterJobs(container, cfg, scheduler.New(quiet), quiet))
}

func TestInitializeDatabases_BadDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = "/dev/null/nope"
	_, err := InitializeDatabases(cfg, quiet)
	assert.Error(t, err)
}
