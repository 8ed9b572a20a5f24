// Package di wires the databases, repositories and services of the treasury
// daemon and the operator CLI.
package di

import (
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/cache"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/clients/binance"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/database"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/metrics"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/portfolio"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/prices"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/snapshots"
	syncpkg "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/sync"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/notify"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/reliability"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/rules"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/server"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/services"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	ConfigDB    *database.DB
	LedgerDB    *database.DB
	PortfolioDB *database.DB
	CacheDB     *database.DB

	// Cache tiers. SQLiteCache is nil when redis backs L2.
	CacheStore  cache.Store
	SQLiteCache *cache.SQLiteStore
	RedisClient *redis.Client

	// Repositories
	SettingsRepo  *settings.Repository
	PositionRepo  *portfolio.PositionRepository
	IndicatorRepo *indicators.Repository
	LedgerRepo    *ledger.Repository
	PriceHistory  *prices.HistoryRepository
	SnapshotRepo  *snapshots.Repository

	// Services
	Strategy      *strategy.Config
	Metrics       *metrics.Metrics
	PriceFetchers []prices.Fetcher
	Binance       *binance.Client
	SyncManager   *syncpkg.Manager
	Notifier      notify.Channel
	Rules         *rules.StrategicEngine
	Automation    *services.AutomationService
	Hub           *server.DashboardHub
	Backups       *reliability.BackupService // nil when off-site backup is not configured
	Maintenance   *reliability.MaintenanceService

	log zerolog.Logger
}

// Databases returns every open database in a stable order
func (c *Container) Databases() []*database.DB {
	var out []*database.DB
	for _, db := range []*database.DB{c.ConfigDB, c.LedgerDB, c.PortfolioDB, c.CacheDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}

// NewCache creates a run-scoped cache over the shared L2 store. Before
// InitializeServices it has neither L2 nor metrics.
func (c *Container) NewCache() *cache.Cache {
	var m cache.Metrics
	if c.Metrics != nil {
		m = c.Metrics
	}
	return cache.New(c.CacheStore, m, c.log)
}

// NewSettings creates a settings service with a fresh run cache
func (c *Container) NewSettings() *settings.Service {
	return settings.NewService(c.SettingsRepo, c.NewCache(), c.log)
}

// NewScope creates the collaborators of one run. They share one cache so a
// price fetched during the refresh is not fetched again by the builder.
func (c *Container) NewScope() services.RunScope {
	runCache := c.NewCache()
	runSettings := settings.NewService(c.SettingsRepo, runCache, c.log)

	runPrices := prices.NewService(runCache, c.PriceFetchers, c.log)

	return services.RunScope{
		Builder: services.NewContextBuilder(
			c.PositionRepo,
			c.IndicatorRepo,
			runSettings,
			c.PriceHistory,
			c.Strategy,
			c.log,
		).WithLedger(c.LedgerRepo, runPrices),
		Prices: runPrices,
	}
}

// Close closes every database and the redis client
func (c *Container) Close() error {
	var firstErr error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			firstErr = err
		}
	}
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		c.log.Warn().Err(firstErr).Msg("Failed to close all resources cleanly")
	}
	return firstErr
}
