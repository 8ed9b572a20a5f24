package di

import (
	"context"
	"fmt"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/cache"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/clients/binance"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/config"
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
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "sap:"

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.SettingsRepo = settings.NewRepository(container.ConfigDB.Conn(), log)
	if err := container.SettingsRepo.SeedDefaults(context.Background()); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	container.PositionRepo = portfolio.NewPositionRepository(container.PortfolioDB.Conn(), log)
	container.IndicatorRepo = indicators.NewRepository(container.PortfolioDB.Conn(), log)
	container.LedgerRepo = ledger.NewRepository(container.LedgerDB.Conn(), log)
	container.PriceHistory = prices.NewHistoryRepository(container.PortfolioDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewRepository(container.PortfolioDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}

// InitializeServices creates the cache tier, the collaborators of the
// decision core and the automation service
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	strat, err := strategy.Load(cfg.StrategyFile)
	if err != nil {
		return err
	}
	container.Strategy = strat
	container.Metrics = metrics.New()

	if err := initializeCacheStore(container, cfg); err != nil {
		return err
	}

	// Price fetchers, tried in order
	container.PriceFetchers = []prices.Fetcher{
		prices.NewCryptoPricesFetcher("", nil),
		prices.NewCoinMarketCapFetcher("", container.settingFunc(settings.KeyCMCAPIKey, ""), nil),
	}

	// Venue sync
	container.Binance = binance.NewClient(func(ctx context.Context) binance.Credentials {
		s := container.NewSettings()
		return binance.Credentials{
			APIKey:        s.Get(ctx, settings.KeyBinanceAPIKey, cfg.BinanceAPIKey),
			APISecret:     s.Get(ctx, settings.KeyBinanceAPISecret, cfg.BinanceAPISecret),
			TunnelURL:     s.Get(ctx, settings.KeyTunnelURL, ""),
			ProxyPassword: s.Get(ctx, settings.KeyProxyPassword, ""),
		}
	}, nil, log)
	container.SyncManager = syncpkg.NewManager(
		[]syncpkg.Venue{binance.NewVenue(container.Binance)},
		container.LedgerRepo,
		syncpkg.DefaultBreakerSettings,
		container.Metrics,
		log,
	)

	// Notifications: Discord first, email for important severities
	container.Notifier = notify.NewFallback(
		notify.NewDiscord(container.settingFunc(settings.KeyDiscordWebhookURL, ""), nil, log),
		notify.NewEmail(cfg.SMTP, container.settingFunc(settings.KeyAdminEmail, ""), log),
		container.Metrics,
		log,
	)

	container.Rules = rules.NewEngine(rules.StrategicRules(strat), container.Metrics, log)
	container.Hub = server.NewDashboardHub(container.Metrics.DashboardClients, log)

	container.Automation = services.NewAutomationService(services.AutomationDeps{
		NewScope:  container.NewScope,
		Syncer:    container.SyncManager,
		Rules:     container.Rules,
		History:   container.PriceHistory,
		Snapshots: container.SnapshotRepo,
		Notifier:  container.Notifier,
		Observer:  container.Metrics,
		Publisher: container.Hub,
	}, strat, []string{services.RegimeTicker}, log)

	// Reliability
	container.Maintenance = reliability.NewMaintenanceService(container.Databases(), cfg.DataDir, log)
	if cfg.Backup.Enabled() {
		store, err := reliability.NewR2Client(context.Background(), cfg.Backup.R2, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.Backups = reliability.NewBackupService(store, container.Databases(), cfg.DataDir, strat.Version, log)
	} else {
		log.Info().Msg("Off-site backup not configured, skipping")
	}

	log.Info().Str("cache", cfg.CacheBackend).Msg("Services initialized")
	return nil
}

func initializeCacheStore(container *Container, cfg *config.Config) error {
	if cfg.CacheBackend == config.CacheBackendRedis {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		container.RedisClient = client
		container.CacheStore = cache.NewRedisStore(client, redisKeyPrefix)
		return nil
	}

	container.SQLiteCache = cache.NewSQLiteStore(container.CacheDB.Conn())
	container.CacheStore = container.SQLiteCache
	return nil
}

// settingFunc resolves a setting on every call, so a value saved through the
// command interface takes effect on the next send
func (c *Container) settingFunc(key, def string) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		return c.NewSettings().Get(ctx, key, def)
	}
}
