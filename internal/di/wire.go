package di

import (
	"context"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/config"
	allocationhandlers "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/allocation/handlers"
	ledgerhandlers "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/portfolio/handlers"
	settingshandlers "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings/handlers"
	snapshothandlers "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/snapshots/handlers"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/server"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// On error every database opened so far is closed.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, err
	}

	if err := InitializeRepositories(container, log); err != nil {
		_ = container.Close()
		return nil, err
	}

	// Settings take precedence over the environment from here on
	cfg.UpdateFromSettings(context.Background(), container.NewSettings())

	if err := InitializeServices(container, cfg, log); err != nil {
		_ = container.Close()
		return nil, err
	}

	log.Info().Msg("Dependency injection complete")
	return container, nil
}

// NewServer builds the HTTP server over the container
func NewServer(container *Container, cfg *config.Config, version string, log zerolog.Logger) *server.Server {
	newSettings := func() server.SettingsAccess { return container.NewSettings() }

	return server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		Commands: server.NewCommandHandler(container.Automation, newSettings, version, log),
		Health:   server.NewHealthHandler(newSettings, container.PortfolioDB.Conn(), version, log),
		Hub:      container.Hub,
		Metrics:  container.Metrics,
		Modules: []server.RouteRegistrar{
			portfoliohandlers.NewHandler(container.PositionRepo, log),
			ledgerhandlers.NewHandler(container.LedgerRepo, log),
			snapshothandlers.NewHandler(container.SnapshotRepo, log),
			settingshandlers.NewHandler(container.NewSettings, log),
			allocationhandlers.NewHandler(container.Strategy, log),
		},
	})
}
