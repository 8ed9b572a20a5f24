package di

import (
	"fmt"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/config"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/database"
	"github.com/rs/zerolog"
)

type databaseSpec struct {
	name    string
	profile database.DatabaseProfile
	target  func(c *Container) **database.DB
}

// databaseSpecs lists the four databases:
//   - config.db: settings
//   - ledger.db: unified asset ledger
//   - portfolio.db: balance sheet, market indicators, snapshots and price history
//   - cache.db: L2 cache entries
var databaseSpecs = []databaseSpec{
	{"config", database.ProfileStandard, func(c *Container) **database.DB { return &c.ConfigDB }},
	{"ledger", database.ProfileLedger, func(c *Container) **database.DB { return &c.LedgerDB }},
	{"portfolio", database.ProfileStandard, func(c *Container) **database.DB { return &c.PortfolioDB }},
	{"cache", database.ProfileCache, func(c *Container) **database.DB { return &c.CacheDB }},
}

// InitializeDatabases opens every database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{log: log}

	for _, spec := range databaseSpecs {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(spec.name),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target(container) = db

		if err := db.Migrate(); err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", spec.name, err)
		}
	}

	log.Info().Int("databases", len(databaseSpecs)).Str("dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
