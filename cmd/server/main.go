// Package main is the entry point of the treasury daemon. It serves the
// command interface, the health and metrics endpoints and the live dashboard,
// and runs the frequent and daily automation passes on a cron schedule.
//
// The daemon keeps four sqlite databases in SAP_DATA_DIR:
// - config.db: runtime settings
// - ledger.db: unified asset ledger, one partition per venue
// - portfolio.db: balance sheet, market indicators, snapshots, price history
// - cache.db: L2 cache entries (unused when redis backs the cache)
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/config"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/di"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/scheduler"
	"github.com/Larry-kang/GAS-Asset-Tracker/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("version", version).Msg("Starting SAP treasury daemon")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	sched := scheduler.New(log)
	if err := di.RegisterJobs(container, cfg, sched, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	// SCHEDULER_ENABLED is checked on every tick, so the cron always runs
	sched.Start()
	if !cfg.SchedulerEnabled {
		log.Warn().Msg("Scheduled runs disabled, runs only happen on command")
	}

	srv := di.NewServer(container, cfg, version, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
