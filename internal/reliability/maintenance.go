package reliability

import (
	"context"
	"fmt"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// walFramesWarn is the WAL size that triggers a TRUNCATE checkpoint
	walFramesWarn = 1000

	diskWarnPercent = 90.0
)

// DatabaseStatus is the outcome of maintaining one database
type DatabaseStatus struct {
	Name         string `json:"name"`
	Healthy      bool   `json:"healthy"`
	WALFrames    int    `json:"walFrames"`
	Checkpointed bool   `json:"checkpointed"`
	Error        string `json:"error,omitempty"`
}

// MaintenanceReport summarizes one maintenance pass
type MaintenanceReport struct {
	Databases   []DatabaseStatus `json:"databases"`
	DiskPercent float64          `json:"diskPercent"`
	DiskFreeGB  float64          `json:"diskFreeGb"`
}

// Healthy reports whether every database passed its integrity check
func (r MaintenanceReport) Healthy() bool {
	for _, d := range r.Databases {
		if !d.Healthy {
			return false
		}
	}
	return true
}

// MaintenanceService keeps the sqlite files healthy: integrity checks, WAL
// checkpoints and a disk space reading for the data directory
type MaintenanceService struct {
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceService creates a maintenance service
func NewMaintenanceService(databases []*database.DB, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// Run performs one maintenance pass. It fails only when a database is
// corrupt; WAL and disk problems are logged.
func (s *MaintenanceService) Run(ctx context.Context) (MaintenanceReport, error) {
	var report MaintenanceReport
	var unhealthy []string

	for _, db := range s.databases {
		status := s.maintain(ctx, db)
		if !status.Healthy {
			unhealthy = append(unhealthy, status.Name)
		}
		report.Databases = append(report.Databases, status)
	}

	if s.dataDir != "" {
		usage, err := disk.UsageWithContext(ctx, s.dataDir)
		if err != nil {
			s.log.Warn().Err(err).Str("path", s.dataDir).Msg("Failed to read disk usage")
		} else {
			report.DiskPercent = usage.UsedPercent
			report.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
			if usage.UsedPercent > diskWarnPercent {
				s.log.Warn().
					Float64("used_percent", usage.UsedPercent).
					Float64("free_gb", report.DiskFreeGB).
					Msg("Data directory is nearly full")
			}
		}
	}

	s.log.Info().
		Int("databases", len(report.Databases)).
		Int("unhealthy", len(unhealthy)).
		Msg("Database maintenance completed")

	if len(unhealthy) > 0 {
		return report, fmt.Errorf("integrity check failed for %v", unhealthy)
	}
	return report, nil
}

func (s *MaintenanceService) maintain(ctx context.Context, db *database.DB) DatabaseStatus {
	status := DatabaseStatus{Name: db.Name()}

	if err := db.HealthCheck(ctx); err != nil {
		status.Error = err.Error()
		s.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
		return status
	}
	status.Healthy = true

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		s.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to check WAL checkpoint")
		return status
	}
	status.WALFrames = frames

	if frames > walFramesWarn {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL truncate failed")
			return status
		}
		status.Checkpointed = true
		s.log.Info().
			Str("database", db.Name()).
			Int("wal_frames", frames).
			Msg("WAL truncated")
	}
	return status
}
