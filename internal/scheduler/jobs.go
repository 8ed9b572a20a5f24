package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/reliability"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/services"
	"github.com/rs/zerolog"
)

const (
	runTimeout         = 10 * time.Minute
	backupTimeout      = 30 * time.Minute
	maintenanceTimeout = 5 * time.Minute
)

// Automation is the part of the automation service the run jobs drive
type Automation interface {
	RunFrequent(ctx context.Context) (*services.RunResult, error)
	RunDaily(ctx context.Context) (*services.RunResult, error)
}

// EnabledFunc reports whether scheduled runs are switched on. It is read on
// every tick so the setting takes effect without a restart.
type EnabledFunc func(ctx context.Context) bool

// RunJob drives one automation cadence
type RunJob struct {
	name    string
	run     func(ctx context.Context) (*services.RunResult, error)
	enabled EnabledFunc
	log     zerolog.Logger
}

// NewFrequentRunJob refreshes the dashboard and logs alerts silently
func NewFrequentRunJob(automation Automation, enabled EnabledFunc, log zerolog.Logger) *RunJob {
	return newRunJob("frequent_run", automation.RunFrequent, enabled, log)
}

// NewDailyRunJob syncs, broadcasts the report and records the snapshot
func NewDailyRunJob(automation Automation, enabled EnabledFunc, log zerolog.Logger) *RunJob {
	return newRunJob("daily_run", automation.RunDaily, enabled, log)
}

func newRunJob(name string, run func(ctx context.Context) (*services.RunResult, error), enabled EnabledFunc, log zerolog.Logger) *RunJob {
	return &RunJob{
		name:    name,
		run:     run,
		enabled: enabled,
		log:     log.With().Str("job", name).Logger(),
	}
}

// Name returns the job name
func (j *RunJob) Name() string {
	return j.name
}

// Run executes one automation pass. An overlapping pass is skipped, not failed.
func (j *RunJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if j.enabled != nil && !j.enabled(ctx) {
		j.log.Debug().Msg("Scheduler disabled, skipping run")
		return nil
	}

	result, err := j.run(ctx)
	if errors.Is(err, services.ErrRunInProgress) {
		j.log.Warn().Msg("Previous run still in progress, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Int("alerts", len(result.Alerts)).
		Strs("sync_failures", result.SyncFailures).
		Msg("Scheduled run completed")
	return nil
}

// BackupJob uploads a backup and rotates old archives
type BackupJob struct {
	backups       *reliability.BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backups *reliability.BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups:       backups,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job. Rotation failures do not fail the job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if _, err := j.backups.CreateAndUpload(ctx); err != nil {
		return err
	}
	if _, err := j.backups.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// MaintenanceJob checks database integrity and keeps WAL files small
type MaintenanceJob struct {
	maintenance *reliability.MaintenanceService
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(maintenance *reliability.MaintenanceService) *MaintenanceJob {
	return &MaintenanceJob{maintenance: maintenance}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	_, err := j.maintenance.Run(ctx)
	return err
}
