package di

import (
	"context"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/cache"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/config"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs adds every periodic job to the scheduler. The cache cleanup
// job exists only for the sqlite tier; backups only when configured.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) error {
	enabled := func(ctx context.Context) bool {
		return container.NewSettings().GetBool(ctx, settings.KeySchedulerEnabled, cfg.SchedulerEnabled)
	}

	if err := sched.AddJob(cfg.FrequentSchedule, scheduler.NewFrequentRunJob(container.Automation, enabled, log)); err != nil {
		return err
	}
	if err := sched.AddJob(cfg.DailySchedule, scheduler.NewDailyRunJob(container.Automation, enabled, log)); err != nil {
		return err
	}
	if err := sched.AddJob(cfg.MaintenanceCron, scheduler.NewMaintenanceJob(container.Maintenance)); err != nil {
		return err
	}

	if container.SQLiteCache != nil {
		if err := sched.AddJob("@hourly", cache.NewCleanupJob(container.SQLiteCache, log)); err != nil {
			return err
		}
	}

	if container.Backups != nil {
		job := scheduler.NewBackupJob(container.Backups, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, job); err != nil {
			return err
		}
	}

	return nil
}
