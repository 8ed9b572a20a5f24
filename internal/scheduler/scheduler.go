// Package scheduler runs the periodic jobs of the treasury daemon on cron
// schedules.
package scheduler

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler modes stored in SCHEDULER_MODE
const (
	ModeDaily    = "DAILY"
	ModeInterval = "INTERVAL"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */30 * * * *"     - Every 30 minutes
//   - "0 0 1 * * *"        - 01:00 every day
//   - "@every 30m"         - Every 30 minutes from start
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})

	if err != nil {
		return fmt.Errorf("failed to schedule %s with %q: %w", job.Name(), schedule, err)
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

// ScheduleFromSettings turns the stored scheduler settings into a cron
// expression. INTERVAL mode runs every intervalHours on the hour; anything else is
// DAILY at hour. Out of range values fall back to 4 hours and 01:00.
func ScheduleFromSettings(mode string, intervalHours, hour int) string {
	if strings.EqualFold(strings.TrimSpace(mode), ModeInterval) {
		if intervalHours < 1 || intervalHours > 23 {
			intervalHours = 4
		}
		return fmt.Sprintf("0 0 */%d * * *", intervalHours)
	}

	if hour < 0 || hour > 23 {
		hour = 1
	}
	return fmt.Sprintf("0 0 %d * * *", hour)
}
