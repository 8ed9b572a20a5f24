package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes expired L2 entries from the sqlite store.
// Redis expires its own keys and needs no job.
type CleanupJob struct {
	store *SQLiteStore
	log   zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job
func NewCleanupJob(store *SQLiteStore, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		store: store,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Cleaned up expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
