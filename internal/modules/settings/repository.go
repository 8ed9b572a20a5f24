// Package settings provides the operator-editable key/value settings: the
// durable repository in config.db and the run-scoped cached Service on top of it.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles settings database operations.
// Settings are stored as strings and converted to the requested type on read.
type Repository struct {
	db  *sql.DB        // config.db - settings table
	log zerolog.Logger // Structured logger
}

// NewRepository creates a new settings repository.
//
// Parameters:
//   - db: Database connection to config.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a setting value by key.
// Returns nil if the setting doesn't exist (not an error).
//
// Parameters:
//   - ctx: Request context
//   - key: Setting key (e.g., "ADMIN_EMAIL", "PROXY_PASSWORD")
//
// Returns:
//   - *string: Setting value if found, nil if not found
//   - error: Error if query fails
func (r *Repository) Get(ctx context.Context, key string) (*string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set upserts a setting value. When no description is given the known
// description for the key is used.
//
// Parameters:
//   - ctx: Request context
//   - key: Setting key
//   - value: Setting value (stored as string)
//
// Returns:
//   - error: Error if database operation fails
func (r *Repository) Set(ctx context.Context, key string, value string) error {
	now := time.Now().Unix()
	description := SettingDescriptions[key]

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = COALESCE(NULLIF(excluded.description, ''), settings.description),
			updated_at = excluded.updated_at
	`, key, value, description, now)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes a setting. Deleting a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// GetAll retrieves all settings as a map.
//
// Returns:
//   - map[string]string: Map of setting keys to values
//   - error: Error if query fails
func (r *Repository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get all settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan setting row")
			continue
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return result, nil
}

// GetFloat retrieves a setting value as float64.
// Returns defaultValue if the setting doesn't exist or parsing fails.
func (r *Repository) GetFloat(ctx context.Context, key string, defaultValue float64) (float64, error) {
	value, err := r.Get(ctx, key)
	if err != nil {
		return defaultValue, err
	}
	if value == nil {
		return defaultValue, nil
	}
	return parseFloat(r.log, key, *value, defaultValue), nil
}

// GetInt retrieves a setting value as integer.
// Handles "12.0" strings by parsing via float first.
func (r *Repository) GetInt(ctx context.Context, key string, defaultValue int) (int, error) {
	f, err := r.GetFloat(ctx, key, float64(defaultValue))
	return int(f), err
}

// SeedDefaults writes SettingDefaults for keys that have never been set
func (r *Repository) SeedDefaults(ctx context.Context) error {
	existing, err := r.GetAll(ctx)
	if err != nil {
		return err
	}
	for key, value := range SettingDefaults {
		if _, ok := existing[key]; ok {
			continue
		}
		if err := r.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func parseFloat(log zerolog.Logger, key, value string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Str("value", value).
			Msg("Failed to parse float setting")
		return defaultValue
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
