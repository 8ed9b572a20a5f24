package indicators

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/database"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/rs/zerolog"
)

const indicatorTable = "market_indicators"

const createIndicatorTable = `
CREATE TABLE IF NOT EXISTS market_indicators (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
) STRICT`

// Repository reads and writes market_indicators in portfolio.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new indicator repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "indicators").Logger(),
	}
}

// Load returns the whole indicator table. A table that was never imported is
// a MissingSourceError.
func (r *Repository) Load(ctx context.Context) (Set, error) {
	exists, err := database.TableExists(ctx, r.db, indicatorTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &domain.MissingSourceError{Source: indicatorTable}
	}

	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM market_indicators")
	if err != nil {
		return nil, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer rows.Close()

	s := make(Set)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		s[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indicators: %w", err)
	}
	return s, nil
}

// ReplaceAll creates the indicator table if needed and replaces its body
func (r *Repository) ReplaceAll(ctx context.Context, s Set) error {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createIndicatorTable); err != nil {
			return fmt.Errorf("failed to create indicator table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM market_indicators"); err != nil {
			return fmt.Errorf("failed to clear indicators: %w", err)
		}
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO market_indicators (key, value) VALUES (?, ?)", k, s[k]); err != nil {
				return fmt.Errorf("failed to insert indicator %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Int("indicators", len(keys)).Msg("Indicators replaced")
	return nil
}

// Upsert sets individual indicator values, creating the table if needed.
// Used by the price refresh to keep live values current.
func (r *Repository) Upsert(ctx context.Context, values map[string]string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createIndicatorTable); err != nil {
			return fmt.Errorf("failed to create indicator table: %w", err)
		}
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO market_indicators (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
				return fmt.Errorf("failed to upsert indicator %s: %w", k, err)
			}
		}
		return nil
	})
}
