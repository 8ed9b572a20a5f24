package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/database"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository reads and rewrites the unified_assets table in ledger.db.
// UpdateLedger assumes at most one sync pass is in flight; the ledger database
// runs with a single connection so concurrent merges serialize on it.
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repository", "ledger").Logger(),
	}
}

// All returns every ledger row in stored order
func (r *Repository) All(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT exchange, currency, amount, type, status, meta, updated FROM unified_assets ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByExchange returns the rows of one partition
func (r *Repository) ByExchange(ctx context.Context, exchange string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT exchange, currency, amount, type, status, meta, updated FROM unified_assets WHERE exchange = ? ORDER BY id",
		exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for %s: %w", exchange, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// UpdateLedger atomically replaces the rows of partition with entries. Other
// partitions are rewritten unchanged in the same transaction, so readers see
// either the old table or the new one.
func (r *Repository) UpdateLedger(ctx context.Context, partition string, entries []Entry) error {
	stamp := r.now().UTC().Truncate(time.Second)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT exchange, currency, amount, type, status, meta, updated FROM unified_assets ORDER BY id")
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		existing, err := scanEntries(rows)
		rows.Close()
		if err != nil {
			return err
		}

		merged := Merge(existing, partition, entries, stamp)

		if _, err := tx.ExecContext(ctx, "DELETE FROM unified_assets"); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO unified_assets (exchange, currency, amount, type, status, meta, updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare ledger insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range merged {
			if _, err := stmt.ExecContext(ctx,
				e.Exchange, e.Currency, e.Amount.String(), string(e.Type), string(e.Status), e.Meta,
				e.Updated.UTC().Format(time.RFC3339),
			); err != nil {
				return fmt.Errorf("failed to insert ledger row %s/%s: %w", e.Exchange, e.Currency, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update ledger partition %s: %w", partition, err)
	}

	r.log.Info().
		Str("exchange", partition).
		Int("entries", len(entries)).
		Msg("Ledger partition replaced")
	return nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var amount, entryType, status, updated string
		if err := rows.Scan(&e.Exchange, &e.Currency, &amount, &entryType, &status, &e.Meta, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid ledger amount %q for %s/%s: %w", amount, e.Exchange, e.Currency, err)
		}
		e.Amount = d
		e.Type = EntryType(entryType)
		e.Status = Status(status)
		if t, err := time.Parse(time.RFC3339, updated); err == nil {
			e.Updated = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger: %w", err)
	}
	return entries, nil
}
