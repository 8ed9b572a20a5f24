package portfolio

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/database"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const balanceTable = "balance_sheet"

const createBalanceTable = `
CREATE TABLE IF NOT EXISTS balance_sheet (
    row_idx INTEGER PRIMARY KEY,
    ticker TEXT NOT NULL,
    amount TEXT NOT NULL DEFAULT '0',
    value_twd TEXT NOT NULL DEFAULT '0',
    purpose TEXT NOT NULL DEFAULT ''
) STRICT`

// PositionRepository reads and imports the balance sheet in portfolio.db
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repository", "position").Logger(),
	}
}

// GetAll returns every position in sheet order. A balance sheet that was
// never imported is a MissingSourceError.
func (r *PositionRepository) GetAll(ctx context.Context) ([]domain.Position, error) {
	exists, err := database.TableExists(ctx, r.db, balanceTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &domain.MissingSourceError{Source: balanceTable}
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT ticker, amount, value_twd, purpose FROM balance_sheet ORDER BY row_idx")
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var amount, value string
		if err := rows.Scan(&p.Ticker, &amount, &value, &p.Purpose); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Amount = parseNumber(amount)
		if p.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("%w: position %s has value %q", domain.ErrDataShape, p.Ticker, value)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// ReplaceAll creates the balance sheet if needed and replaces its body
func (r *PositionRepository) ReplaceAll(ctx context.Context, positions []domain.Position) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createBalanceTable); err != nil {
			return fmt.Errorf("failed to create balance sheet: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM balance_sheet"); err != nil {
			return fmt.Errorf("failed to clear balance sheet: %w", err)
		}
		for i, p := range positions {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO balance_sheet (row_idx, ticker, amount, value_twd, purpose) VALUES (?, ?, ?, ?, ?)",
				i+1, p.Ticker, p.Amount.String(), p.Value.String(), p.Purpose,
			); err != nil {
				return fmt.Errorf("failed to insert position %s: %w", p.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Info().Int("positions", len(positions)).Msg("Balance sheet replaced")
	return nil
}
