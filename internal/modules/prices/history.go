package prices

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/pkg/formulas"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// HistoryRepository stores one close per ticker per day in portfolio.db
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new price history repository
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repository", "price_history").Logger(),
	}
}

// Record upserts the close for ticker on the given day
func (r *HistoryRepository) Record(ctx context.Context, ticker string, day time.Time, close float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_history (ticker, date, close) VALUES (?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close`,
		ticker, day.Format(dateLayout), close)
	if err != nil {
		return fmt.Errorf("failed to record close for %s: %w", ticker, err)
	}
	return nil
}

// Closes returns up to limit most recent closes in chronological order
func (r *HistoryRepository) Closes(ctx context.Context, ticker string, limit int) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT close FROM (
			SELECT date, close FROM price_history WHERE ticker = ? ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", ticker, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

// MayerMultiple computes the regime multiple from stored closes. ok is false
// until 200 days of history exist.
func (r *HistoryRepository) MayerMultiple(ctx context.Context, ticker string) (float64, bool, error) {
	closes, err := r.Closes(ctx, ticker, formulas.MayerPeriod)
	if err != nil {
		return 0, false, err
	}
	mm := formulas.MayerMultiple(closes)
	if mm == nil {
		return 0, false, nil
	}
	return *mm, true, nil
}
