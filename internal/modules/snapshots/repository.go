// Package snapshots records one net-worth snapshot per day and derives growth statistics.
package snapshots

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day key of a snapshot
const DateLayout = "2006-01-02"

// Snapshot is one recorded day
type Snapshot struct {
	Date         string          `json:"date"`
	GrossAssets  decimal.Decimal `json:"grossAssets"`
	Liabilities  decimal.Decimal `json:"liabilities"`
	NetWorth     decimal.Decimal `json:"netWorth"`
	ReserveValue decimal.Decimal `json:"reserveValue"`
	Growth       float64         `json:"growth"`
	RecordedAt   time.Time       `json:"recordedAt"`
}

// Stats summarises daily growth over a window of snapshots
type Stats struct {
	Days        int      `json:"days"`
	MeanGrowth  float64  `json:"meanGrowth"`
	StdDev      float64  `json:"stdDev"`
	MaxDrawdown *float64 `json:"maxDrawdown,omitempty"`
}

// Repository stores daily snapshots in portfolio.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
		now: time.Now,
	}
}

// FromContext projects a portfolio context onto a snapshot row for day.
// The reserve value is taken from the asset group reserveGroupID.
func FromContext(pc *domain.PortfolioContext, reserveGroupID string, day time.Time) Snapshot {
	s := Snapshot{
		Date:        day.Format(DateLayout),
		GrossAssets: pc.TotalGrossAssets,
		Liabilities: pc.TotalLiabilities.Abs(),
		NetWorth:    pc.NetEntityValue,
	}
	if g := pc.AssetGroup(reserveGroupID); g != nil {
		s.ReserveValue = g.Value
	}
	return s
}

// Record upserts the snapshot for its day. Growth is measured against the
// net worth of the previous calendar day, and stays zero without one.
func (r *Repository) Record(ctx context.Context, s Snapshot) (Snapshot, error) {
	day, err := time.Parse(DateLayout, s.Date)
	if err != nil {
		return s, fmt.Errorf("%w: snapshot date %q", domain.ErrDataShape, s.Date)
	}

	s.Growth = 0
	prev, ok, err := r.Get(ctx, day.AddDate(0, 0, -1).Format(DateLayout))
	if err != nil {
		return s, err
	}
	if ok && prev.NetWorth.IsPositive() {
		s.Growth, _ = s.NetWorth.Sub(prev.NetWorth).Div(prev.NetWorth).Float64()
	}
	s.RecordedAt = r.now().UTC().Truncate(time.Second)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_snapshots (date, gross_assets, liabilities, net_worth, reserve_value, growth, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			gross_assets = excluded.gross_assets,
			liabilities = excluded.liabilities,
			net_worth = excluded.net_worth,
			reserve_value = excluded.reserve_value,
			growth = excluded.growth,
			recorded_at = excluded.recorded_at`,
		s.Date, s.GrossAssets.String(), s.Liabilities.String(), s.NetWorth.String(),
		s.ReserveValue.String(), decimal.NewFromFloat(s.Growth).String(), s.RecordedAt.Unix())
	if err != nil {
		return s, fmt.Errorf("failed to record snapshot %s: %w", s.Date, err)
	}

	r.log.Info().
		Str("date", s.Date).
		Str("net_worth", s.NetWorth.StringFixed(0)).
		Float64("growth", s.Growth).
		Msg("Daily snapshot recorded")
	return s, nil
}

// Get returns the snapshot for date, if any
func (r *Repository) Get(ctx context.Context, date string) (Snapshot, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT date, gross_assets, liabilities, net_worth, reserve_value, growth, recorded_at
		FROM daily_snapshots WHERE date = ?`, date)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

// History returns up to limit most recent snapshots in chronological order.
// A non-positive limit returns everything.
func (r *Repository) History(ctx context.Context, limit int) ([]Snapshot, error) {
	query := `SELECT date, gross_assets, liabilities, net_worth, reserve_value, growth, recorded_at
		FROM daily_snapshots ORDER BY date DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Stats computes growth statistics over the last window snapshots
func (r *Repository) Stats(ctx context.Context, window int) (Stats, error) {
	history, err := r.History(ctx, window)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(history), nil
}

// Summarize computes growth statistics over a chronological history.
// The first day carries no growth of its own and is left out of the mean.
func Summarize(history []Snapshot) Stats {
	st := Stats{Days: len(history)}
	if len(history) == 0 {
		return st
	}

	growth := make([]float64, 0, len(history))
	netWorth := make([]float64, 0, len(history))
	for i, s := range history {
		nw, _ := s.NetWorth.Float64()
		netWorth = append(netWorth, nw)
		if i > 0 {
			growth = append(growth, s.Growth)
		}
	}

	st.MeanGrowth = formulas.Mean(growth)
	st.StdDev = formulas.StdDev(growth)
	st.MaxDrawdown = formulas.CalculateMaxDrawdown(netWorth)
	return st
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(sc scanner) (Snapshot, error) {
	var (
		s                             Snapshot
		gross, liab, net, res, growth string
		recordedAt                    int64
	)
	if err := sc.Scan(&s.Date, &gross, &liab, &net, &res, &growth, &recordedAt); err != nil {
		if err == sql.ErrNoRows {
			return s, err
		}
		return s, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	var err error
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{{gross, &s.GrossAssets}, {liab, &s.Liabilities}, {net, &s.NetWorth}, {res, &s.ReserveValue}} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return s, fmt.Errorf("%w: snapshot %s has value %q", domain.ErrDataShape, s.Date, f.raw)
		}
	}
	g, err := decimal.NewFromString(growth)
	if err != nil {
		return s, fmt.Errorf("%w: snapshot %s has growth %q", domain.ErrDataShape, s.Date, growth)
	}
	s.Growth, _ = g.Float64()
	s.RecordedAt = time.Unix(recordedAt, 0).UTC()
	return s, nil
}
