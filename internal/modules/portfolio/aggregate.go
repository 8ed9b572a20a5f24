package portfolio

import (
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Totals are the balance sheet totals over aggregated tickers
type Totals struct {
	Gross       decimal.Decimal
	Net         decimal.Decimal
	Liabilities decimal.Decimal
}

// Aggregate sums signed values per ticker. Mixed-sign rows net out.
func Aggregate(positions []domain.Position) map[string]decimal.Decimal {
	summary := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		summary[p.Ticker] = summary[p.Ticker].Add(p.Value)
	}
	return summary
}

// ComputeTotals returns gross (sum of positive aggregates), net (sum of all)
// and liabilities (sum of |negative aggregates|). Net always equals
// gross minus liabilities.
func ComputeTotals(summary map[string]decimal.Decimal) Totals {
	t := Totals{Gross: decimal.Zero, Net: decimal.Zero, Liabilities: decimal.Zero}
	for _, v := range summary {
		t.Net = t.Net.Add(v)
		if v.IsPositive() {
			t.Gross = t.Gross.Add(v)
		} else if v.IsNegative() {
			t.Liabilities = t.Liabilities.Add(v.Abs())
		}
	}
	return t
}
