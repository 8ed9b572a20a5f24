// Package portfolio provides the position source: the balance sheet rows, their
// import, and the aggregation into per-ticker values and totals.
package portfolio

import (
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// BalanceHeader is the expected header row of a balance sheet import
var BalanceHeader = []string{"Ticker", "Amount", "Value_TWD", "Purpose"}

// ParseBalanceRows converts raw sheet rows into positions. The first row is
// the header; the first row with an empty ticker ends the data. Non-numeric
// amounts and values read as zero.
func ParseBalanceRows(rows [][]string) []domain.Position {
	positions := make([]domain.Position, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		ticker := strings.TrimSpace(cell(row, 0))
		if ticker == "" {
			break
		}
		positions = append(positions, domain.Position{
			Ticker:  ticker,
			Amount:  parseNumber(cell(row, 1)),
			Value:   parseNumber(cell(row, 2)),
			Purpose: strings.TrimSpace(cell(row, 3)),
		})
	}
	return positions
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parseNumber accepts sheet-formatted numbers such as "1,234.5" or "NT$ 900"
func parseNumber(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "NT$", "", "$", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
