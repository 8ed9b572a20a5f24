package portfolio

import (
	"math/rand"
	"testing"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func pos(ticker string, value int64) domain.Position {
	return domain.Position{Ticker: ticker, Value: decimal.NewFromInt(value)}
}

func TestAggregate_NetsMixedSigns(t *testing.T) {
	summary := Aggregate([]domain.Position{
		pos("USDT", 1000),
		pos("USDT", -1500),
		pos("BTC", 2000),
	})

	assert.True(t, summary["USDT"].Equal(decimal.NewFromInt(-500)))
	assert.True(t, summary["BTC"].Equal(decimal.NewFromInt(2000)))
}

func TestComputeTotals(t *testing.T) {
	totals := ComputeTotals(Aggregate([]domain.Position{
		pos("BTC", 2000),
		pos("QQQ", 1000),
		pos("LOAN", -700),
	}))

	assert.True(t, totals.Gross.Equal(decimal.NewFromInt(3000)))
	assert.True(t, totals.Net.Equal(decimal.NewFromInt(2300)))
	assert.True(t, totals.Liabilities.Equal(decimal.NewFromInt(700)))
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := ComputeTotals(Aggregate(nil))

	assert.True(t, totals.Gross.IsZero())
	assert.True(t, totals.Net.IsZero())
	assert.True(t, totals.Liabilities.IsZero())
}

func TestComputeTotals_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tickers := []string{"BTC", "IBIT", "QQQ", "USDT", "LOAN", "CASH_TWD"}

	for i := 0; i < 200; i++ {
		n := rng.Intn(12)
		positions := make([]domain.Position, n)
		for j := range positions {
			positions[j] = pos(tickers[rng.Intn(len(tickers))], rng.Int63n(2_000_000)-1_000_000)
		}

		totals := ComputeTotals(Aggregate(positions))

		assert.True(t, totals.Gross.GreaterThanOrEqual(totals.Net))
		assert.True(t, totals.Net.Equal(totals.Gross.Sub(totals.Liabilities)))
	}
}
