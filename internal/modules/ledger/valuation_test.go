package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_PricesAndTagsRows(t *testing.T) {
	entries := []Entry{
		{Exchange: "Binance", Currency: "BTC", Amount: decimal.NewFromFloat(0.5), Type: TypeSpot, Status: StatusAvailable},
		{Exchange: "Binance", Currency: "BTC", Amount: decimal.NewFromFloat(0.2), Type: TypeLoan, Status: StatusCollateral},
		{Exchange: "Binance", Currency: "USDT", Amount: decimal.NewFromInt(-1000), Type: TypeLoan, Status: StatusDebt},
		{Exchange: "Bank", Currency: "TWD", Amount: decimal.NewFromInt(50000)},
	}
	calls := 0
	quote := func(currency string) (float64, error) {
		calls++
		require.Equal(t, "BTC", currency)
		return 60000, nil
	}

	v := Value(entries, quote, 32)

	require.Empty(t, v.Skipped)
	require.Len(t, v.Positions, 4)
	assert.Equal(t, 1, calls)

	spot := v.Positions[0]
	assert.Equal(t, "BTC", spot.Ticker)
	assert.True(t, spot.Value.Equal(decimal.NewFromInt(960_000)), spot.Value.String())
	assert.Empty(t, spot.Purpose)

	collateral := v.Positions[1]
	assert.Equal(t, "Binance_Pledge", collateral.Purpose)
	assert.True(t, collateral.Value.Equal(decimal.NewFromInt(384_000)), collateral.Value.String())

	debt := v.Positions[2]
	assert.Equal(t, "USDT", debt.Ticker)
	assert.Equal(t, "Binance_Pledge", debt.Purpose)
	assert.True(t, debt.Value.Equal(decimal.NewFromInt(-32_000)), debt.Value.String())

	cash := v.Positions[3]
	assert.True(t, cash.Value.Equal(decimal.NewFromInt(50_000)))
}

func TestValue_DebtIsAlwaysNegative(t *testing.T) {
	entries := []Entry{
		{Exchange: "OKX", Currency: "USDC", Amount: decimal.NewFromInt(500), Type: TypeLoan, Status: StatusDebt},
	}

	v := Value(entries, nil, 30)

	require.Len(t, v.Positions, 1)
	assert.True(t, v.Positions[0].Value.Equal(decimal.NewFromInt(-15_000)))
	assert.True(t, v.Positions[0].Amount.IsNegative())
	assert.Equal(t, "OKX_Pledge", v.Positions[0].Purpose)
}

func TestValue_UnpricedRowsAreSkipped(t *testing.T) {
	entries := []Entry{
		{Exchange: "Binance", Currency: "PEPE", Amount: decimal.NewFromInt(1000)},
		{Exchange: "Binance", Currency: "PEPE", Amount: decimal.NewFromInt(5), Status: StatusFrozen},
		{Exchange: "Binance", Currency: "ETH", Amount: decimal.NewFromInt(1)},
		{Exchange: "Binance", Currency: "ETH", Amount: decimal.Zero},
	}
	calls := map[string]int{}
	quote := func(currency string) (float64, error) {
		calls[currency]++
		if currency == "PEPE" {
			return 0, errors.New("unknown asset")
		}
		return 3000, nil
	}

	v := Value(entries, quote, 32)

	require.Len(t, v.Positions, 1)
	assert.Equal(t, "ETH", v.Positions[0].Ticker)
	assert.Len(t, v.Skipped, 2)
	assert.Equal(t, 1, calls["PEPE"])
	assert.Equal(t, 1, calls["ETH"])
}

func TestExchanges(t *testing.T) {
	entries := []Entry{
		entry("Binance", "BTC", 1, TypeSpot),
		entry("OKX", "USDT", 1, TypeSpot),
		entry("Binance", "ETH", 1, TypeSpot),
	}

	assert.Equal(t, []string{"Binance", "OKX"}, Exchanges(entries))
}
