package testing

import (
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// Pos builds a position from a float value, for table-driven tests
func Pos(ticker string, value float64, purpose string) domain.Position {
	return domain.Position{
		Ticker:  ticker,
		Value:   decimal.NewFromFloat(value),
		Purpose: purpose,
	}
}

// NewPositionFixtures returns a representative leveraged treasury: a BTC
// reserve pledged on Binance, Taiwan ETFs pledged at a broker and cash.
func NewPositionFixtures() []domain.Position {
	return []domain.Position{
		Pos("BTC_Spot", 1_800_000, "Binance_Pledge"),
		Pos("USDT", -600_000, "Binance_Pledge"),
		Pos("IBIT", 1_200_000, "none"),
		Pos("00713", 700_000, "Stock_Pledge"),
		Pos("00662", 300_000, "Stock_Pledge"),
		Pos("Stock_Loan", -350_000, "Stock"),
		Pos("BOXX", 250_000, ""),
		Pos("CASH_TWD", 150_000, ""),
		Pos("ETH", 20_000, ""),
	}
}

// NewIndicatorFixtures returns the raw indicator rows matching NewPositionFixtures
func NewIndicatorFixtures() map[string]string {
	return map[string]string{
		"BTC_Price":              "95000",
		"SAP_Base_ATH":           "108000",
		"Total_Martingale_Spent": "0",
		"MAX_MARTINGALE_BUDGET":  "300000",
		"USDT_TWD":               "32.1",
		"BTC_Mayer_Multiple":     "1.2",
	}
}
