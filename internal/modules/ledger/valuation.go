package ledger

import (
	"fmt"
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// PledgeSuffix marks a purpose label as a pledge group
const PledgeSuffix = "_Pledge"

// usdPegged currencies are valued at one US dollar without a price lookup
var usdPegged = map[string]bool{
	"USD":   true,
	"USDT":  true,
	"USDC":  true,
	"FDUSD": true,
	"BUSD":  true,
	"TUSD":  true,
	"DAI":   true,
}

// localCurrency rows are already denominated in TWD
const localCurrency = "TWD"

// Quote returns the USD price of one unit of currency
type Quote func(currency string) (float64, error)

// PledgeLabel is the purpose label of a venue's collateral and debt rows
func PledgeLabel(exchange string) string {
	return exchange + PledgeSuffix
}

// Valuation is the balance sheet view of the ledger
type Valuation struct {
	Positions []domain.Position
	// Skipped holds one error per row that could not be priced
	Skipped []error
}

// Value converts ledger rows into TWD positions. Debt rows are always
// negative. Debt and collateral rows carry their venue's pledge label so the
// pledge calculator sees the loan. Quotes are requested once per currency.
func Value(entries []Entry, quote Quote, fxRate float64) Valuation {
	var out Valuation
	fx := decimal.NewFromFloat(fxRate)
	prices := make(map[string]decimal.Decimal)
	failed := make(map[string]error)

	for _, e := range entries {
		e = e.Normalize()
		currency := strings.ToUpper(strings.TrimSpace(e.Currency))
		if currency == "" || e.Amount.IsZero() {
			continue
		}

		var value decimal.Decimal
		switch {
		case currency == localCurrency:
			value = e.Amount
		case usdPegged[currency]:
			value = e.Amount.Mul(fx)
		default:
			if err, ok := failed[currency]; ok {
				out.Skipped = append(out.Skipped, err)
				continue
			}
			price, ok := prices[currency]
			if !ok {
				usd, err := quote(currency)
				if err != nil || usd <= 0 {
					if err == nil {
						err = fmt.Errorf("%w: no positive price", domain.ErrDataShape)
					}
					err = fmt.Errorf("%s %s row: %w", e.Exchange, currency, err)
					failed[currency] = err
					out.Skipped = append(out.Skipped, err)
					continue
				}
				price = decimal.NewFromFloat(usd)
				prices[currency] = price
			}
			value = e.Amount.Mul(price).Mul(fx)
		}

		p := domain.Position{Ticker: currency, Amount: e.Amount, Value: value}
		switch e.Status {
		case StatusDebt:
			p.Amount = e.Amount.Abs().Neg()
			p.Value = value.Abs().Neg()
			p.Purpose = PledgeLabel(e.Exchange)
		case StatusCollateral:
			p.Purpose = PledgeLabel(e.Exchange)
		}
		out.Positions = append(out.Positions, p)
	}
	return out
}

// Exchanges returns the distinct partitions present in entries
func Exchanges(entries []Entry) []string {
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.Exchange == "" || seen[e.Exchange] {
			continue
		}
		seen[e.Exchange] = true
		names = append(names, e.Exchange)
	}
	return names
}
