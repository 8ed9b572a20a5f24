package binance

import (
	"context"
	"fmt"
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	"github.com/shopspring/decimal"
)

// VenueName is the ledger partition key written by this venue
const VenueName = "Binance"

// Venue adapts the client to the sync manager
type Venue struct {
	client *Client
}

// NewVenue creates the Binance venue
func NewVenue(client *Client) *Venue {
	return &Venue{client: client}
}

// Name returns the ledger partition key
func (v *Venue) Name() string { return VenueName }

// FetchEntries collects spot, earn and loan balances. Any failing endpoint
// fails the whole fetch so the stored partition is never half-replaced.
func (v *Venue) FetchEntries(ctx context.Context) ([]ledger.Entry, error) {
	creds := v.client.credentials(ctx)
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("%w: BINANCE_API_KEY/BINANCE_API_SECRET", domain.ErrMissingCredentials)
	}
	if creds.TunnelURL == "" || creds.ProxyPassword == "" {
		return nil, fmt.Errorf("%w: TUNNEL_URL/PROXY_PASSWORD", domain.ErrMissingCredentials)
	}

	var entries []ledger.Entry

	spot, err := v.client.SpotBalances(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("spot: %w", err)
	}
	for _, b := range spot {
		// LD* assets mirror earn positions
		if strings.HasPrefix(b.Asset, "LD") {
			continue
		}
		if free := parseAmount(b.Free); free.IsPositive() {
			entries = append(entries, ledger.Entry{Currency: b.Asset, Amount: free, Type: ledger.TypeSpot, Status: ledger.StatusAvailable})
		}
		if locked := parseAmount(b.Locked); locked.IsPositive() {
			entries = append(entries, ledger.Entry{Currency: b.Asset, Amount: locked, Type: ledger.TypeSpot, Status: ledger.StatusFrozen})
		}
	}

	earn, err := v.client.EarnPositions(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("earn: %w", err)
	}
	for _, p := range earn {
		if amount := parseAmount(p.TotalAmount); amount.IsPositive() {
			entries = append(entries, ledger.Entry{Currency: p.Asset, Amount: amount, Type: ledger.TypeEarn, Status: ledger.StatusStaked})
		}
	}

	loans, err := v.client.LoanOrders(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("loans: %w", err)
	}
	for _, o := range loans {
		ltv := parseAmount(o.CurrentLTV).Mul(decimal.NewFromInt(100))
		entries = append(entries,
			ledger.Entry{
				Currency: o.LoanCoin,
				Amount:   parseAmount(o.TotalDebt).Abs().Neg(),
				Type:     ledger.TypeLoan,
				Status:   ledger.StatusDebt,
				Meta:     fmt.Sprintf("LTV: %s%%", ltv.StringFixed(2)),
			},
			ledger.Entry{
				Currency: o.CollateralCoin,
				Amount:   parseAmount(o.CollateralAmount),
				Type:     ledger.TypeLoan,
				Status:   ledger.StatusCollateral,
				Meta:     "Ref: " + o.LoanCoin,
			},
		)
	}

	v.client.log.Info().Int("entries", len(entries)).Msg("Collected Binance balances")
	return entries, nil
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
