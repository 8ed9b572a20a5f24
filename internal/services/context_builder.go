package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/allocation"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/pledge"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/portfolio"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RegimeTicker is the asset whose price history drives the regime multiple
const RegimeTicker = "BTC"

// ContextBuilder assembles one immutable PortfolioContext per run.
// It performs no writes; persistence is the caller's concern.
type ContextBuilder struct {
	positions  PositionSource
	indicators IndicatorSource
	settings   SettingsReader
	regime     RegimeFallback // optional
	ledger     LedgerSource   // optional
	quotes     PriceSource
	cfg        *strategy.Config
	now        func() time.Time
	log        zerolog.Logger
}

// NewContextBuilder creates a builder. regime may be nil.
func NewContextBuilder(
	positions PositionSource,
	indicatorSource IndicatorSource,
	settingsReader SettingsReader,
	regime RegimeFallback,
	cfg *strategy.Config,
	log zerolog.Logger,
) *ContextBuilder {
	return &ContextBuilder{
		positions:  positions,
		indicators: indicatorSource,
		settings:   settingsReader,
		regime:     regime,
		cfg:        cfg,
		now:        time.Now,
		log:        log.With().Str("service", "context_builder").Logger(),
	}
}

// WithLedger adds the unified ledger as a position source. Ledger rows are
// valued in TWD with quotes and the run's FX rate.
func (b *ContextBuilder) WithLedger(source LedgerSource, quotes PriceSource) *ContextBuilder {
	b.ledger = source
	b.quotes = quotes
	return b
}

// Build reads the mandatory sources and derives every context field.
// A failure to read any source is fatal for the run.
func (b *ContextBuilder) Build(ctx context.Context) (*domain.PortfolioContext, error) {
	b.log.Debug().Msg("Building portfolio context")

	// Step 1: mandatory sources
	positions, err := b.positions.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	raw, err := b.indicators.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read indicators: %w", err)
	}
	market := indicators.Parse(raw, b.cfg.DefaultFXRate)

	if b.ledger != nil {
		positions, err = b.withLedgerPositions(ctx, positions, market.FXRate)
		if err != nil {
			return nil, err
		}
	}

	// Step 2-3: aggregation and totals
	summary := portfolio.Aggregate(positions)
	totals := portfolio.ComputeTotals(summary)

	// Step 4: regime multiple fallback from price history
	if !market.HasRegimeMultiple && b.regime != nil {
		mm, ok, err := b.regime.MayerMultiple(ctx, RegimeTicker)
		switch {
		case err != nil:
			b.log.Warn().Err(err).Msg("Regime multiple fallback failed, using default targets")
		case ok:
			market.RegimeMultiple = mm
			market.HasRegimeMultiple = true
			market.RegimeMultipleSource = "history"
		}
	}

	// Step 4-5: allocation groups, misc complement, rebalance targets
	groups := allocation.BuildGroups(b.cfg, summary, totals.Gross, raw, market)
	targets := allocation.RebalanceTargets(b.cfg, summary, groups)

	// Step 6: pledge groups
	pledgeGroups := pledge.CalculatePledgeRatios(positions, raw, b.cfg.Pledge)

	pc := &domain.PortfolioContext{
		RunID:             uuid.NewString(),
		BuiltAt:           b.now().UTC(),
		Positions:         positions,
		PositionsByTicker: summary,
		PledgeGroups:      pledgeGroups,
		AssetGroups:       groups,
		Market:            market,
		TotalGrossAssets:  totals.Gross,
		NetEntityValue:    totals.Net,
		TotalLiabilities:  totals.Liabilities,
		RebalanceTargets:  targets,
	}

	// Step 7: secondary indicators
	pc.Indicators = b.secondaryIndicators(ctx, pc)

	b.log.Info().
		Str("run_id", pc.RunID).
		Int("positions", len(positions)).
		Int("pledge_groups", len(pledgeGroups)).
		Int("rebalance_targets", len(targets)).
		Str("gross", totals.Gross.StringFixed(0)).
		Str("net", totals.Net.StringFixed(0)).
		Msg("Portfolio context built")

	return pc, nil
}

// withLedgerPositions values the ledger and merges it with the manual rows.
// A synced venue supersedes manual rows labelled with its pledge group.
func (b *ContextBuilder) withLedgerPositions(ctx context.Context, manual []domain.Position, fxRate float64) ([]domain.Position, error) {
	entries, err := b.ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(entries) == 0 {
		return manual, nil
	}

	quote := func(currency string) (float64, error) {
		if b.quotes == nil {
			return 0, fmt.Errorf("%w: no price source", domain.ErrSourceUnavailable)
		}
		return b.quotes.Get(ctx, currency, false)
	}
	valued := ledger.Value(entries, quote, fxRate)
	for _, err := range valued.Skipped {
		b.log.Warn().Err(err).Msg("Ledger row left out of the context")
	}

	synced := make(map[string]bool)
	for _, ex := range ledger.Exchanges(entries) {
		synced[strings.ToLower(ex)] = true
	}
	merged := make([]domain.Position, 0, len(manual)+len(valued.Positions))
	superseded := 0
	for _, p := range manual {
		if synced[strings.ToLower(pledge.NormalizeLabel(p.Purpose))] {
			superseded++
			continue
		}
		merged = append(merged, p)
	}
	merged = append(merged, valued.Positions...)

	b.log.Debug().
		Int("ledger_rows", len(entries)).
		Int("valued", len(valued.Positions)).
		Int("superseded", superseded).
		Msg("Merged ledger into positions")
	return merged, nil
}

func (b *ContextBuilder) secondaryIndicators(ctx context.Context, pc *domain.PortfolioContext) domain.Indicators {
	gross := pc.TotalGrossAssets.InexactFloat64()
	ind := domain.Indicators{
		LTV:             domain.SafeDiv(pc.TotalGrossAssets.Sub(pc.NetEntityValue).InexactFloat64(), gross),
		MonthlyDebtCost: b.settings.GetFloat(ctx, settings.KeyMonthlyDebtCost, 0),
		TreasuryReserve: b.settings.GetFloat(ctx, settings.KeyTreasuryReserve, 0),
	}

	liquid := decimal.Zero
	for _, t := range b.cfg.LiquidTickers {
		if v := pc.PositionsByTicker[t]; v.IsPositive() {
			liquid = liquid.Add(v)
		}
	}
	ind.LiquidAssets = liquid.InexactFloat64()
	ind.SurvivalRunway = domain.SafeDiv(ind.LiquidAssets, ind.MonthlyDebtCost)

	reserve := b.cfg.ReserveGroup()
	spot := decimal.Zero
	for _, t := range reserve.SpotTickers {
		spot = spot.Add(pc.PositionsByTicker[t])
	}
	ind.L1SpotRatio = domain.SafeDiv(spot.InexactFloat64(), gross)
	if g := pc.AssetGroup(reserve.ID); g != nil {
		ind.TotalBTCRatio = g.Weight
	}

	collateral, loan := decimal.Zero, decimal.Zero
	for _, g := range pc.PledgeGroups {
		if g.Category != b.cfg.Pledge.Default.Name {
			collateral = collateral.Add(g.CollateralValue)
			loan = loan.Add(g.LoanAmount)
		}
	}
	ind.CryptoLTV = domain.SafeDiv(loan.InexactFloat64(), collateral.InexactFloat64())

	if g := pc.PledgeGroup(b.cfg.Pledge.PrimaryStockGroup); g != nil {
		ind.MaintenanceRatio = g.Ratio
	}
	if g := pc.PledgeGroup(b.cfg.Pledge.PrimaryCryptoGroup); g != nil {
		ind.BinanceMaintenanceRatio = g.Ratio
	}
	return ind
}
