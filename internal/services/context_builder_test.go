package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	settingspkg "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	syncpkg "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/sync"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/rules"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	testingpkg "github.com/Larry-kang/GAS-Asset-Tracker/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPositions struct {
	positions []domain.Position
	err       error
}

func (s *stubPositions) GetAll(context.Context) ([]domain.Position, error) {
	return s.positions, s.err
}

type stubIndicators struct {
	set indicators.Set
	err error
}

func (s *stubIndicators) Load(context.Context) (indicators.Set, error) {
	return s.set, s.err
}

type stubRegime struct {
	mm    float64
	ok    bool
	err   error
	calls int
}

func (s *stubRegime) MayerMultiple(context.Context, string) (float64, bool, error) {
	s.calls++
	return s.mm, s.ok, s.err
}

func newBuilder(positions []domain.Position, ind indicators.Set, regime RegimeFallback) *ContextBuilder {
	settings := testingpkg.NewMockSettings(map[string]string{
		"MONTHLY_DEBT_COST":    "12967",
		"TREASURY_RESERVE_TWD": "100000",
	})
	return NewContextBuilder(
		&stubPositions{positions: positions},
		&stubIndicators{set: ind},
		settings,
		regime,
		strategy.Default(),
		zerolog.New(nil).Level(zerolog.Disabled),
	)
}

func TestContextBuilder_MissingSourceIsFatal(t *testing.T) {
	t.Run("positions", func(t *testing.T) {
		b := newBuilder(nil, indicators.Set{}, nil)
		b.positions = &stubPositions{err: &domain.MissingSourceError{Source: "balance_sheet"}}

		_, err := b.Build(context.Background())

		assert.True(t, errors.Is(err, domain.ErrMissingSource))
	})

	t.Run("indicators", func(t *testing.T) {
		b := newBuilder(nil, nil, nil)
		b.indicators = &stubIndicators{err: &domain.MissingSourceError{Source: "market_indicators"}}

		_, err := b.Build(context.Background())

		assert.True(t, errors.Is(err, domain.ErrMissingSource))
	})
}

func TestContextBuilder_EmptyPortfolio(t *testing.T) {
	pc, err := newBuilder(nil, indicators.Set{}, nil).Build(context.Background())

	require.NoError(t, err)
	assert.True(t, pc.TotalGrossAssets.IsZero())
	assert.True(t, pc.NetEntityValue.IsZero())
	assert.Equal(t, 0.0, pc.Indicators.LTV)
	assert.Equal(t, 0.0, pc.Indicators.SurvivalRunway)
	assert.Empty(t, pc.PledgeGroups)
	assert.Empty(t, pc.RebalanceTargets)

	misc := pc.AssetGroup(domain.MiscGroupID)
	require.NotNil(t, misc)
	assert.True(t, misc.Value.IsZero())
	assert.Equal(t, 32.5, pc.Market.FXRate)
	assert.NotEmpty(t, pc.RunID)
}

func TestContextBuilder_EmptyPortfolioRaisesNoAlerts(t *testing.T) {
	cfg := strategy.Default()
	b := NewContextBuilder(
		&stubPositions{},
		&stubIndicators{set: indicators.Set{}},
		testingpkg.NewMockSettings(settingspkg.SettingDefaults),
		nil,
		cfg,
		zerolog.New(nil).Level(zerolog.Disabled),
	)

	pc, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12967.0, pc.Indicators.MonthlyDebtCost)

	engine := rules.NewEngine(rules.StrategicRules(cfg), nil, zerolog.New(nil).Level(zerolog.Disabled))
	assert.Empty(t, engine.Evaluate(pc))
}

type stubVenue struct {
	name    string
	entries []ledger.Entry
}

func (v *stubVenue) Name() string { return v.name }

func (v *stubVenue) FetchEntries(context.Context) ([]ledger.Entry, error) {
	return v.entries, nil
}

func TestContextBuilder_LedgerSyncFeedsContext(t *testing.T) {
	quiet := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()
	repo := ledger.NewRepository(db.Conn(), quiet)

	manual := []domain.Position{
		testingpkg.Pos("00713", 700_000, "Stock_Pledge"),
		testingpkg.Pos("Stock_Loan", -350_000, "Stock_Pledge"),
		// stale hand-entered venue row, replaced once the venue syncs
		testingpkg.Pos("BTC_Spot", 999, "Binance_Pledge"),
	}
	b := newBuilder(manual, indicators.Set{"USDT_TWD": "32"}, nil).
		WithLedger(repo, &stubPrices{prices: map[string]float64{"BTC": 60_000}})
	ctx := context.Background()

	before, err := b.Build(ctx)
	require.NoError(t, err)
	assert.True(t, before.TotalGrossAssets.Equal(decimal.NewFromInt(700_999)))
	assert.Nil(t, before.PledgeGroup("Binance"))

	venue := &stubVenue{name: "Binance", entries: []ledger.Entry{
		{Currency: "BTC", Amount: decimal.NewFromFloat(0.5), Type: ledger.TypeSpot, Status: ledger.StatusAvailable},
		{Currency: "BTC", Amount: decimal.NewFromFloat(0.2), Type: ledger.TypeLoan, Status: ledger.StatusCollateral},
		{Currency: "USDT", Amount: decimal.NewFromInt(-1000), Type: ledger.TypeLoan, Status: ledger.StatusDebt},
	}}
	rep := syncpkg.NewManager([]syncpkg.Venue{venue}, repo, syncpkg.DefaultBreakerSettings, nil, quiet).RunAll(ctx)
	require.Empty(t, rep.Failures())

	after, err := b.Build(ctx)
	require.NoError(t, err)

	// 700k stock + 0.7 BTC at 60k USD and 32 TWD/USD
	assert.True(t, after.TotalGrossAssets.Equal(decimal.NewFromInt(2_044_000)), after.TotalGrossAssets.String())
	assert.True(t, after.TotalLiabilities.Equal(decimal.NewFromInt(382_000)), after.TotalLiabilities.String())
	assert.True(t, after.PositionsByTicker["BTC"].Equal(decimal.NewFromInt(1_344_000)))
	assert.True(t, after.PositionsByTicker["BTC_Spot"].IsZero())

	binance := after.PledgeGroup("Binance")
	require.NotNil(t, binance)
	assert.True(t, binance.CollateralValue.Equal(decimal.NewFromInt(384_000)))
	assert.True(t, binance.LoanAmount.Equal(decimal.NewFromInt(32_000)))
	assert.InDelta(t, 12.0, after.Indicators.BinanceMaintenanceRatio, 1e-9)
	assert.NotNil(t, after.PledgeGroup("Stock"))
}

func TestContextBuilder_LedgerReadErrorIsFatal(t *testing.T) {
	b := newBuilder(nil, indicators.Set{}, nil).WithLedger(&stubLedger{err: errors.New("database is locked")}, nil)

	_, err := b.Build(context.Background())

	assert.Error(t, err)
}

type stubLedger struct {
	entries []ledger.Entry
	err     error
}

func (s *stubLedger) All(context.Context) ([]ledger.Entry, error) {
	return s.entries, s.err
}

func TestContextBuilder_UnpricedLedgerRowsAreLeftOut(t *testing.T) {
	src := &stubLedger{entries: []ledger.Entry{
		{Exchange: "Binance", Currency: "PEPE", Amount: decimal.NewFromInt(1_000_000)},
		{Exchange: "Binance", Currency: "USDT", Amount: decimal.NewFromInt(100)},
	}}
	b := newBuilder(nil, indicators.Set{"USDT_TWD": "30"}, nil).WithLedger(src, &stubPrices{})

	pc, err := b.Build(context.Background())

	require.NoError(t, err)
	assert.True(t, pc.TotalGrossAssets.Equal(decimal.NewFromInt(3000)))
}

func TestContextBuilder_Fixtures(t *testing.T) {
	pc, err := newBuilder(testingpkg.NewPositionFixtures(), indicators.Set(testingpkg.NewIndicatorFixtures()), nil).
		Build(context.Background())
	require.NoError(t, err)

	assert.True(t, pc.TotalGrossAssets.Equal(decimal.NewFromInt(4_420_000)))
	assert.True(t, pc.TotalLiabilities.Equal(decimal.NewFromInt(950_000)))
	assert.True(t, pc.NetEntityValue.Equal(pc.TotalGrossAssets.Sub(pc.TotalLiabilities)))
	assert.InDelta(t, 950_000.0/4_420_000.0, pc.Indicators.LTV, 1e-9)

	require.Len(t, pc.PledgeGroups, 2)
	assert.Equal(t, "Binance", pc.PledgeGroups[0].Name)
	assert.Equal(t, "Stock", pc.PledgeGroups[1].Name)
	assert.InDelta(t, 3.0, pc.Indicators.BinanceMaintenanceRatio, 1e-9)
	assert.InDelta(t, 1_000_000.0/350_000.0, pc.Indicators.MaintenanceRatio, 1e-9)
	assert.InDelta(t, 600_000.0/1_800_000.0, pc.Indicators.CryptoLTV, 1e-9)

	assert.Equal(t, 400_000.0, pc.Indicators.LiquidAssets)
	assert.InDelta(t, 400_000.0/12967.0, pc.Indicators.SurvivalRunway, 1e-9)
	assert.InDelta(t, 1_800_000.0/4_420_000.0, pc.Indicators.L1SpotRatio, 1e-9)
	assert.InDelta(t, 3_000_000.0/4_420_000.0, pc.Indicators.TotalBTCRatio, 1e-9)
	assert.Equal(t, 100_000.0, pc.Indicators.TreasuryReserve)

	l1 := pc.AssetGroup("L1")
	require.NotNil(t, l1)
	assert.Equal(t, domain.TargetFromRegime, l1.TargetSource)
	assert.InDelta(t, 0.70, l1.Target, 1e-9)
	assert.Equal(t, "indicators", pc.Market.RegimeMultipleSource)

	// ETH is above the noise floor
	require.NotEmpty(t, pc.RebalanceTargets)
	assert.Equal(t, "ETH", pc.RebalanceTargets[0].Ticker)
}

func TestContextBuilder_RegimeFallback(t *testing.T) {
	raw := indicators.Set(testingpkg.NewIndicatorFixtures())
	delete(raw, "BTC_Mayer_Multiple")
	regime := &stubRegime{mm: 0.7, ok: true}

	pc, err := newBuilder(testingpkg.NewPositionFixtures(), raw, regime).Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, regime.calls)
	assert.Equal(t, "history", pc.Market.RegimeMultipleSource)
	assert.InDelta(t, 0.80, pc.AssetGroup("L1").Target, 1e-9)
}

func TestContextBuilder_RegimeFallbackNotUsedWhenIndicatorPresent(t *testing.T) {
	regime := &stubRegime{mm: 0.7, ok: true}

	_, err := newBuilder(nil, indicators.Set(testingpkg.NewIndicatorFixtures()), regime).Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, regime.calls)
}

func TestContextBuilder_RegimeFallbackErrorUsesDefault(t *testing.T) {
	regime := &stubRegime{err: errors.New("history unavailable")}

	pc, err := newBuilder(nil, indicators.Set{}, regime).Build(context.Background())

	require.NoError(t, err)
	l1 := pc.AssetGroup("L1")
	assert.Equal(t, domain.TargetFromDefault, l1.TargetSource)
	assert.InDelta(t, 0.70, l1.Target, 1e-9)
}
