package report

import (
	"testing"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sampleContext() *domain.PortfolioContext {
	return &domain.PortfolioContext{
		TotalGrossAssets: decimal.NewFromInt(4_000_000),
		NetEntityValue:   decimal.NewFromInt(3_000_000),
		Market:           domain.MarketSnapshot{BTCPrice: 100000, BaseATH: 125000, FXRate: 32},
		PledgeGroups: []domain.PledgeGroup{{
			Name: "Stock", Ratio: 2.5, Critical: 1.8,
			CollateralValue: decimal.NewFromInt(1_000_000), LoanAmount: decimal.NewFromInt(400_000),
		}},
		AssetGroups: []domain.AssetGroup{
			{ID: "L1", Name: "Layer 1: Digital Reserve", Value: decimal.NewFromInt(1_600_000), Weight: 0.4, Target: 0.7, Drift: -0.3},
			{ID: "L2", Name: "Layer 2: Growth Engine", Value: decimal.NewFromInt(2_000_000), Weight: 0.5, Target: 0.2, Drift: 0.3},
			{ID: domain.MiscGroupID, Name: "Miscellaneous", Value: decimal.NewFromInt(400_000), Weight: 0.1},
		},
		Indicators: domain.Indicators{TreasuryReserve: 100000, LTV: 0.25},
	}
}

func TestSafetyBuffer(t *testing.T) {
	assert.InDelta(t, 0.28, SafetyBuffer(domain.PledgeGroup{Ratio: 2.5, Critical: 1.8}), 1e-9)
	assert.Equal(t, 0.0, SafetyBuffer(domain.PledgeGroup{Ratio: 1.8, Critical: 1.8}))
	assert.Equal(t, 0.0, SafetyBuffer(domain.PledgeGroup{Ratio: 1.2, Critical: 1.8}))
}

func TestLeverageAndBTCHeld(t *testing.T) {
	pc := sampleContext()
	cfg := strategy.Default()

	assert.InDelta(t, 4.0/3.0, Leverage(pc), 1e-9)
	assert.InDelta(t, 0.5, BTCHeld(pc, cfg), 1e-9)

	pc.NetEntityValue = decimal.NewFromInt(-1)
	assert.Equal(t, 0.0, Leverage(pc))
}

func TestSnapshot(t *testing.T) {
	out := Snapshot(sampleContext(), strategy.Default(), time.Date(2026, 1, 18, 9, 30, 0, 0, time.UTC))

	assert.Contains(t, out, "- BTC spot: $100,000.00 USD")
	assert.Contains(t, out, "(-20.0%)")
	assert.Contains(t, out, "[II] PLEDGE RISK (Stock)")
	assert.Contains(t, out, "- Safety buffer: 28.0%")
	assert.Contains(t, out, "drift: -30.0%")
	assert.Contains(t, out, "drift: +30.0%")
	assert.Contains(t, out, "- Layer 0: noise and non-core: 10.0%")
	assert.Contains(t, out, "- Total debt: 1,000,000 TWD")
	assert.Contains(t, out, "- Leverage: 1.33x")
	assert.Contains(t, out, "- 1.0 BTC goal: 50.0%")
	assert.Contains(t, out, "Last updated: 2026-01-18 09:30:00")
}

func TestSnapshot_EmptyContext(t *testing.T) {
	out := Snapshot(&domain.PortfolioContext{}, strategy.Default(), time.Now())

	assert.Contains(t, out, "- Leverage: 0.00x")
	assert.NotContains(t, out, "PLEDGE RISK")
	assert.NotContains(t, out, "Layer 0")
}

func TestDaily(t *testing.T) {
	cfg := strategy.Default()
	now := time.Now()

	clear := Daily(sampleContext(), nil, cfg, now)
	assert.Equal(t, domain.SeveritySuccess, clear.Severity)
	assert.Contains(t, clear.Title, "All clear")

	alerts := []domain.Alert{
		{Level: "[CASHFLOW]", Severity: domain.SeverityInfo, Message: "m1", Action: "a1"},
		{Level: "[CRITICAL]", Severity: domain.SeverityError, Message: "m2", Action: "a2"},
		{Level: "[ATTACK]", Severity: domain.SeverityStrategic, Message: "m3", Action: "a3"},
	}
	msg := Daily(sampleContext(), alerts, cfg, now)
	assert.Equal(t, domain.SeverityError, msg.Severity)
	assert.Contains(t, msg.Description, "**[CRITICAL]**\nm2\nOrder: a2")
}
