// Package report renders the text portfolio snapshot and the daily broadcast.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/Larry-kang/GAS-Asset-Tracker/pkg/format"
)

const separator = "----------------------------------------"

// severityRank orders severities for picking the headline of a broadcast
var severityRank = map[domain.Severity]int{
	domain.SeverityError:     5,
	domain.SeverityWarning:   4,
	domain.SeverityStrategic: 3,
	domain.SeveritySuccess:   2,
	domain.SeverityInfo:      1,
}

// Message is a rendered notification
type Message struct {
	Title       string
	Description string
	Severity    domain.Severity
}

// BTCHeld converts the reserve layer value back into BTC
func BTCHeld(pc *domain.PortfolioContext, cfg *strategy.Config) float64 {
	reserve := pc.AssetGroup(cfg.ReserveGroup().ID)
	if reserve == nil {
		return 0
	}
	return domain.SafeDiv(reserve.Value.InexactFloat64(), pc.Market.FXRate*pc.Market.BTCPrice)
}

// SafetyBuffer is the drawdown a pledge group can absorb before hitting its
// critical ratio, as a fraction. Zero when already at or below critical.
func SafetyBuffer(g domain.PledgeGroup) float64 {
	if g.Ratio <= g.Critical || g.Ratio <= 0 {
		return 0
	}
	return 1 - g.Critical/g.Ratio
}

// Leverage is gross over net assets, zero when net is not positive
func Leverage(pc *domain.PortfolioContext) float64 {
	return domain.SafeDiv(pc.TotalGrossAssets.InexactFloat64(), pc.NetEntityValue.InexactFloat64())
}

// Snapshot renders the five-section portfolio snapshot
func Snapshot(pc *domain.PortfolioContext, cfg *strategy.Config, now time.Time) string {
	var b strings.Builder
	m := pc.Market
	gross := pc.TotalGrossAssets.InexactFloat64()

	b.WriteString("\n[I] MARKET INTEL\n")
	fmt.Fprintf(&b, "- BTC spot: $%s USD\n", format.Price(m.BTCPrice))
	if m.BaseATH > 0 {
		fmt.Fprintf(&b, "- BTC base ATH / drawdown: $%s USD (%s)\n",
			format.Price(m.BaseATH), format.Percent(domain.SafeDiv(m.BTCPrice-m.BaseATH, m.BaseATH)))
	}
	if m.HasRegimeMultiple {
		fmt.Fprintf(&b, "- Regime multiple: %.2f (%s)\n", m.RegimeMultiple, m.RegimeMultipleSource)
	}
	fmt.Fprintf(&b, "- USDT/TWD: %.2f\n", m.FXRate)

	for _, g := range pc.PledgeGroups {
		fmt.Fprintf(&b, "\n[II] PLEDGE RISK (%s)\n", g.Name)
		fmt.Fprintf(&b, "- Maintenance ratio: %.2f (critical: %.2f)\n", g.Ratio, g.Critical)
		fmt.Fprintf(&b, "- Collateral: %s TWD\n", format.Amount(g.CollateralValue.InexactFloat64()))
		fmt.Fprintf(&b, "- Loan: %s TWD\n", format.Amount(g.LoanAmount.InexactFloat64()))
		fmt.Fprintf(&b, "- Safety buffer: %s (max absorbable drawdown)\n", format.Percent(SafetyBuffer(g)))
	}

	b.WriteString("\n[III] ALLOCATION HEALTH\n")
	core := 0.0
	for _, g := range pc.AssetGroups {
		if g.ID == domain.MiscGroupID {
			continue
		}
		core += g.Value.InexactFloat64()
		fmt.Fprintf(&b, "- %s: %s [target: %s (%s), drift: %s]\n",
			g.Name, format.Percent(g.Weight), format.Percent(g.Target), g.TargetSource, format.SignedPercent(g.Drift))
	}
	if noise := domain.SafeDiv(gross-core, gross); noise > 0.001 {
		fmt.Fprintf(&b, "- Layer 0: noise and non-core: %s\n", format.Percent(noise))
	}

	b.WriteString("\n[IV] LIQUIDITY & LEVERAGE\n")
	fmt.Fprintf(&b, "- Total debt: %s TWD\n", format.Amount(pc.TotalGrossAssets.Sub(pc.NetEntityValue).InexactFloat64()))
	fmt.Fprintf(&b, "- Leverage: %.2fx (gross/net)\n", Leverage(pc))
	fmt.Fprintf(&b, "- LTV: %s\n", format.Percent(pc.Indicators.LTV))
	fmt.Fprintf(&b, "- Net entity value: %s TWD\n", format.Amount(pc.NetEntityValue.InexactFloat64()))
	if pc.Indicators.MonthlyDebtCost > 0 {
		fmt.Fprintf(&b, "- Survival runway: %.1f months\n", pc.Indicators.SurvivalRunway)
	}

	b.WriteString("\n[V] TARGET PROGRESS\n")
	fmt.Fprintf(&b, "- %.1f BTC goal: %s\n", cfg.BTCGoal, format.Percent(domain.SafeDiv(BTCHeld(pc, cfg), cfg.BTCGoal)))
	fmt.Fprintf(&b, "- Treasury reserve: %s TWD\n", format.Amount(pc.Indicators.TreasuryReserve))
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Last updated: %s", now.Format("2006-01-02 15:04:05"))

	return b.String()
}

// AlertsBody renders alerts in evaluation order
func AlertsBody(alerts []domain.Alert) string {
	var b strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&b, "**%s**\n%s\nOrder: %s\n\n", a.Level, a.Message, a.Action)
	}
	return b.String()
}

// Highest returns the most severe alert severity, INFO for none
func Highest(alerts []domain.Alert) domain.Severity {
	best := domain.SeverityInfo
	for _, a := range alerts {
		if severityRank[a.Severity] > severityRank[best] {
			best = a.Severity
		}
	}
	return best
}

// Daily composes the daily broadcast: the alerts plus the snapshot, or an
// all-clear snapshot when nothing fired.
func Daily(pc *domain.PortfolioContext, alerts []domain.Alert, cfg *strategy.Config, now time.Time) Message {
	snapshot := Snapshot(pc, cfg, now)
	if len(alerts) == 0 {
		return Message{
			Title:       "[SAP Daily] All clear",
			Description: "[OK] Allocation balanced. Sovereign position stable.\n" + snapshot,
			Severity:    domain.SeveritySuccess,
		}
	}
	return Message{
		Title:       "[SAP Advisor] Action required",
		Description: "Analysis requires action:\n\n" + AlertsBody(alerts) + snapshot,
		Severity:    Highest(alerts),
	}
}
