package rules

import (
	"fmt"
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/Larry-kang/GAS-Asset-Tracker/pkg/format"
)

// StrategicRule is a rule over the portfolio context
type StrategicRule = Rule[*domain.PortfolioContext, domain.Alert]

// StrategicEngine evaluates strategic rules over the portfolio context
type StrategicEngine = Engine[*domain.PortfolioContext, domain.Alert]

// Rule names
const (
	RuleInstitutionalFloor = "Institutional Floor Sniper"
	RuleMartingale         = "BTC Martingale Sniper"
	RuleATHBreakout        = "ATH Breakout"
	RuleRebalancing        = "Protocol Rebalancing"
	RuleLTVCeiling         = "LTV Ceiling"
	RuleSurvivalRunway     = "Survival Runway"
	RuleCashflow           = "Cashflow Rerouting"
)

// MaintenanceRuleName names the maintenance monitor of a pledge category
func MaintenanceRuleName(category string) string {
	return fmt.Sprintf("Maintenance Ratio Monitor (%s)", category)
}

// StrategicRules returns the rule list in evaluation order: one maintenance
// monitor per pledge category, then the market and allocation rules.
func StrategicRules(cfg *strategy.Config) []StrategicRule {
	var out []StrategicRule
	out = append(out, maintenanceRule(cfg, cfg.Pledge.Default))
	for _, cat := range cfg.Pledge.Categories {
		out = append(out, maintenanceRule(cfg, cat))
	}

	return append(out,
		institutionalFloorRule(cfg),
		martingaleRule(cfg),
		athBreakoutRule(cfg),
		rebalancingRule(),
		ltvCeilingRule(cfg),
		survivalRunwayRule(cfg),
		cashflowRule(cfg),
	)
}

func maintenanceRule(cfg *strategy.Config, cat strategy.Thresholds) StrategicRule {
	inCategory := func(c *domain.PortfolioContext) []domain.PledgeGroup {
		var groups []domain.PledgeGroup
		for _, g := range c.PledgeGroups {
			if g.Category == cat.Name {
				groups = append(groups, g)
			}
		}
		return groups
	}

	return StrategicRule{
		Name: MaintenanceRuleName(cat.Name),
		When: func(c *domain.PortfolioContext) bool {
			for _, g := range inCategory(c) {
				if g.Ratio <= g.Alert || (g.Safe > 0 && g.Ratio < g.Safe) {
					return true
				}
			}
			return false
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			worst, tier := worstGroup(inCategory(c))
			switch tier {
			case tierCritical:
				return &domain.Alert{
					Rule:     MaintenanceRuleName(cat.Name),
					Level:    fmt.Sprintf("[CRITICAL] Margin call (%s %.2f)", worst.Name, worst.Critical),
					Severity: domain.SeverityError,
					Message:  fmt.Sprintf("%s maintenance ratio collapsed to %.2f", worst.Name, worst.Ratio),
					Action: fmt.Sprintf("Scorched-earth defence: liquidate noise assets (%s) to repay debt. No buying.",
						strings.Join(cfg.NoiseAssets, "/")),
				}
			case tierAlert:
				return &domain.Alert{
					Rule:     MaintenanceRuleName(cat.Name),
					Level:    fmt.Sprintf("[WARNING] Alert zone (%s %.2f)", worst.Name, worst.Alert),
					Severity: domain.SeverityWarning,
					Message:  fmt.Sprintf("%s maintenance ratio fell to %.2f", worst.Name, worst.Ratio),
					Action:   "Stop new BTC purchases. Hold cash against a further pullback and prepare collateral.",
				}
			}
			return nil
		},
	}
}

type tier int

const (
	tierNone tier = iota
	tierAlert
	tierCritical
)

// worstGroup returns the group in the most severe tier, lowest ratio first
func worstGroup(groups []domain.PledgeGroup) (domain.PledgeGroup, tier) {
	var worst domain.PledgeGroup
	worstTier := tierNone
	for _, g := range groups {
		t := tierNone
		switch {
		case g.Ratio <= g.Critical:
			t = tierCritical
		case g.Ratio <= g.Alert:
			t = tierAlert
		}
		if t > worstTier || (t == worstTier && t != tierNone && g.Ratio < worst.Ratio) {
			worst, worstTier = g, t
		}
	}
	return worst, worstTier
}

func institutionalFloorRule(cfg *strategy.Config) StrategicRule {
	return StrategicRule{
		Name: RuleInstitutionalFloor,
		When: func(c *domain.PortfolioContext) bool {
			return cfg.InstitutionalFloorUSD > 0 && c.Market.BTCPrice > 0 && c.Market.BTCPrice <= cfg.InstitutionalFloorUSD
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			return &domain.Alert{
				Rule:     RuleInstitutionalFloor,
				Level:    "[SNIPER] Institutional floor reached",
				Severity: domain.SeverityStrategic,
				Message:  fmt.Sprintf("BTC at $%s broke the institutional floor of $%s", format.Price(c.Market.BTCPrice), format.Amount(cfg.InstitutionalFloorUSD)),
				Action:   "Execute now: convert all liquidity layer holdings into IBIT/BTC.",
			}
		},
	}
}

// activeLevel returns the deepest ladder rung reached by drop
func activeLevel(levels []strategy.MartingaleLevel, drop float64) *strategy.MartingaleLevel {
	var active *strategy.MartingaleLevel
	for i := range levels {
		if drop <= levels[i].Drop && (active == nil || levels[i].Drop < active.Drop) {
			active = &levels[i]
		}
	}
	return active
}

// stockPledgeGroup is the group that gates the martingale ladder: the primary
// stock group when present, else the lowest-ratio group of the default category.
func stockPledgeGroup(c *domain.PortfolioContext, cfg *strategy.Config) *domain.PledgeGroup {
	if g := c.PledgeGroup(cfg.Pledge.PrimaryStockGroup); g != nil {
		return g
	}
	var worst *domain.PledgeGroup
	for i := range c.PledgeGroups {
		g := &c.PledgeGroups[i]
		if g.Category != cfg.Pledge.Default.Name {
			continue
		}
		if worst == nil || g.Ratio < worst.Ratio {
			worst = g
		}
	}
	return worst
}

func martingaleRule(cfg *strategy.Config) StrategicRule {
	return StrategicRule{
		Name: RuleMartingale,
		When: func(c *domain.PortfolioContext) bool {
			return cfg.Martingale.Enabled && c.Market.BTCPrice > 0 && c.Market.BaseATH > 0
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			drop := (c.Market.BTCPrice - c.Market.BaseATH) / c.Market.BaseATH
			level := activeLevel(cfg.Martingale.Levels, drop)
			if level == nil {
				return nil
			}
			amount := cfg.Martingale.BaseAmount * level.Multiplier

			if primary := stockPledgeGroup(c, cfg); primary != nil && primary.Ratio < primary.Alert {
				return &domain.Alert{
					Rule:     RuleMartingale,
					Level:    fmt.Sprintf("[PAUSED] Strategy paused (maintenance < %.1f)", primary.Alert),
					Severity: domain.SeverityWarning,
					Message:  fmt.Sprintf("BTC reached %s at %s drawdown", level.Name, format.Percent(drop)),
					Action:   "Martingale buying is suspended while the maintenance ratio is low.",
				}
			}

			if c.Market.MartingaleBudget > 0 && c.Market.MartingaleSpent+amount > c.Market.MartingaleBudget {
				return &domain.Alert{
					Rule:     RuleMartingale,
					Level:    "[PAUSED] Martingale budget exhausted",
					Severity: domain.SeverityWarning,
					Message: fmt.Sprintf("BTC reached %s but only TWD %s of TWD %s budget remains",
						level.Name, format.Amount(c.Market.MartingaleBudget-c.Market.MartingaleSpent), format.Amount(c.Market.MartingaleBudget)),
					Action: "Hold. Top up the martingale budget before adding exposure.",
				}
			}

			return &domain.Alert{
				Rule:     RuleMartingale,
				Level:    "[ATTACK] Sniper signal (martingale)",
				Severity: domain.SeverityStrategic,
				Message:  fmt.Sprintf("BTC pulled back %s. Entering %s", format.Percent(drop), level.Name),
				Action:   fmt.Sprintf("Borrow/buy BTC for TWD %s", format.Amount(amount)),
			}
		},
	}
}

func athBreakoutRule(cfg *strategy.Config) StrategicRule {
	return StrategicRule{
		Name: RuleATHBreakout,
		When: func(c *domain.PortfolioContext) bool {
			return c.Market.BaseATH > 0 && c.Market.BTCPrice > c.Market.BaseATH*(1+cfg.ATHBreakoutMargin)
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			return &domain.Alert{
				Rule:     RuleATHBreakout,
				Level:    "[ATH] New high detected",
				Severity: domain.SeveritySuccess,
				Message:  fmt.Sprintf("BTC at $%s is above the base ATH of $%s", format.Price(c.Market.BTCPrice), format.Price(c.Market.BaseATH)),
				Action:   fmt.Sprintf("Raise SAP_Base_ATH to %s so the martingale ladder re-anchors.", format.Price(c.Market.BTCPrice)),
			}
		},
	}
}

func rebalancingRule() StrategicRule {
	return StrategicRule{
		Name: RuleRebalancing,
		When: func(c *domain.PortfolioContext) bool {
			return len(c.RebalanceTargets) > 0
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			var b strings.Builder
			b.WriteString("Orders:\n")
			for _, t := range c.RebalanceTargets {
				fmt.Fprintf(&b, "\n%s %s\n   - %s\n", t.Priority, t.Ticker, t.Action)
			}
			return &domain.Alert{
				Rule:     RuleRebalancing,
				Level:    "[COMMAND] Strategic orders",
				Severity: domain.SeverityStrategic,
				Message:  "Allocation drift detected.",
				Action:   b.String(),
			}
		},
	}
}

func ltvCeilingRule(cfg *strategy.Config) StrategicRule {
	return StrategicRule{
		Name: RuleLTVCeiling,
		When: func(c *domain.PortfolioContext) bool {
			return cfg.LTVCeiling > 0 && c.Indicators.LTV > cfg.LTVCeiling
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			return &domain.Alert{
				Rule:     RuleLTVCeiling,
				Level:    "[WARNING] Leverage ceiling breached",
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("LTV at %s exceeds the %s ceiling", format.Percent(c.Indicators.LTV), format.Percent(cfg.LTVCeiling)),
				Action:   "Direct new surplus to debt repayment until LTV is back under the ceiling.",
			}
		},
	}
}

func survivalRunwayRule(cfg *strategy.Config) StrategicRule {
	return StrategicRule{
		Name: RuleSurvivalRunway,
		When: func(c *domain.PortfolioContext) bool {
			// an empty book has no runway to measure
			if !c.TotalGrossAssets.IsPositive() && !c.TotalLiabilities.IsPositive() {
				return false
			}
			return c.Indicators.MonthlyDebtCost > 0 && c.Indicators.SurvivalRunway < cfg.RunwayFloorMonths
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			return &domain.Alert{
				Rule:     RuleSurvivalRunway,
				Level:    "[WARNING] Survival runway short",
				Severity: domain.SeverityWarning,
				Message: fmt.Sprintf("Liquid assets cover %.1f months of debt service (floor %.0f)",
					c.Indicators.SurvivalRunway, cfg.RunwayFloorMonths),
				Action: "Rebuild the liquidity layer before any new risk-on purchase.",
			}
		},
	}
}

func cashflowRule(cfg *strategy.Config) StrategicRule {
	return StrategicRule{
		Name: RuleCashflow,
		When: func(c *domain.PortfolioContext) bool {
			return c.Market.MonthlySurplus > 0
		},
		Then: func(c *domain.PortfolioContext) *domain.Alert {
			surplus := format.Amount(c.Market.MonthlySurplus)
			alert := &domain.Alert{
				Rule:     RuleCashflow,
				Level:    "[CASHFLOW] Surplus allocation",
				Severity: domain.SeverityInfo,
			}
			switch {
			case c.Indicators.L1SpotRatio < cfg.Cashflow.SpotRatioFloor:
				alert.Message = fmt.Sprintf("Spot share of the reserve is %s, under the %s floor",
					format.Percent(c.Indicators.L1SpotRatio), format.Percent(cfg.Cashflow.SpotRatioFloor))
				alert.Action = fmt.Sprintf("Route TWD %s surplus into spot BTC.", surplus)
			case c.Indicators.TotalBTCRatio > cfg.Cashflow.ReserveRatioCeiling:
				alert.Severity = domain.SeverityStrategic
				alert.Message = fmt.Sprintf("BTC exposure is %s, over the %s ceiling",
					format.Percent(c.Indicators.TotalBTCRatio), format.Percent(cfg.Cashflow.ReserveRatioCeiling))
				alert.Action = fmt.Sprintf("Route TWD %s surplus into the credit base.", surplus)
			default:
				alert.Message = "Reserve composition within bands"
				alert.Action = fmt.Sprintf("Route TWD %s surplus into the reserve layer per target.", surplus)
			}
			return alert
		},
	}
}
