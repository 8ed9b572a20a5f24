package allocation

import (
	"sort"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/shopspring/decimal"
)

// BuildGroups returns the declared groups with resolved targets, values,
// weights and drift, followed by the miscellaneous complement group.
func BuildGroups(
	cfg *strategy.Config,
	summary map[string]decimal.Decimal,
	gross decimal.Decimal,
	ind indicators.Set,
	market domain.MarketSnapshot,
) []domain.AssetGroup {
	claimed := make(map[string]bool)
	groups := make([]domain.AssetGroup, 0, len(cfg.AssetGroups)+1)
	grossF := gross.InexactFloat64()

	for _, g := range cfg.AssetGroups {
		value := decimal.Zero
		for _, t := range g.Tickers {
			claimed[t] = true
			value = value.Add(summary[t])
		}

		target, source := ResolveTarget(g, ind, market)
		weight := domain.SafeDiv(value.InexactFloat64(), grossF)

		groups = append(groups, domain.AssetGroup{
			ID:            g.ID,
			Name:          g.Name,
			Role:          g.Role,
			Tickers:       append([]string(nil), g.Tickers...),
			DefaultTarget: g.DefaultTarget,
			Target:        target,
			TargetSource:  source,
			Value:         value,
			Weight:        weight,
			Drift:         weight - target,
			Rebalanceable: true,
		})
	}

	groups = append(groups, miscGroup(cfg, summary, claimed, grossF))
	return groups
}

// miscGroup collects held tickers no declared group claims, minus the noise
// list. Liabilities are not holdings and stay out of the complement.
func miscGroup(cfg *strategy.Config, summary map[string]decimal.Decimal, claimed map[string]bool, gross float64) domain.AssetGroup {
	var tickers []string
	value := decimal.Zero
	for t, v := range summary {
		if claimed[t] || cfg.IsNoise(t) || !v.IsPositive() {
			continue
		}
		tickers = append(tickers, t)
		value = value.Add(v)
	}
	sort.Strings(tickers)

	weight := domain.SafeDiv(value.InexactFloat64(), gross)
	return domain.AssetGroup{
		ID:            domain.MiscGroupID,
		Name:          "Miscellaneous",
		Tickers:       tickers,
		Target:        0,
		TargetSource:  domain.TargetFromDefault,
		Value:         value,
		Weight:        weight,
		Drift:         weight,
		Rebalanceable: false,
	}
}
