package allocation

import (
	"fmt"
	"sort"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/shopspring/decimal"
)

// RebalanceTargets derives textual instructions: noise assets above the noise
// floor are flagged for cleanup, then each rebalanceable group whose drift
// crosses its configured limit gets one instruction. A book without assets
// has nothing to rebalance.
func RebalanceTargets(cfg *strategy.Config, summary map[string]decimal.Decimal, groups []domain.AssetGroup) []domain.RebalanceTarget {
	gross := decimal.Zero
	for _, v := range summary {
		if v.IsPositive() {
			gross = gross.Add(v)
		}
	}
	if !gross.IsPositive() {
		return nil
	}

	var targets []domain.RebalanceTarget

	noise := append([]string(nil), cfg.NoiseAssets...)
	sort.Strings(noise)
	for _, t := range noise {
		v := summary[t].InexactFloat64()
		if v > cfg.NoiseFloorTWD {
			targets = append(targets, domain.RebalanceTarget{
				Ticker:   t,
				Priority: "[CLEANUP]",
				Action:   fmt.Sprintf("Liquidate noise asset %s (%.0f TWD) into the reserve", t, v),
			})
		}
	}

	for _, g := range groups {
		if !g.Rebalanceable {
			continue
		}
		def, ok := cfg.Group(g.ID)
		if !ok {
			continue
		}
		rb := def.Rebalance
		switch {
		case rb.Under != nil && g.Drift < *rb.Under:
			targets = append(targets, domain.RebalanceTarget{
				Ticker:   g.ID,
				Priority: rb.UnderPriority,
				Action:   fmt.Sprintf("%s (%+.1f%%)", rb.UnderAction, g.Drift*100),
				Drift:    g.Drift,
			})
		case rb.Over != nil && g.Drift > *rb.Over:
			targets = append(targets, domain.RebalanceTarget{
				Ticker:   g.ID,
				Priority: rb.OverPriority,
				Action:   fmt.Sprintf("%s (%+.1f%%)", rb.OverAction, g.Drift*100),
				Drift:    g.Drift,
			})
		}
	}

	return targets
}
