// Package allocation resolves the regime-dependent target weights of the asset
// groups, builds the per-run groups and derives rebalance targets from drift.
package allocation

import (
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
)

// RegimeTarget maps a regime multiple onto the group's band target. Bands are
// evaluated from the lowest bound upward and the first band with
// multiple < below wins, so a multiple equal to a bound falls in the next band.
func RegimeTarget(bands []strategy.Band, multiple float64) (float64, bool) {
	for _, b := range bands {
		if b.Below == nil || multiple < *b.Below {
			return b.Target, true
		}
	}
	return 0, false
}

// ResolveTarget applies the strict precedence: manual override from the
// indicators, then the regime band, then the static default.
func ResolveTarget(group strategy.AssetGroup, ind indicators.Set, market domain.MarketSnapshot) (float64, domain.TargetSource) {
	if v, ok := ind.Target(group.ID); ok {
		return v, domain.TargetFromOverride
	}
	if market.HasRegimeMultiple {
		if v, ok := RegimeTarget(group.RegimeBands, market.RegimeMultiple); ok {
			return v, domain.TargetFromRegime
		}
	}
	return group.DefaultTarget, domain.TargetFromDefault
}
