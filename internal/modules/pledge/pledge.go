// Package pledge computes per-collateral-group maintenance ratios.
package pledge

import (
	"sort"
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/shopspring/decimal"
)

const pledgeSuffix = "_pledge"

// NormalizeLabel maps "X_Pledge" and "X" onto the same group key
func NormalizeLabel(purpose string) string {
	label := strings.TrimSpace(purpose)
	if len(label) > len(pledgeSuffix) && strings.EqualFold(label[len(label)-len(pledgeSuffix):], pledgeSuffix) {
		label = label[:len(label)-len(pledgeSuffix)]
	}
	return strings.TrimSpace(label)
}

type accumulator struct {
	collateral decimal.Decimal
	loan       decimal.Decimal
}

// CalculatePledgeRatios groups positions by normalized purpose and returns one
// group per label with outstanding debt, sorted by name. Thresholds come from
// indicator overrides first, then the configured category.
func CalculatePledgeRatios(positions []domain.Position, ind indicators.Set, cfg strategy.Pledge) []domain.PledgeGroup {
	groups := make(map[string]*accumulator)
	for _, p := range positions {
		label := NormalizeLabel(p.Purpose)
		if label == "" || cfg.Ignored(label) {
			continue
		}
		acc, ok := groups[label]
		if !ok {
			acc = &accumulator{collateral: decimal.Zero, loan: decimal.Zero}
			groups[label] = acc
		}
		if p.Value.IsPositive() {
			acc.collateral = acc.collateral.Add(p.Value)
		} else if p.Value.IsNegative() {
			acc.loan = acc.loan.Add(p.Value.Abs())
		}
	}

	out := make([]domain.PledgeGroup, 0, len(groups))
	for label, acc := range groups {
		if !acc.loan.IsPositive() {
			continue
		}

		category := cfg.Category(label)
		alert, critical := category.Alert, category.Critical
		if v, ok := overrideFor(ind, label, indicators.MaintAlertSuffix); ok {
			alert = v
		}
		if v, ok := overrideFor(ind, label, indicators.MaintCriticalSuffix); ok {
			critical = v
		}

		out = append(out, domain.PledgeGroup{
			Name:            label,
			Category:        category.Name,
			CollateralValue: acc.collateral,
			LoanAmount:      acc.loan,
			Ratio:           acc.collateral.Div(acc.loan).InexactFloat64(),
			Safe:            category.Safe,
			Alert:           alert,
			Critical:        critical,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// overrideFor accepts both "<label>_Maint_Alert" and "<label>_Pledge_Maint_Alert"
func overrideFor(ind indicators.Set, label, suffix string) (float64, bool) {
	if v, ok := ind.Float(label + suffix); ok {
		return v, true
	}
	return ind.Float(label + "_Pledge" + suffix)
}
