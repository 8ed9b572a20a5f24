// Package indicators provides the market indicator source: raw key/value rows,
// their import, and the parse into a typed MarketSnapshot.
package indicators

import (
	"strconv"
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
)

// Indicator keys with a fixed meaning
const (
	KeyBTCPrice         = "BTC_Price"
	KeyCurrentBTCPrice  = "Current_BTC_Price"
	KeyBaseATH          = "SAP_Base_ATH"
	KeyRecentHigh       = "BTC_Recent_High"
	KeyMartingaleSpent  = "Total_Martingale_Spent"
	KeyMartingaleBudget = "MAX_MARTINGALE_BUDGET"
	KeyMayerMultiple    = "BTC_Mayer_Multiple"
	KeyMM               = "MM"
	KeyUSDTTWD          = "USDT_TWD"
	KeyUSDTWD           = "USD_TWD"
	KeyMonthlySurplus   = "Monthly_Surplus"

	TargetPrefix        = "Target_"
	MaintAlertSuffix    = "_Maint_Alert"
	MaintCriticalSuffix = "_Maint_Critical"
)

// Set is the raw indicator table keyed by indicator name
type Set map[string]string

// Float returns the numeric value for key. Missing and non-numeric values
// report false.
func (s Set) Float(key string) (float64, bool) {
	raw, ok := s[key]
	if !ok {
		return 0, false
	}
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FirstFloat returns the first key that holds a number
func (s Set) FirstFloat(keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := s.Float(k); ok {
			return f, true
		}
	}
	return 0, false
}

// Target returns the manual allocation override for an asset group id
func (s Set) Target(groupID string) (float64, bool) {
	return s.Float(TargetPrefix + groupID)
}

// MaintThresholds returns per-group pledge threshold overrides
func (s Set) MaintThresholds(label string) (alert float64, hasAlert bool, critical float64, hasCritical bool) {
	alert, hasAlert = s.Float(label + MaintAlertSuffix)
	critical, hasCritical = s.Float(label + MaintCriticalSuffix)
	return
}

// Captured returns the generically captured keys: Target_ overrides and
// maintenance threshold overrides.
func (s Set) Captured() map[string]float64 {
	out := make(map[string]float64)
	for k := range s {
		if strings.HasPrefix(k, TargetPrefix) ||
			strings.HasSuffix(k, MaintAlertSuffix) ||
			strings.HasSuffix(k, MaintCriticalSuffix) {
			if f, ok := s.Float(k); ok {
				out[k] = f
			}
		}
	}
	return out
}

// Parse builds the market snapshot. Missing fields stay zero, except the FX
// rate which falls back to defaultFX.
func Parse(s Set, defaultFX float64) domain.MarketSnapshot {
	var m domain.MarketSnapshot

	m.BTCPrice, _ = s.FirstFloat(KeyBTCPrice, KeyCurrentBTCPrice)
	m.BaseATH, _ = s.FirstFloat(KeyBaseATH, KeyRecentHigh)
	m.MartingaleSpent, _ = s.Float(KeyMartingaleSpent)
	m.MartingaleBudget, _ = s.Float(KeyMartingaleBudget)
	m.MonthlySurplus, _ = s.Float(KeyMonthlySurplus)

	if mm, ok := s.FirstFloat(KeyMayerMultiple, KeyMM); ok && mm > 0 {
		m.RegimeMultiple = mm
		m.HasRegimeMultiple = true
		m.RegimeMultipleSource = "indicators"
	}

	if fx, ok := s.FirstFloat(KeyUSDTTWD, KeyUSDTWD); ok && fx > 0 {
		m.FXRate = fx
	} else {
		m.FXRate = defaultFX
	}

	return m
}

// ParseIndicatorRows converts raw sheet rows into a Set. The first row is the
// header; rows with an empty key are skipped.
func ParseIndicatorRows(rows [][]string) Set {
	s := make(Set)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		key := strings.TrimSpace(row[0])
		if key == "" {
			continue
		}
		value := ""
		if len(row) > 1 {
			value = strings.TrimSpace(row[1])
		}
		s[key] = value
	}
	return s
}
