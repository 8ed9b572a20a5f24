// Package formulas holds the numeric helpers used for regime and history metrics.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// MayerPeriod is the long-run average window of the Mayer multiple
const MayerPeriod = 200

// CalculateSMA returns the simple moving average of the last length closes,
// or nil if there is not enough data.
func CalculateSMA(closes []float64, length int) *float64 {
	if length <= 0 || len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}
	return nil
}

// MayerMultiple is the last close divided by its 200-period SMA.
// Returns nil with fewer than 200 closes or a non-positive average.
func MayerMultiple(closes []float64) *float64 {
	sma := CalculateSMA(closes, MayerPeriod)
	if sma == nil || *sma <= 0 {
		return nil
	}
	mm := closes[len(closes)-1] / *sma
	return &mm
}
