package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	sma := CalculateSMA([]float64{1, 2, 3, 4, 5}, 5)
	require.NotNil(t, sma)
	assert.InDelta(t, 3.0, *sma, 1e-9)

	assert.Nil(t, CalculateSMA([]float64{1, 2}, 5))
	assert.Nil(t, CalculateSMA([]float64{1, 2}, 0))
}

func TestMayerMultiple(t *testing.T) {
	closes := append(flat(199, 50_000), 100_000)

	mm := MayerMultiple(closes)

	require.NotNil(t, mm)
	assert.InDelta(t, 100_000/50_250.0, *mm, 1e-9)
	assert.Nil(t, MayerMultiple(flat(150, 1)))
	assert.Nil(t, MayerMultiple(flat(200, 0)))
}

func TestStats(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-9)
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 0, 50})

	assert.InDeltaSlice(t, []float64{0.1, -1}, returns, 1e-9)
	assert.Empty(t, CalculateReturns([]float64{1}))
}

func TestCalculateMaxDrawdown(t *testing.T) {
	dd := CalculateMaxDrawdown([]float64{100, 120, 90, 130, 117})

	require.NotNil(t, dd)
	assert.InDelta(t, 0.25, *dd, 1e-9)
	assert.Nil(t, CalculateMaxDrawdown([]float64{1}))
}
