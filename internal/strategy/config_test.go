package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.Len(t, cfg.AssetGroups, 3)
	reserve := cfg.ReserveGroup()
	assert.Equal(t, "L1", reserve.ID)
	assert.Equal(t, 0.70, reserve.DefaultTarget)
	assert.Equal(t, []string{"IBIT", "BTC_Spot", "BTC"}, reserve.Tickers)
	assert.Len(t, reserve.RegimeBands, 6)
	assert.Nil(t, reserve.RegimeBands[5].Below)
	assert.Equal(t, 20000.0, cfg.Martingale.BaseAmount)
	assert.Equal(t, 40000.0, cfg.InstitutionalFloorUSD)
	assert.Equal(t, 32.5, cfg.DefaultFXRate)

	l2, ok := cfg.Group("L2")
	require.True(t, ok)
	assert.Equal(t, []string{"00713", "00662", "QQQ"}, l2.Tickers)
}

func TestPledgeCategory(t *testing.T) {
	p := Default().Pledge

	testCases := []struct {
		label    string
		category string
		critical float64
	}{
		{"Binance", "crypto", 1.3},
		{"OKX", "crypto", 1.3},
		{"CryptoLoan", "crypto", 1.3},
		{"Stock", "stock", 1.8},
		{"Cathay", "stock", 1.8},
	}

	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			th := p.Category(tc.label)
			assert.Equal(t, tc.category, th.Name)
			assert.Equal(t, tc.critical, th.Critical)
		})
	}
}

func TestPledgeIgnored(t *testing.T) {
	p := Default().Pledge

	assert.True(t, p.Ignored(""))
	assert.True(t, p.Ignored("None"))
	assert.False(t, p.Ignored("Stock"))
}

func TestParse_RejectsRisingReserveBands(t *testing.T) {
	doc := `
asset_groups:
  - id: L1
    role: reserve
    regime_bands:
      - {below: 1.0, target: 0.5}
      - {target: 0.6}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rises")
}

func TestParse_RejectsUnorderedBands(t *testing.T) {
	doc := `
asset_groups:
  - id: L1
    role: reserve
    regime_bands:
      - {below: 2.0, target: 0.8}
      - {below: 1.0, target: 0.7}
      - {target: 0.6}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascending")
}

func TestParse_RejectsBoundedLastBand(t *testing.T) {
	doc := `
asset_groups:
  - id: L1
    role: reserve
    regime_bands:
      - {below: 2.0, target: 0.8}
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_RequiresOneReserveGroup(t *testing.T) {
	doc := `
asset_groups:
  - id: L2
    role: growth
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	doc := `
version: test
asset_groups:
  - id: CORE
    role: reserve
    tickers: [BTC]
    default_target: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, "CORE", cfg.ReserveGroup().ID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
