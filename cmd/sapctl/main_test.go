package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SAP_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("SAP_CACHE_BACKEND", "sqlite")
	return dir
}

func TestImportAndReport(t *testing.T) {
	dir := setup(t)

	balance := writeFile(t, dir, "balance.csv", `Ticker,Amount,Value_TWD,Purpose
BTC_Spot,0.9,"1,800,000",Binance_Pledge
USDT,-20000,-600000,Binance_Pledge
00713,10000,700000,Stock_Pledge
Loan,,-300000,Stock_Pledge
TWD,,250000,none
`)
	out, err := runCLI(t, "import", "balance", balance)
	require.NoError(t, err)
	assert.Equal(t, "imported 5 positions\n", out)

	ind := writeFile(t, dir, "indicators.csv", `Key,Value
BTC_Price,65000
FX_Rate,32.5
`)
	out, err = runCLI(t, "import", "indicators", ind)
	require.NoError(t, err)
	assert.Equal(t, "imported 2 indicators\n", out)

	out, err = runCLI(t, "report", "--dry-run")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestImport_EmptySheet(t *testing.T) {
	dir := setup(t)
	empty := writeFile(t, dir, "empty.csv", "Ticker,Amount,Value_TWD,Purpose\n")

	_, err := runCLI(t, "import", "balance", empty)
	assert.Error(t, err)

	_, err = runCLI(t, "import", "balance", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestReport_MissingSources(t *testing.T) {
	setup(t)
	_, err := runCLI(t, "report", "--dry-run")
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	setup(t)

	out, err := runCLI(t, "settings", "set", "ADMIN_EMAIL", "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN_EMAIL updated\n", out)

	out, err = runCLI(t, "settings", "get", "ADMIN_EMAIL")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com\n", out)

	_, err = runCLI(t, "settings", "set", "BINANCE_API_KEY", "abcdefgh1234")
	require.NoError(t, err)
	out, err = runCLI(t, "settings", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "****1234")
	assert.NotContains(t, out, "abcdefgh1234")
	assert.Contains(t, out, "TREASURY_RESERVE_TWD")
}

func TestLedgerList_Empty(t *testing.T) {
	setup(t)

	out, err := runCLI(t, "ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Exchange")

	out, err = runCLI(t, "ledger", "list", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestArgs(t *testing.T) {
	setup(t)
	_, err := runCLI(t, "import", "balance")
	assert.Error(t, err)
	_, err = runCLI(t, "settings", "set", "ONLY_KEY")
	assert.Error(t, err)
}
