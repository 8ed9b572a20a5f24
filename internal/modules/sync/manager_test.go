package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	testingpkg "github.com/Larry-kang/GAS-Asset-Tracker/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVenue struct {
	name    string
	entries []ledger.Entry
	err     error
	panics  bool
	calls   int
}

func (v *stubVenue) Name() string { return v.name }

func (v *stubVenue) FetchEntries(context.Context) ([]ledger.Entry, error) {
	v.calls++
	if v.panics {
		panic("venue exploded")
	}
	return v.entries, v.err
}

type recordingMetrics struct {
	outcomes []string
}

func (m *recordingMetrics) ObserveSync(venue, outcome string, _ time.Duration) {
	m.outcomes = append(m.outcomes, venue+":"+outcome)
}

func spot(currency string, amount int64) ledger.Entry {
	return ledger.Entry{Currency: currency, Amount: decimal.NewFromInt(amount), Type: ledger.TypeSpot}
}

func setupLedger(t *testing.T) *ledger.Repository {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)
	return ledger.NewRepository(db.Conn(), zerolog.New(nil).Level(zerolog.Disabled))
}

func TestManager_FailedVenueKeepsPartition(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()
	require.NoError(t, repo.UpdateLedger(ctx, "OKX", []ledger.Entry{spot("ETH", 3)}))

	okx := &stubVenue{name: "OKX", err: fmt.Errorf("%w: timeout", domain.ErrSourceUnavailable)}
	binance := &stubVenue{name: "Binance", entries: []ledger.Entry{spot("BTC", 1), spot("USDT", 500)}}
	metrics := &recordingMetrics{}
	m := NewManager([]Venue{okx, binance}, repo, DefaultBreakerSettings, metrics, zerolog.New(nil).Level(zerolog.Disabled))

	report := m.RunAll(ctx)

	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Succeeded())
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "OKX", failures[0].Venue)
	assert.True(t, errors.Is(failures[0], domain.ErrSourceUnavailable))
	assert.Equal(t, []string{"OKX:failed", "Binance:success"}, metrics.outcomes)

	okxRows, err := repo.ByExchange(ctx, "OKX")
	require.NoError(t, err)
	require.Len(t, okxRows, 1)
	assert.Equal(t, "ETH", okxRows[0].Currency)

	binanceRows, err := repo.ByExchange(ctx, "Binance")
	require.NoError(t, err)
	assert.Len(t, binanceRows, 2)
}

func TestManager_PanicIsIsolated(t *testing.T) {
	repo := setupLedger(t)
	bad := &stubVenue{name: "Bad", panics: true}
	good := &stubVenue{name: "Good", entries: []ledger.Entry{spot("BTC", 1)}}
	m := NewManager([]Venue{bad, good}, repo, DefaultBreakerSettings, nil, zerolog.New(nil).Level(zerolog.Disabled))

	report := m.RunAll(context.Background())

	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Error, "venue exploded")
	assert.Equal(t, OutcomeSuccess, report.Results[1].Outcome)
}

func TestManager_MissingCredentialsSkipsWithoutTripping(t *testing.T) {
	repo := setupLedger(t)
	venue := &stubVenue{name: "Binance", err: fmt.Errorf("%w: BINANCE_API_KEY", domain.ErrMissingCredentials)}
	m := NewManager([]Venue{venue}, repo, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour}, nil, zerolog.New(nil).Level(zerolog.Disabled))

	for i := 0; i < 3; i++ {
		report := m.RunAll(context.Background())
		assert.Equal(t, OutcomeSkipped, report.Results[0].Outcome)
	}
	assert.Equal(t, 3, venue.calls)
}

func TestManager_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	repo := setupLedger(t)
	venue := &stubVenue{name: "OKX", err: domain.ErrSourceUnavailable}
	m := NewManager([]Venue{venue}, repo, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, nil, zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()

	m.RunAll(ctx)
	m.RunAll(ctx)
	report := m.RunAll(ctx)

	assert.Equal(t, OutcomeCircuitOpen, report.Results[0].Outcome)
	assert.Equal(t, 2, venue.calls)
	assert.Equal(t, []string{"OKX"}, m.Venues())
}
