package cache

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE cache_entries (key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
`

func setupTestStore(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewSQLiteStore(db), db
}

func quietLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

type recordingMetrics struct {
	lookups []string
}

func (m *recordingMetrics) ObserveLookup(tier, result string) {
	m.lookups = append(m.lookups, tier+":"+result)
}

func TestCache_PutGetFromL1(t *testing.T) {
	store, _ := setupTestStore(t)
	metrics := &recordingMetrics{}
	c := New(store, metrics, quietLogger())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "PRICE_CRYPTO_BTC_USD", 97000.5, time.Minute))

	var price float64
	assert.True(t, c.Get(ctx, "PRICE_CRYPTO_BTC_USD", &price, false))
	assert.Equal(t, 97000.5, price)
	assert.Equal(t, []string{"l1:hit"}, metrics.lookups)
}

func TestCache_L2HitIsPromoted(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first := New(store, nil, quietLogger())
	require.NoError(t, first.Put(ctx, "k", map[string]string{"a": "1"}, time.Minute))

	metrics := &recordingMetrics{}
	second := New(store, metrics, quietLogger())

	var got map[string]string
	require.True(t, second.Get(ctx, "k", &got, false))
	assert.Equal(t, "1", got["a"])

	got = nil
	require.True(t, second.Get(ctx, "k", &got, false))
	assert.Equal(t, []string{"l2:hit", "l1:hit"}, metrics.lookups)
}

func TestCache_BypassAlwaysMisses(t *testing.T) {
	store, _ := setupTestStore(t)
	c := New(store, nil, quietLogger())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", "v", time.Minute))

	var got string
	assert.False(t, c.Get(ctx, "k", &got, true))
	assert.Empty(t, got)
	assert.True(t, c.Get(ctx, "k", &got, false))
}

func TestCache_TTLExpiresAcrossRuns(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	run1 := New(store, nil, quietLogger())
	require.NoError(t, run1.Put(ctx, "k", "v", time.Second))

	now = now.Add(2 * time.Second)
	run2 := New(store, nil, quietLogger())

	var got string
	assert.False(t, run2.Get(ctx, "k", &got, false))
}

func TestCache_OversizedValueStaysInL1(t *testing.T) {
	store, db := setupTestStore(t)
	c := New(store, nil, quietLogger())
	ctx := context.Background()

	big := strings.Repeat("x", MaxL2Payload+1)
	require.NoError(t, c.Put(ctx, "big", big, time.Minute))

	var got string
	assert.True(t, c.Get(ctx, "big", &got, false))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cache_entries").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestCache_NilValueIgnored(t *testing.T) {
	store, db := setupTestStore(t)
	c := New(store, nil, quietLogger())

	require.NoError(t, c.Put(context.Background(), "k", nil, time.Minute))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cache_entries").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestCache_RemoveClearsBothTiers(t *testing.T) {
	store, _ := setupTestStore(t)
	c := New(store, nil, quietLogger())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", "v", time.Minute))
	c.Remove(ctx, "k")

	var got string
	assert.False(t, c.Get(ctx, "k", &got, false))
	assert.False(t, New(store, nil, quietLogger()).Get(ctx, "k", &got, false))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk full")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("disk full")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("disk full")
}

func TestCache_L2FailuresDegradeToL1(t *testing.T) {
	c := New(failingStore{}, nil, quietLogger())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", 42, time.Minute))

	var got int
	assert.True(t, c.Get(ctx, "k", &got, false))
	assert.Equal(t, 42, got)

	assert.False(t, c.Get(ctx, "other", &got, false))
	c.Remove(ctx, "k")
}

func TestCache_WithoutL2(t *testing.T) {
	c := New(nil, nil, quietLogger())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", "v", 0))

	var got string
	assert.True(t, c.Get(ctx, "k", &got, false))
	assert.False(t, c.Get(ctx, "missing", &got, false))
}

func TestSQLiteStore_DeleteExpired(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "old", []byte("a"), time.Second))
	require.NoError(t, store.Set(ctx, "fresh", []byte("b"), time.Hour))

	now = now.Add(time.Minute)
	deleted, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, ok, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCleanupJob_Run(t *testing.T) {
	store, _ := setupTestStore(t)
	job := NewCleanupJob(store, quietLogger())

	assert.Equal(t, "cache_cleanup", job.Name())
	assert.NoError(t, job.Run())
}
