package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	history []snapshots.Snapshot
	err     error
	limit   int
}

func (s *stubReader) History(_ context.Context, limit int) ([]snapshots.Snapshot, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.history) > limit {
		return s.history[len(s.history)-limit:], nil
	}
	return s.history, nil
}

func (s *stubReader) Stats(ctx context.Context, window int) (snapshots.Stats, error) {
	history, err := s.History(ctx, window)
	if err != nil {
		return snapshots.Stats{}, err
	}
	return snapshots.Summarize(history), nil
}

func newRouter(reader SnapshotReader) http.Handler {
	r := chi.NewRouter()
	NewHandler(reader, zerolog.New(nil).Level(zerolog.Disabled)).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func fixture() []snapshots.Snapshot {
	return []snapshots.Snapshot{
		{Date: "2026-03-01", NetWorth: decimal.NewFromInt(1000)},
		{Date: "2026-03-02", NetWorth: decimal.NewFromInt(1100), Growth: 0.1},
	}
}

func TestHandleGetHistory(t *testing.T) {
	reader := &stubReader{history: fixture()}

	rec := do(t, newRouter(reader), "/snapshots?days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, reader.limit)

	var body struct {
		Snapshots []map[string]any `json:"snapshots"`
		Count     int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "2026-03-02", body.Snapshots[1]["date"])
}

func TestHandleGetHistory_DefaultAndInvalidDays(t *testing.T) {
	reader := &stubReader{}

	rec := do(t, newRouter(reader), "/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryDays, reader.limit)
	assert.Contains(t, rec.Body.String(), `"snapshots":[]`)

	for _, q := range []string{"0", "-3", "abc", "5000"} {
		rec = do(t, newRouter(reader), "/snapshots?days="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandleGetLatest(t *testing.T) {
	rec := do(t, newRouter(&stubReader{history: fixture()}), "/snapshots/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date":"2026-03-02"`)

	rec = do(t, newRouter(&stubReader{}), "/snapshots/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetStats(t *testing.T) {
	rec := do(t, newRouter(&stubReader{history: fixture()}), "/snapshots/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats snapshots.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Days)
	assert.InDelta(t, 0.1, stats.MeanGrowth, 1e-9)
}

func TestHandlers_RepositoryError(t *testing.T) {
	router := newRouter(&stubReader{err: errors.New("db closed")})

	for _, target := range []string{"/snapshots", "/snapshots/latest", "/snapshots/stats"} {
		rec := do(t, router, target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
	}
}
