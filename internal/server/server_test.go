package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/metrics"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/services"
	testingpkg "github.com/Larry-kang/GAS-Asset-Tracker/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

var quiet = zerolog.New(nil).Level(zerolog.Disabled)

func newHealthHandler(t *testing.T, store mapSettings) *HealthHandler {
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)

	h := NewHealthHandler(func() SettingsAccess { return store }, db.Conn(), "2.0.0", quiet)
	h.hostStats = func() HostStats { return HostStats{CPUPercent: 5, RAMPercent: 40} }
	return h
}

func TestHealth_Degraded(t *testing.T) {
	h := newHealthHandler(t, mapSettings{settings.KeyAdminEmail: "ops@example.com"})

	rep := h.Report(context.Background())
	assert.Equal(t, "degraded", rep.Status)
	// three missing settings and two missing tables
	assert.Equal(t, 5, rep.Issues)
	assert.Equal(t, Check{Name: settings.KeyAdminEmail, Passed: true}, rep.Settings[0])
	assert.Equal(t, 40.0, rep.Host.RAMPercent)
}

func TestHealth_OK(t *testing.T) {
	store := mapSettings{}
	for _, k := range RequiredSettings {
		store[k] = "x"
	}
	h := newHealthHandler(t, store)
	for _, table := range RequiredTables {
		_, err := h.portfolioDB.Exec("CREATE TABLE " + table + " (id INTEGER)")
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rep HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "ok", rep.Status)
	assert.Zero(t, rep.Issues)
	assert.Equal(t, "2.0.0", rep.Version)
}

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })
}

func TestServer_Routes(t *testing.T) {
	store := mapSettings{settings.KeyProxyPassword: "secret"}
	m := metrics.New()
	srv := New(Config{
		Log:      quiet,
		DevMode:  true,
		Commands: newCommandHandler(store, &stubRunner{}),
		Health:   newHealthHandler(t, store),
		Metrics:  m,
		Modules:  []RouteRegistrar{pingModule{}},
	})

	tests := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodGet, "/api/ping", "", http.StatusOK},
		{http.MethodPost, "/api/command", `{"action":"log_client_error","password":"secret"}`, http.StatusOK},
		{http.MethodGet, "/api/command", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
		assert.Equal(t, tt.code, rec.Code, tt.method+" "+tt.path)
	}
}

func TestDashboardHub_PushesRuns(t *testing.T) {
	hub := NewDashboardHub(nil, quiet)
	hub.Publish(&services.RunResult{Kind: services.RunKindDaily, Context: &domain.PortfolioContext{RunID: "first"}})

	ts := httptest.NewServer(hub)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() services.RunResult {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var r services.RunResult
		require.NoError(t, json.Unmarshal(data, &r))
		return r
	}

	assert.Equal(t, "first", read().Context.RunID)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(&services.RunResult{Kind: services.RunKindFrequent, Context: &domain.PortfolioContext{RunID: "second"}})
	got := read()
	assert.Equal(t, services.RunKindFrequent, got.Kind)
	assert.Equal(t, "second", got.Context.RunID)

	hub.Close()
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestDashboardHub_ClosedRejectsPublish(t *testing.T) {
	hub := NewDashboardHub(nil, quiet)
	hub.Close()
	hub.Publish(&services.RunResult{})
	assert.Zero(t, hub.Clients())
}
