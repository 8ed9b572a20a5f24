package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservers(t *testing.T) {
	m := New()

	m.ObserveLookup("l1", "hit")
	m.ObserveLookup("l1", "hit")
	m.ObserveRule("Institutional Floor", "fired")
	m.ObserveSync("Binance", "failed", 2*time.Second)
	m.ObserveNotification("discord", "sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("l1", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleEvaluations.WithLabelValues("Institutional Floor", "fired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VenueSyncs.WithLabelValues("Binance", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("discord", "sent")))
}

func TestObserveRun(t *testing.T) {
	m := New()
	finished := time.Unix(1_700_000_000, 0)

	m.ObserveRun("daily", nil, time.Second, finished)
	m.ObserveRun("daily", errors.New("boom"), time.Second, finished.Add(time.Hour))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("daily", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("daily", "failed")))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastRun.WithLabelValues("daily")))
}

func TestObservePortfolio(t *testing.T) {
	m := New()
	m.ObservePortfolio(3_470_000, map[string]float64{"stock": 2.1})

	assert.Equal(t, 3_470_000.0, testutil.ToFloat64(m.NetWorth))
	assert.Equal(t, 2.1, testutil.ToFloat64(m.MaintenanceRatio.WithLabelValues("stock")))
}

func TestHandlerAndMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/items/{id}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sap_http_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
