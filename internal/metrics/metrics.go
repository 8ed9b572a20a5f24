// Package metrics provides Prometheus instrumentation for runs, rules, syncs,
// notifications and cache lookups.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the process. It satisfies the metric
// interfaces of the cache, rule engine, sync manager and notifier.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups     *prometheus.CounterVec
	RuleEvaluations  *prometheus.CounterVec
	VenueSyncs       *prometheus.CounterVec
	SyncDuration     *prometheus.HistogramVec
	Notifications    *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	LastRun          *prometheus.GaugeVec
	MaintenanceRatio *prometheus.GaugeVec
	NetWorth         prometheus.Gauge
	DashboardClients prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_cache_lookups_total",
			Help: "Cache lookups by tier and result",
		}, []string{"tier", "result"}),
		RuleEvaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_rule_evaluations_total",
			Help: "Rule evaluations by rule and outcome",
		}, []string{"rule", "outcome"}),
		VenueSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_venue_syncs_total",
			Help: "Venue sync attempts by venue and outcome",
		}, []string{"venue", "outcome"}),
		SyncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sap_venue_sync_duration_seconds",
			Help:    "Venue sync duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"venue"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_notifications_total",
			Help: "Notification deliveries by channel and outcome",
		}, []string{"channel", "outcome"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_runs_total",
			Help: "Automation runs by kind and outcome",
		}, []string{"kind", "outcome"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sap_run_duration_seconds",
			Help:    "Automation run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		LastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sap_last_run_timestamp_seconds",
			Help: "Unix time of the last successful run by kind",
		}, []string{"kind"}),
		MaintenanceRatio: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sap_maintenance_ratio",
			Help: "Latest maintenance ratio per pledge group",
		}, []string{"group"}),
		NetWorth: f.NewGauge(prometheus.GaugeOpts{
			Name: "sap_net_entity_value_twd",
			Help: "Latest net entity value in TWD",
		}),
		DashboardClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "sap_dashboard_clients",
			Help: "Connected dashboard websocket clients",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sap_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveLookup records a cache lookup
func (m *Metrics) ObserveLookup(tier, result string) {
	m.CacheLookups.WithLabelValues(tier, result).Inc()
}

// ObserveRule records one rule evaluation
func (m *Metrics) ObserveRule(rule, outcome string) {
	m.RuleEvaluations.WithLabelValues(rule, outcome).Inc()
}

// ObserveSync records one venue sync attempt
func (m *Metrics) ObserveSync(venue, outcome string, duration time.Duration) {
	m.VenueSyncs.WithLabelValues(venue, outcome).Inc()
	m.SyncDuration.WithLabelValues(venue).Observe(duration.Seconds())
}

// ObserveNotification records one delivery attempt
func (m *Metrics) ObserveNotification(channel, outcome string) {
	m.Notifications.WithLabelValues(channel, outcome).Inc()
}

// ObserveRun records a finished automation run
func (m *Metrics) ObserveRun(kind string, err error, duration time.Duration, finished time.Time) {
	outcome := "success"
	if err != nil {
		outcome = "failed"
	} else {
		m.LastRun.WithLabelValues(kind).Set(float64(finished.Unix()))
	}
	m.Runs.WithLabelValues(kind, outcome).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObservePortfolio records the headline figures of a built context
func (m *Metrics) ObservePortfolio(netWorth float64, ratios map[string]float64) {
	m.NetWorth.Set(netWorth)
	for group, ratio := range ratios {
		m.MaintenanceRatio.WithLabelValues(group).Set(ratio)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
