package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/database"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// RequiredSettings must be configured for a healthy deployment
var RequiredSettings = []string{
	settings.KeyAdminEmail,
	settings.KeyBinanceAPIKey,
	settings.KeyBinanceAPISecret,
	settings.KeyProxyPassword,
}

// RequiredTables must exist in portfolio.db before a run can succeed
var RequiredTables = []string{"balance_sheet", "market_indicators"}

// HostStats is a point-in-time host reading
type HostStats struct {
	CPUPercent float64 `json:"cpuPercent"`
	RAMPercent float64 `json:"ramPercent"`
}

// Check is one line of the health report
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// HealthReport is the body of GET /api/health
type HealthReport struct {
	Status   string    `json:"status"`
	Version  string    `json:"version"`
	Uptime   string    `json:"uptime"`
	Issues   int       `json:"issues"`
	Settings []Check   `json:"settings"`
	Tables   []Check   `json:"tables"`
	Host     HostStats `json:"host"`
}

// HealthHandler diagnoses credentials, source tables and host load
type HealthHandler struct {
	newSettings SettingsFactory
	portfolioDB *sql.DB
	version     string
	started     time.Time
	hostStats   func() HostStats
	log         zerolog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(newSettings SettingsFactory, portfolioDB *sql.DB, version string, log zerolog.Logger) *HealthHandler {
	h := &HealthHandler{
		newSettings: newSettings,
		portfolioDB: portfolioDB,
		version:     version,
		started:     time.Now(),
		log:         log.With().Str("handler", "health").Logger(),
	}
	h.hostStats = h.readHostStats
	return h
}

// Report collects the health report
func (h *HealthHandler) Report(ctx context.Context) HealthReport {
	rep := HealthReport{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
		Host:    h.hostStats(),
	}

	store := h.newSettings()
	for _, key := range RequiredSettings {
		c := Check{Name: key, Passed: store.Get(ctx, key, "") != ""}
		if !c.Passed {
			rep.Issues++
		}
		rep.Settings = append(rep.Settings, c)
	}

	for _, table := range RequiredTables {
		exists, err := database.TableExists(ctx, h.portfolioDB, table)
		if err != nil {
			h.log.Warn().Err(err).Str("table", table).Msg("Table check failed")
		}
		c := Check{Name: table, Passed: err == nil && exists}
		if !c.Passed {
			rep.Issues++
		}
		rep.Tables = append(rep.Tables, c)
	}

	if rep.Issues > 0 {
		rep.Status = "degraded"
	}
	return rep
}

// ServeHTTP handles GET /api/health. A degraded report still answers 200.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := h.Report(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode health report")
	}
}

// readHostStats samples CPU over 100ms and reads memory usage
func (h *HealthHandler) readHostStats() HostStats {
	var stats HostStats

	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		stats.RAMPercent = memStat.UsedPercent
	}

	return stats
}
