// Package sync runs the per-venue balance syncs into the unified ledger.
// Venues run one after another, each inside its own failure boundary and
// circuit breaker; a failed venue keeps its previous ledger partition.
//
// At most one sync pass may be in flight. The automation service enforces this.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Venue fetches the complete set of balances for one ledger partition
type Venue interface {
	Name() string
	FetchEntries(ctx context.Context) ([]ledger.Entry, error)
}

// LedgerWriter atomically replaces one ledger partition
type LedgerWriter interface {
	UpdateLedger(ctx context.Context, partition string, entries []ledger.Entry) error
}

// Metrics receives one outcome per venue per pass; nil disables reporting
type Metrics interface {
	ObserveSync(venue, outcome string, duration time.Duration)
}

// Sync outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeCircuitOpen = "circuit_open"
)

// VenueResult is the outcome of one venue in a pass
type VenueResult struct {
	Venue    string        `json:"venue"`
	Outcome  string        `json:"outcome"`
	Entries  int           `json:"entries"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Report summarises a sync pass
type Report struct {
	Results []VenueResult `json:"results"`
}

// Failures returns a PartialSyncError per venue that did not update
func (r Report) Failures() []*domain.PartialSyncError {
	var out []*domain.PartialSyncError
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, &domain.PartialSyncError{Venue: res.Venue, Err: res.Err})
		}
	}
	return out
}

// Succeeded counts the venues whose partition was replaced
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// BreakerSettings tunes the per-venue circuit breakers
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerSettings trips after three failed passes and retries after an hour
var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Hour}

// Manager runs the venue syncs
type Manager struct {
	venues   []Venue
	breakers map[string]*gobreaker.CircuitBreaker
	ledger   LedgerWriter
	metrics  Metrics
	log      zerolog.Logger
}

// NewManager creates a sync manager with one circuit breaker per venue
func NewManager(venues []Venue, ledgerWriter LedgerWriter, settings BreakerSettings, metrics Metrics, log zerolog.Logger) *Manager {
	m := &Manager{
		venues:   venues,
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(venues)),
		ledger:   ledgerWriter,
		metrics:  metrics,
		log:      log.With().Str("component", "sync_manager").Logger(),
	}

	for _, v := range venues {
		name := v.Name()
		m.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
			},
			// Missing credentials is a configuration gap, not a venue outage
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrMissingCredentials)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				m.log.Warn().Str("venue", name).Str("from", from.String()).Str("to", to.String()).Msg("Venue circuit changed state")
			},
		})
	}
	return m
}

// Venues returns the configured venue names in run order
func (m *Manager) Venues() []string {
	names := make([]string, len(m.venues))
	for i, v := range m.venues {
		names[i] = v.Name()
	}
	return names
}

// RunAll syncs every venue in order. It never returns early: each venue's
// failure is recorded in the report and the next venue still runs.
func (m *Manager) RunAll(ctx context.Context) Report {
	report := Report{Results: make([]VenueResult, 0, len(m.venues))}
	for _, v := range m.venues {
		res := m.runOne(ctx, v)
		if m.metrics != nil {
			m.metrics.ObserveSync(res.Venue, res.Outcome, res.Duration)
		}
		report.Results = append(report.Results, res)
	}

	m.log.Info().
		Int("venues", len(m.venues)).
		Int("succeeded", report.Succeeded()).
		Int("failed", len(report.Failures())).
		Msg("Sync pass complete")
	return report
}

func (m *Manager) runOne(ctx context.Context, v Venue) (res VenueResult) {
	name := v.Name()
	start := time.Now()
	res.Venue = name
	log := m.log.With().Str("venue", name).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Error = res.Err.Error()
			switch {
			case errors.Is(res.Err, gobreaker.ErrOpenState), errors.Is(res.Err, gobreaker.ErrTooManyRequests):
				res.Outcome = OutcomeCircuitOpen
			case errors.Is(res.Err, domain.ErrMissingCredentials):
				res.Outcome = OutcomeSkipped
			default:
				res.Outcome = OutcomeFailed
			}
			log.Error().Err(res.Err).Str("outcome", res.Outcome).Msg("Venue sync failed, partition left unchanged")
		}
	}()

	log.Info().Msg("Starting sync")
	out, err := m.breakers[name].Execute(func() (interface{}, error) {
		return v.FetchEntries(ctx)
	})
	if err != nil {
		res.Err = err
		return res
	}

	entries, _ := out.([]ledger.Entry)
	if err := m.ledger.UpdateLedger(ctx, name, entries); err != nil {
		res.Err = fmt.Errorf("failed to update ledger: %w", err)
		return res
	}

	res.Outcome = OutcomeSuccess
	res.Entries = len(entries)
	log.Info().Int("entries", len(entries)).Msg("Sync finished")
	return res
}
