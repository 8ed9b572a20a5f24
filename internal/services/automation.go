package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/report"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/snapshots"
	syncpkg "github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/sync"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/notify"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/rs/zerolog"
)

// ErrRunInProgress is returned when a run is requested while another is in flight
var ErrRunInProgress = errors.New("a run is already in progress")

// Run kinds
const (
	RunKindFrequent = "frequent"
	RunKindDaily    = "daily"
	RunKindReport   = "report"
)

// ContextSource builds the portfolio context of a run
type ContextSource interface {
	Build(ctx context.Context) (*domain.PortfolioContext, error)
}

// PriceSource fetches a USD spot price through the run cache
type PriceSource interface {
	Get(ctx context.Context, ticker string, bypass bool) (float64, error)
}

// RunScope holds the collaborators whose cached state lives for exactly one run
type RunScope struct {
	Builder ContextSource
	Prices  PriceSource
}

// ScopeFactory creates a fresh RunScope, with its own L1 cache and settings snapshot
type ScopeFactory func() RunScope

// Syncer refreshes every venue partition of the ledger
type Syncer interface {
	RunAll(ctx context.Context) syncpkg.Report
}

// Evaluator runs the strategic rules over a context
type Evaluator interface {
	Evaluate(pc *domain.PortfolioContext) []domain.Alert
}

// PriceRecorder stores daily closes
type PriceRecorder interface {
	Record(ctx context.Context, ticker string, day time.Time, close float64) error
}

// SnapshotRecorder stores the daily net worth snapshot
type SnapshotRecorder interface {
	Record(ctx context.Context, s snapshots.Snapshot) (snapshots.Snapshot, error)
}

// RunObserver receives run metrics
type RunObserver interface {
	ObserveRun(kind string, err error, duration time.Duration, finished time.Time)
	ObservePortfolio(netWorth float64, ratios map[string]float64)
}

// Publisher pushes finished runs to live dashboards
type Publisher interface {
	Publish(result *RunResult)
}

// RunResult is the outcome of one automation run
type RunResult struct {
	Kind         string                   `json:"kind"`
	Context      *domain.PortfolioContext `json:"context"`
	Alerts       []domain.Alert           `json:"alerts"`
	SyncFailures []string                 `json:"syncFailures"`
	Snapshot     *snapshots.Snapshot      `json:"snapshot,omitempty"`
	StartedAt    time.Time                `json:"startedAt"`
	FinishedAt   time.Time                `json:"finishedAt"`
}

// AutomationDeps groups the collaborators of the automation service.
// Syncer, History, Snapshots, Observer and Publisher are optional.
type AutomationDeps struct {
	NewScope  ScopeFactory
	Syncer    Syncer
	Rules     Evaluator
	History   PriceRecorder
	Snapshots SnapshotRecorder
	Notifier  notify.Channel
	Observer  RunObserver
	Publisher Publisher
}

// AutomationService runs the decision core end to end. At most one run is
// in flight per process.
type AutomationService struct {
	deps         AutomationDeps
	cfg          *strategy.Config
	priceTickers []string
	silent       notify.Channel
	mu           sync.Mutex
	lastFailure  string // guarded by mu
	now          func() time.Time
	log          zerolog.Logger
}

// NewAutomationService creates the automation service. priceTickers are
// refreshed into price history on every run.
func NewAutomationService(deps AutomationDeps, cfg *strategy.Config, priceTickers []string, log zerolog.Logger) *AutomationService {
	return &AutomationService{
		deps:         deps,
		cfg:          cfg,
		priceTickers: priceTickers,
		silent:       notify.NewLog(log),
		now:          time.Now,
		log:          log.With().Str("service", "automation").Logger(),
	}
}

// RunFrequent refreshes prices and venues, evaluates the rules and logs the
// alerts without broadcasting them.
func (s *AutomationService) RunFrequent(ctx context.Context) (*RunResult, error) {
	return s.run(ctx, RunKindFrequent)
}

// RunDaily is a frequent pass followed by the daily snapshot and broadcast
func (s *AutomationService) RunDaily(ctx context.Context) (*RunResult, error) {
	return s.run(ctx, RunKindDaily)
}

// RunReport builds the context and broadcasts the report on demand. It does
// not refresh prices, sync venues or record a snapshot.
func (s *AutomationService) RunReport(ctx context.Context) (*RunResult, error) {
	return s.run(ctx, RunKindReport)
}

// BuildContext builds a context in a fresh scope without touching any
// external source or store.
func (s *AutomationService) BuildContext(ctx context.Context) (*domain.PortfolioContext, error) {
	return s.deps.NewScope().Builder.Build(ctx)
}

func (s *AutomationService) run(ctx context.Context, kind string) (*RunResult, error) {
	if !s.mu.TryLock() {
		s.log.Warn().Str("kind", kind).Msg("Run requested while another is in flight")
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	started := s.now()
	result, err := s.execute(ctx, kind, started)
	finished := s.now()
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveRun(kind, err, finished.Sub(started), finished)
	}
	if err != nil {
		s.reportFailure(ctx, kind, err)
		return nil, err
	}
	if s.lastFailure != "" {
		s.log.Info().Str("kind", kind).Str("previous_error", s.lastFailure).Msg("Run recovered")
		s.lastFailure = ""
	}

	result.FinishedAt = finished
	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(result)
	}
	s.log.Info().
		Str("kind", kind).
		Str("run_id", result.Context.RunID).
		Int("alerts", len(result.Alerts)).
		Dur("duration", finished.Sub(started)).
		Msg("Run completed")
	return result, nil
}

func (s *AutomationService) execute(ctx context.Context, kind string, started time.Time) (*RunResult, error) {
	scope := s.deps.NewScope()
	result := &RunResult{Kind: kind, StartedAt: started}

	if kind != RunKindReport {
		s.refreshPrices(ctx, scope.Prices, started)

		if s.deps.Syncer != nil {
			rep := s.deps.Syncer.RunAll(ctx)
			for _, f := range rep.Failures() {
				result.SyncFailures = append(result.SyncFailures, f.Venue)
			}
		}
	}

	pc, err := scope.Builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build portfolio context: %w", err)
	}
	result.Context = pc
	s.observePortfolio(pc)

	result.Alerts = s.deps.Rules.Evaluate(pc)
	for _, a := range result.Alerts {
		if err := s.silent.SendAlert(ctx, a.Rule, a.Message, a.Severity); err != nil {
			s.log.Warn().Err(err).Msg("Failed to log alert")
		}
	}

	if kind == RunKindFrequent {
		return result, nil
	}

	if kind == RunKindDaily && s.deps.Snapshots != nil {
		snap, err := s.deps.Snapshots.Record(ctx, snapshots.FromContext(pc, s.cfg.ReserveGroup().ID, started))
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to record daily snapshot")
		} else {
			result.Snapshot = &snap
		}
	}

	msg := report.Daily(pc, result.Alerts, s.cfg, started)
	if err := s.deps.Notifier.SendAlert(ctx, msg.Title, msg.Description, msg.Severity); err != nil {
		s.log.Error().Err(err).Msg("Failed to broadcast daily report")
	}
	return result, nil
}

// refreshPrices records today's close of each tracked ticker. Failures only
// cost the regime fallback one day of history.
func (s *AutomationService) refreshPrices(ctx context.Context, prices PriceSource, day time.Time) {
	if prices == nil {
		return
	}
	for _, ticker := range s.priceTickers {
		price, err := prices.Get(ctx, ticker, true)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Price refresh failed")
			continue
		}
		if s.deps.History == nil {
			continue
		}
		if err := s.deps.History.Record(ctx, ticker, day, price); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to record price history")
		}
	}
}

func (s *AutomationService) observePortfolio(pc *domain.PortfolioContext) {
	if s.deps.Observer == nil {
		return
	}
	ratios := make(map[string]float64, len(pc.PledgeGroups))
	for _, g := range pc.PledgeGroups {
		ratios[g.Name] = g.Ratio
	}
	net, _ := pc.NetEntityValue.Float64()
	s.deps.Observer.ObservePortfolio(net, ratios)
}

// reportFailure notifies once per distinct failure; repeats of the last
// reported failure are only logged until a run succeeds.
func (s *AutomationService) reportFailure(ctx context.Context, kind string, err error) {
	s.log.Error().Err(err).Str("kind", kind).Msg("Run failed")
	if err.Error() == s.lastFailure {
		return
	}
	s.lastFailure = err.Error()

	description := err.Error()
	if errors.Is(err, domain.ErrMissingSource) {
		description += "\nImport the balance sheet and market indicators before the next run."
	}
	if sendErr := s.deps.Notifier.SendAlert(ctx, "[SAP] Run failed", description, domain.SeverityError); sendErr != nil {
		s.log.Error().Err(sendErr).Msg("Failed to report run failure")
	}
}
