package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/rs/zerolog"
)

// fallbackSeverities are the severities important enough to use the secondary channel
var fallbackSeverities = map[domain.Severity]bool{
	domain.SeverityError:     true,
	domain.SeverityWarning:   true,
	domain.SeverityStrategic: true,
}

// Fallback tries the primary channel and, for important severities, the
// secondary one when the primary fails or is not configured.
type Fallback struct {
	primary   Channel
	secondary Channel
	metrics   Metrics
	log       zerolog.Logger
}

// NewFallback creates the hybrid channel
func NewFallback(primary, secondary Channel, metrics Metrics, log zerolog.Logger) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		metrics:   metrics,
		log:       log.With().Str("channel", "fallback").Logger(),
	}
}

// Name identifies the channel
func (f *Fallback) Name() string {
	return fmt.Sprintf("%s+%s", f.primary.Name(), f.secondary.Name())
}

// SendAlert delivers through primary, then secondary. Neither configured is
// not an error: the alert is logged only.
func (f *Fallback) SendAlert(ctx context.Context, title, description string, severity domain.Severity) error {
	err := f.primary.SendAlert(ctx, title, description, severity)
	f.observe(f.primary.Name(), err)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotConfigured) {
		f.log.Warn().Err(err).Str("title", title).Msg("Primary channel failed")
	}

	if !fallbackSeverities[severity] {
		if errors.Is(err, ErrNotConfigured) {
			f.log.Info().Str("title", title).Str("severity", string(severity)).Msg("Alert logged only")
			return nil
		}
		return err
	}

	secErr := f.secondary.SendAlert(ctx, title, description, severity)
	f.observe(f.secondary.Name(), secErr)
	switch {
	case secErr == nil:
		return nil
	case errors.Is(err, ErrNotConfigured) && errors.Is(secErr, ErrNotConfigured):
		f.log.Info().Str("title", title).Str("severity", string(severity)).Msg("No channel configured, alert logged only")
		return nil
	case errors.Is(secErr, ErrNotConfigured):
		return err
	default:
		return errors.Join(err, secErr)
	}
}

func (f *Fallback) observe(channel string, err error) {
	if f.metrics == nil {
		return
	}
	outcome := "sent"
	switch {
	case errors.Is(err, ErrNotConfigured):
		outcome = "not_configured"
	case err != nil:
		outcome = "failed"
	}
	f.metrics.ObserveNotification(channel, outcome)
}
