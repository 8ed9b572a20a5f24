package notify

import (
	"context"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/rs/zerolog"
)

// Log records alerts in the structured log only. Frequent runs use it for
// silent alert logging.
type Log struct {
	log zerolog.Logger
}

// NewLog creates the log-only channel
func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("channel", "log").Logger()}
}

// Name identifies the channel
func (l *Log) Name() string { return "log" }

// SendAlert writes the alert at a level matching its severity
func (l *Log) SendAlert(_ context.Context, title, description string, severity domain.Severity) error {
	var ev *zerolog.Event
	switch severity {
	case domain.SeverityError:
		ev = l.log.Error()
	case domain.SeverityWarning, domain.SeverityStrategic:
		ev = l.log.Warn()
	default:
		ev = l.log.Info()
	}
	ev.Str("severity", string(severity)).Str("description", description).Msg(title)
	return nil
}
