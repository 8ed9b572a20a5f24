// Package notify delivers alerts. Delivery policy (fallback, rate limiting,
// circuit breaking) lives here; the decision core never retries.
package notify

import (
	"context"
	"errors"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
)

// ErrNotConfigured is returned by a channel with no destination configured
var ErrNotConfigured = errors.New("notification channel not configured")

// Channel sends one alert
type Channel interface {
	Name() string
	SendAlert(ctx context.Context, title, description string, severity domain.Severity) error
}

// Metrics receives one outcome per delivery attempt; nil disables reporting
type Metrics interface {
	ObserveNotification(channel, outcome string)
}
