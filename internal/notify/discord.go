package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Embed colours per severity
var severityColors = map[domain.Severity]int{
	domain.SeverityInfo:      3447003,
	domain.SeverityWarning:   16776960,
	domain.SeverityError:     15158332,
	domain.SeveritySuccess:   3066993,
	domain.SeverityStrategic: 10181046,
}

const (
	footerText = "SAP Command Center"
	// Discord caps embed descriptions at 4096 characters
	maxDescription = 4096
)

// Color returns the embed colour of severity, INFO for unknown values
func Color(severity domain.Severity) int {
	if c, ok := severityColors[severity]; ok {
		return c
	}
	return severityColors[domain.SeverityInfo]
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Color       int         `json:"color"`
	Timestamp   string      `json:"timestamp"`
	Footer      embedFooter `json:"footer"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Discord posts embeds to a webhook
type Discord struct {
	webhookURL func(ctx context.Context) string
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
	log        zerolog.Logger
}

// NewDiscord creates a Discord channel. The webhook URL is resolved per send
// so that a URL saved through settings takes effect immediately.
func NewDiscord(webhookURL func(ctx context.Context) string, client *http.Client, log zerolog.Logger) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	d := &Discord{
		webhookURL: webhookURL,
		client:     client,
		// Discord allows 5 requests per 2 seconds per webhook
		limiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
		now:     time.Now,
		log:     log.With().Str("channel", "discord").Logger(),
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "discord",
		Timeout: 5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			d.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Discord circuit changed state")
		},
	})
	return d
}

// Name identifies the channel
func (d *Discord) Name() string { return "discord" }

// SendAlert posts one embed. Discord answers 204 on success.
func (d *Discord) SendAlert(ctx context.Context, title, description string, severity domain.Severity) error {
	url := ""
	if d.webhookURL != nil {
		url = d.webhookURL(ctx)
	}
	if url == "" {
		return ErrNotConfigured
	}

	if r := []rune(description); len(r) > maxDescription {
		description = string(r[:maxDescription-3]) + "..."
	}
	payload, err := json.Marshal(webhookPayload{Embeds: []embed{{
		Title:       title,
		Description: description,
		Color:       Color(severity),
		Timestamp:   d.now().UTC().Format(time.RFC3339),
		Footer:      embedFooter{Text: footerText},
	}}})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err = d.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("webhook request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
			return nil, fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
		}
		return nil, nil
	})
	return err
}
