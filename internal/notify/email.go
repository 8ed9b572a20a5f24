package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/rs/zerolog"
)

// SMTPConfig holds the outgoing mail server settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether a server is configured
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends alerts to the admin address
type Email struct {
	cfg       SMTPConfig
	recipient func(ctx context.Context) string
	sendMail  sendMailFunc
	log       zerolog.Logger
}

// NewEmail creates an email channel. recipient resolves ADMIN_EMAIL per send.
func NewEmail(cfg SMTPConfig, recipient func(ctx context.Context) string, log zerolog.Logger) *Email {
	return &Email{
		cfg:       cfg,
		recipient: recipient,
		sendMail:  smtp.SendMail,
		log:       log.With().Str("channel", "email").Logger(),
	}
}

// Name identifies the channel
func (e *Email) Name() string { return "email" }

// SendAlert mails "[SAP <severity>] <title>"
func (e *Email) SendAlert(ctx context.Context, title, description string, severity domain.Severity) error {
	to := ""
	if e.recipient != nil {
		to = strings.TrimSpace(e.recipient(ctx))
	}
	if to == "" || !e.cfg.Enabled() {
		return ErrNotConfigured
	}

	subject := fmt.Sprintf("[SAP %s] %s", severity, title)
	body := description + "\n\n(Sent via SAP Fallback Notification)"
	msg := "From: " + e.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + strings.ReplaceAll(body, "\n", "\r\n")

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	if err := e.sendMail(addr, auth, e.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	e.log.Info().Str("to", to).Str("subject", subject).Msg("Alert email sent")
	return nil
}
