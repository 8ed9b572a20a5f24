package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/services"
	"github.com/rs/zerolog"
)

// Command actions
const (
	ActionUpdateTunnelURL      = "update_tunnel_url"
	ActionTriggerBalanceUpdate = "trigger_balance_update"
	ActionLogClientError       = "log_client_error"
	ActionTriggerReport        = "trigger_report"
	ActionGetInventory         = "get_inventory"
	ActionGetQuickStatus       = "get_quick_status"
)

const maxCommandBody = 1 << 20

// Runner is the automation surface the command interface drives
type Runner interface {
	RunFrequent(ctx context.Context) (*services.RunResult, error)
	RunReport(ctx context.Context) (*services.RunResult, error)
	BuildContext(ctx context.Context) (*domain.PortfolioContext, error)
}

// SettingsAccess reads and writes runtime settings
type SettingsAccess interface {
	Get(ctx context.Context, key, def string) string
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// SettingsFactory opens a fresh settings view per request
type SettingsFactory func() SettingsAccess

// CommandRequest is the body of POST /api/command
type CommandRequest struct {
	Action   string `json:"action"`
	Password string `json:"password"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CommandResponse is the envelope of every command reply
type CommandResponse struct {
	Status    string      `json:"status"`
	Msg       string      `json:"msg,omitempty"`
	Received  string      `json:"received,omitempty"`
	Source    string      `json:"source,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// QuickStatus is the compact summary returned by get_quick_status
type QuickStatus struct {
	NetWorth  float64 `json:"netWorth"`
	LTV       float64 `json:"ltv"`
	CryptoLTV float64 `json:"cryptoLtv"`
	BTCPrice  float64 `json:"btcPrice"`
	Runway    float64 `json:"runway"`
	Timestamp string  `json:"timestamp"`
	Version   string  `json:"version"`
}

// CommandHandler serves the single command endpoint used by the chat bot and
// the venue proxy. Every action shares the PROXY_PASSWORD secret.
type CommandHandler struct {
	runner      Runner
	newSettings SettingsFactory
	version     string
	now         func() time.Time
	log         zerolog.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(runner Runner, newSettings SettingsFactory, version string, log zerolog.Logger) *CommandHandler {
	return &CommandHandler{
		runner:      runner,
		newSettings: newSettings,
		version:     version,
		now:         time.Now,
		log:         log.With().Str("handler", "command").Logger(),
	}
}

// ServeHTTP handles POST /api/command
func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody)).Decode(&req); err != nil {
		h.reply(w, http.StatusBadRequest, CommandResponse{Status: "error", Msg: "No Post Data"})
		return
	}

	store := h.newSettings()
	if err := h.authorize(r.Context(), store, req); err != nil {
		if errors.Is(err, errUnauthorized) {
			h.log.Warn().Str("action", req.Action).Msg("Command rejected")
			h.reply(w, http.StatusUnauthorized, CommandResponse{Status: "error", Msg: "Auth Failed"})
			return
		}
		h.log.Error().Err(err).Str("action", req.Action).Msg("Command rejected, secret unreadable")
		h.reply(w, http.StatusServiceUnavailable, CommandResponse{Status: "error", Msg: "Settings Unavailable"})
		return
	}

	h.log.Info().Str("action", req.Action).Msg("Command received")

	switch req.Action {
	case ActionUpdateTunnelURL:
		h.handleTunnelUpdate(w, r, store, req)
	case ActionTriggerBalanceUpdate:
		h.handleBalanceUpdate(w, r)
	case ActionLogClientError:
		h.log.Warn().Str("message", req.Message).Msg("Client error")
		h.reply(w, http.StatusOK, CommandResponse{Status: "success", Msg: "Error Logged"})
	case ActionTriggerReport:
		h.handleTriggerReport(w, r)
	case ActionGetInventory:
		h.handleGetInventory(w, r)
	case ActionGetQuickStatus:
		h.handleQuickStatus(w, r)
	default:
		h.log.Warn().Str("action", req.Action).Msg("Unknown command action")
		h.reply(w, http.StatusBadRequest, CommandResponse{Status: "error", Msg: "Unknown Action", Received: req.Action})
	}
}

var errUnauthorized = errors.New("password mismatch")

// authorize checks the shared secret. Until a secret is stored, the first
// caller is accepted and its password, if any, becomes the secret. A secret
// that cannot be read or bootstrapped rejects the request.
func (h *CommandHandler) authorize(ctx context.Context, store SettingsAccess, req CommandRequest) error {
	saved, ok, err := store.Lookup(ctx, settings.KeyProxyPassword)
	if err != nil {
		return err
	}
	if !ok {
		if req.Password != "" {
			if err := store.Set(ctx, settings.KeyProxyPassword, req.Password); err != nil {
				return fmt.Errorf("failed to bootstrap proxy password: %w", err)
			}
			h.log.Info().Msg("Proxy password bootstrapped")
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(saved), []byte(req.Password)) != 1 {
		return errUnauthorized
	}
	return nil
}

func (h *CommandHandler) handleTunnelUpdate(w http.ResponseWriter, r *http.Request, store SettingsAccess, req CommandRequest) {
	if req.URL == "" {
		h.reply(w, http.StatusBadRequest, CommandResponse{Status: "error", Msg: "url is required"})
		return
	}

	old := store.Get(r.Context(), settings.KeyTunnelURL, "")
	if err := store.Set(r.Context(), settings.KeyTunnelURL, req.URL); err != nil {
		h.fail(w, "Failed to update tunnel URL", err)
		return
	}
	if req.Password != "" {
		if err := store.Set(r.Context(), settings.KeyProxyPassword, req.Password); err != nil {
			h.fail(w, "Failed to update proxy password", err)
			return
		}
	}

	h.log.Info().Str("old", old).Str("new", req.URL).Msg("Tunnel URL updated")
	h.reply(w, http.StatusOK, CommandResponse{
		Status: "success",
		Msg:    "URL Updated",
		Data: map[string]string{
			"url":       req.URL,
			"timestamp": h.timestamp(),
		},
	})
}

func (h *CommandHandler) handleBalanceUpdate(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunFrequent(r.Context())
	if err != nil {
		h.runFailed(w, err)
		return
	}
	h.reply(w, http.StatusOK, CommandResponse{
		Status:    "success",
		Msg:       "System-wide balance sync triggered successfully.",
		Timestamp: h.timestamp(),
		Data: map[string]interface{}{
			"runId":        result.Context.RunID,
			"alerts":       len(result.Alerts),
			"syncFailures": result.SyncFailures,
		},
	})
}

func (h *CommandHandler) handleTriggerReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunReport(r.Context())
	if err != nil {
		h.runFailed(w, err)
		return
	}
	h.reply(w, http.StatusOK, CommandResponse{
		Status:    "success",
		Msg:       "Report sent",
		Timestamp: h.timestamp(),
		Data:      map[string]interface{}{"alerts": result.Alerts},
	})
}

func (h *CommandHandler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	pc, err := h.runner.BuildContext(r.Context())
	if err != nil {
		h.runFailed(w, err)
		return
	}
	h.reply(w, http.StatusOK, CommandResponse{
		Status:    "success",
		Source:    "GAS_Asset_Tracker",
		Timestamp: h.timestamp(),
		Data:      pc,
	})
}

func (h *CommandHandler) handleQuickStatus(w http.ResponseWriter, r *http.Request) {
	pc, err := h.runner.BuildContext(r.Context())
	if err != nil {
		h.runFailed(w, err)
		return
	}
	h.reply(w, http.StatusOK, CommandResponse{
		Status: "success",
		Data: QuickStatus{
			NetWorth:  pc.NetEntityValue.InexactFloat64(),
			LTV:       pc.Indicators.LTV,
			CryptoLTV: pc.Indicators.CryptoLTV,
			BTCPrice:  pc.Market.BTCPrice,
			Runway:    pc.Indicators.SurvivalRunway,
			Timestamp: h.timestamp(),
			Version:   h.version,
		},
	})
}

func (h *CommandHandler) runFailed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		h.reply(w, http.StatusConflict, CommandResponse{Status: "error", Msg: err.Error()})
	case errors.Is(err, domain.ErrMissingSource):
		h.reply(w, http.StatusServiceUnavailable, CommandResponse{Status: "error", Msg: err.Error()})
	default:
		h.fail(w, "Run failed", err)
	}
}

func (h *CommandHandler) fail(w http.ResponseWriter, msg string, err error) {
	h.log.Error().Err(err).Msg(msg)
	h.reply(w, http.StatusInternalServerError, CommandResponse{Status: "error", Msg: err.Error()})
}

func (h *CommandHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

func (h *CommandHandler) reply(w http.ResponseWriter, status int, resp CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode command response")
	}
}
