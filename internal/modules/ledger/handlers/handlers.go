// Package handlers provides HTTP handlers for the unified ledger.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// LedgerReader is the read side of the ledger repository
type LedgerReader interface {
	All(ctx context.Context) ([]ledger.Entry, error)
	ByExchange(ctx context.Context, exchange string) ([]ledger.Entry, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	repo LedgerReader
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(repo LedgerReader, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetEntries handles GET /api/ledger, optionally filtered by ?exchange=
func (h *Handler) HandleGetEntries(w http.ResponseWriter, r *http.Request) {
	var (
		entries []ledger.Entry
		err     error
	)
	if exchange := r.URL.Query().Get("exchange"); exchange != "" {
		entries, err = h.repo.ByExchange(r.Context(), exchange)
	} else {
		entries, err = h.repo.All(r.Context())
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query ledger")
		http.Error(w, "Failed to query ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"header":  ledger.Header,
		"entries": entries,
		"count":   len(entries),
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode ledger response")
	}
}
