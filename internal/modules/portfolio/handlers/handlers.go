// Package handlers provides HTTP handlers for the balance sheet.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// PositionReader is the read side of the position repository
type PositionReader interface {
	GetAll(ctx context.Context) ([]domain.Position, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	positions PositionReader
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(positions PositionReader, log zerolog.Logger) *Handler {
	return &Handler{
		positions: positions,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns the raw balance sheet positions
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	positions, ok := h.load(w, r)
	if !ok {
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	h.writeJSON(w, http.StatusOK, positions)
}

type tickerValue struct {
	Ticker string  `json:"ticker"`
	Value  float64 `json:"value"`
}

// HandleGetSummary returns per-ticker aggregates and balance sheet totals
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	positions, ok := h.load(w, r)
	if !ok {
		return
	}

	summary := portfolio.Aggregate(positions)
	totals := portfolio.ComputeTotals(summary)

	tickers := make([]tickerValue, 0, len(summary))
	for t, v := range summary {
		tickers = append(tickers, tickerValue{Ticker: t, Value: v.InexactFloat64()})
	}
	sort.Slice(tickers, func(i, j int) bool { return tickers[i].Value > tickers[j].Value })

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tickers":     tickers,
		"gross":       totals.Gross.InexactFloat64(),
		"net":         totals.Net.InexactFloat64(),
		"liabilities": totals.Liabilities.InexactFloat64(),
	})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) ([]domain.Position, bool) {
	positions, err := h.positions.GetAll(r.Context())
	if errors.Is(err, domain.ErrMissingSource) {
		h.writeError(w, http.StatusNotFound, "balance sheet has not been imported")
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load positions")
		h.writeError(w, http.StatusInternalServerError, "failed to load positions")
		return nil, false
	}
	return positions, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
