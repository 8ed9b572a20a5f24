// Package handlers provides HTTP handlers for daily snapshot history.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 3650
)

// SnapshotReader is the read side of the snapshot repository
type SnapshotReader interface {
	History(ctx context.Context, limit int) ([]snapshots.Snapshot, error)
	Stats(ctx context.Context, window int) (snapshots.Stats, error)
}

// Handler handles snapshot HTTP requests
type Handler struct {
	repo SnapshotReader
	log  zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(repo SnapshotReader, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetHistory handles GET /api/snapshots?days=N
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}

	history, err := h.repo.History(r.Context(), days)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get snapshot history")
		http.Error(w, "Failed to get snapshot history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []snapshots.Snapshot{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": history,
		"count":     len(history),
	})
}

// HandleGetLatest handles GET /api/snapshots/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	history, err := h.repo.History(r.Context(), 1)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest snapshot")
		http.Error(w, "Failed to get latest snapshot", http.StatusInternalServerError)
		return
	}
	if len(history) == 0 {
		http.Error(w, "No snapshot recorded", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, history[0])
}

// HandleGetStats handles GET /api/snapshots/stats?days=N
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}

	stats, err := h.repo.Stats(r.Context(), days)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute snapshot stats")
		http.Error(w, "Failed to compute snapshot stats", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) parseDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultHistoryDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxHistoryDays {
		http.Error(w, "days must be between 1 and 3650", http.StatusBadRequest)
		return 0, false
	}
	return days, true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
