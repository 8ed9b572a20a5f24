// Package handlers provides HTTP handlers for allocation targets.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/allocation"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/indicators"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/strategy"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles allocation HTTP requests
type Handler struct {
	cfg *strategy.Config
	log zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(cfg *strategy.Config, log zerolog.Logger) *Handler {
	return &Handler{
		cfg: cfg,
		log: log.With().Str("handler", "allocation").Logger(),
	}
}

type targetView struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Target float64             `json:"target"`
	Source domain.TargetSource `json:"source"`
}

// HandleGetTargets handles GET /allocation/targets?multiple=1.2 and previews
// the targets every group would resolve to at that regime multiple
func (h *Handler) HandleGetTargets(w http.ResponseWriter, r *http.Request) {
	var market domain.MarketSnapshot
	if raw := r.URL.Query().Get("multiple"); raw != "" {
		mm, err := strconv.ParseFloat(raw, 64)
		if err != nil || mm <= 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "multiple must be a positive number"})
			return
		}
		market.RegimeMultiple = mm
		market.HasRegimeMultiple = true
	}

	views := make([]targetView, 0, len(h.cfg.AssetGroups))
	for _, g := range h.cfg.AssetGroups {
		target, source := allocation.ResolveTarget(g, indicators.Set{}, market)
		views = append(views, targetView{ID: g.ID, Name: g.Name, Target: target, Source: source})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode targets response")
	}
}

// RegisterRoutes registers all allocation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/allocation/targets", h.HandleGetTargets)
}
