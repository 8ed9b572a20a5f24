// Package handlers provides HTTP handlers for settings management.
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/settings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ServiceFactory opens a fresh run-scoped settings service
type ServiceFactory func() *settings.Service

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	newService ServiceFactory
	log        zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(newService ServiceFactory, log zerolog.Logger) *Handler {
	return &Handler{
		newService: newService,
		log:        log.With().Str("handler", "settings").Logger(),
	}
}

// SettingView is one listed setting with secrets masked
type SettingView struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all := h.newService().All(r.Context())

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	views := make([]SettingView, 0, len(keys))
	for _, k := range keys {
		v := all[k]
		if settings.IsSecret(k) && v != "" {
			v = settings.Mask(v)
		}
		views = append(views, SettingView{Key: k, Value: v, Description: settings.SettingDescriptions[k]})
	}

	writeJSON(w, http.StatusOK, views)
}

// HandleUpdate handles PUT /api/settings/{key} with body {"value": "..."}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	var req struct {
		Value *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value is required"})
		return
	}

	if err := h.newService().Set(r.Context(), key, *req.Value); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to update setting")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update setting"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "key": key})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RegisterRoutes registers all settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Put("/{key}", h.HandleUpdate)
	})
}
