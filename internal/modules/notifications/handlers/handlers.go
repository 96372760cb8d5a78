// Package handlers provides HTTP handlers for notifications.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/api"
	"github.com/quantcoin/quantz/internal/auth"
	"github.com/quantcoin/quantz/internal/modules/notifications"
)

// Handler contains HTTP handlers for the notifications API
type Handler struct {
	service *notifications.Service
	hub     *notifications.Hub
	log     zerolog.Logger
}

// NewHandler creates a new notifications handler
func NewHandler(service *notifications.Service, hub *notifications.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		log:     log.With().Str("handler", "notifications").Logger(),
	}
}

// RegisterRoutes registers all notification routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/{id}/read", h.HandleMarkRead)
	r.Post("/read-all", h.HandleMarkAllRead)
	r.Get("/stream", h.HandleStream)
}

// HandleList handles GET / with pagination
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 200 {
			api.Error(w, http.StatusBadRequest, "Invalid limit. Must be 1-200")
			return
		}
		limit = v
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}

	result, err := h.service.List(userID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list notifications")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve notifications")
		return
	}

	api.Success(w, "Notifications retrieved", result)
}

// HandleMarkRead handles POST /{id}/read
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := chi.URLParam(r, "id")

	found, err := h.service.MarkRead(userID, id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to mark notification read")
		api.Error(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	if !found {
		api.Error(w, http.StatusNotFound, "Notification not found")
		return
	}

	api.Success(w, "Notification marked read", nil)
}

// HandleMarkAllRead handles POST /read-all
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	count, err := h.service.MarkAllRead(userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to mark all notifications read")
		api.Error(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}

	api.Success(w, "Notifications marked read", map[string]interface{}{"updated": count})
}

// HandleStream handles GET /stream — WebSocket push of new notifications
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	h.hub.ServeStream(w, r, userID)
}
