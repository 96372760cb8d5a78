// Package handlers exposes the alerts module over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/api"
	"github.com/quantcoin/quantz/internal/auth"
	"github.com/quantcoin/quantz/internal/modules/alerts"
)

// Handler serves alert endpoints
type Handler struct {
	service *alerts.Service
	log     zerolog.Logger
}

// NewHandler creates a new alerts handler
func NewHandler(service *alerts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "alerts").Logger(),
	}
}

// RegisterRoutes mounts the alert routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Delete("/{id}", h.HandleDelete)
}

// HandleCreate creates a new alert for the authenticated user
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req alerts.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("Failed to create alert")
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	api.SuccessStatus(w, http.StatusCreated, "Alert created", alert)
}

// HandleList returns the authenticated user's active alerts
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	list, err := h.service.List(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list alerts")
		api.Error(w, http.StatusInternalServerError, "failed to retrieve alerts")
		return
	}

	api.Success(w, "Alerts retrieved", map[string]interface{}{
		"alerts": list,
		"count":  len(list),
	})
}

// HandleDelete deactivates an alert owned by the authenticated user
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	ok, err := h.service.Delete(userID, id)
	if err != nil {
		h.log.Error().Err(err).Int("alert_id", id).Msg("Failed to delete alert")
		api.Error(w, http.StatusInternalServerError, "failed to delete alert")
		return
	}
	if !ok {
		api.Error(w, http.StatusNotFound, "alert not found")
		return
	}

	api.Success(w, "Alert deleted", nil)
}
