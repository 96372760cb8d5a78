// Package handlers provides HTTP handlers for portfolio valuation.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/api"
	"github.com/quantcoin/quantz/internal/auth"
	"github.com/quantcoin/quantz/internal/modules/portfolio"
)

// Handler contains HTTP handlers for the portfolio API
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)
		r.Get("/history", h.HandleGetHistory)
	})
}

// HandleGetPortfolio handles GET /portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	summary, err := h.service.GetSummary(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to value portfolio")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve portfolio")
		return
	}

	api.Success(w, "Portfolio retrieved", summary)
}

// HandleGetHistory handles GET /portfolio/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 3650 {
			api.Error(w, http.StatusBadRequest, "Invalid limit. Must be 1-3650")
			return
		}
		limit = v
	}

	history, err := h.service.GetHistory(userID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get history")
		api.Error(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}
	if history == nil {
		history = []portfolio.Snapshot{}
	}

	api.Success(w, "History retrieved", history)
}
