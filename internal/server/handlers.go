package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantcoin/quantz/internal/api"
	"github.com/quantcoin/quantz/internal/pricing"
)

var startupTime = time.Now()

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.Success(w, "ok", map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(startupTime).Seconds()),
	})
}

// handleQuote handles GET /api/quotes/{symbol}. Cache-first; pass
// ?fresh=true to force a provider round trip.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		api.Error(w, http.StatusBadRequest, "symbol is required")
		return
	}

	resolve := s.cfg.Oracle.Resolve
	if r.URL.Query().Get("fresh") == "true" {
		resolve = s.cfg.Oracle.ResolveFresh
	}

	result, err := resolve(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, pricing.ErrNoPrice) {
			api.Error(w, http.StatusNotFound, "no price available for "+symbol)
			return
		}
		s.log.Error().Err(err).Str("symbol", symbol).Msg("Quote resolution failed")
		api.Error(w, http.StatusServiceUnavailable, "price sources unavailable")
		return
	}

	api.Success(w, "Quote retrieved", result)
}
