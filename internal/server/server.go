// Package server provides the HTTP server and routing for QuantZ.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/quantcoin/quantz/internal/auth"
	alerthandlers "github.com/quantcoin/quantz/internal/modules/alerts/handlers"
	notificationhandlers "github.com/quantcoin/quantz/internal/modules/notifications/handlers"
	portfoliohandlers "github.com/quantcoin/quantz/internal/modules/portfolio/handlers"
	tradinghandlers "github.com/quantcoin/quantz/internal/modules/trading/handlers"
	"github.com/quantcoin/quantz/internal/pricing"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	DevMode bool

	Oracle *pricing.Oracle

	Trading       *tradinghandlers.Handler
	Portfolio     *portfoliohandlers.Handler
	Notifications *notificationhandlers.Handler
	Alerts        *alerthandlers.Handler
	System        *SystemHandlers
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.HeaderUserID},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Quotes are public: no wallet is touched
		r.Get("/quotes/{symbol}", s.handleQuote)

		if s.cfg.System != nil {
			r.Route("/system", func(r chi.Router) {
				s.cfg.System.RegisterRoutes(r)
			})
		}

		// Everything below operates on a specific user's data
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Route("/trading", func(r chi.Router) {
				s.cfg.Trading.RegisterRoutes(r)
				s.cfg.Portfolio.RegisterRoutes(r)
			})

			r.Route("/notifications", func(r chi.Router) {
				s.cfg.Notifications.RegisterRoutes(r)
			})

			r.Route("/alerts", func(r chi.Router) {
				s.cfg.Alerts.RegisterRoutes(r)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
