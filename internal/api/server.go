package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gametrade/appraisal/internal/assessor"
	"github.com/gametrade/appraisal/internal/auth"
	"github.com/gametrade/appraisal/internal/buyback"
	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/policy"
	"github.com/gametrade/appraisal/internal/stats"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, snapshot *assessor.Snapshot, pol *policy.Service, processor *buyback.Processor, statsSvc *stats.Service, authMgr *auth.Manager, version string) *Server {
	handler := NewHandler(repo, cache, bus, snapshot, pol, processor, statsSvc, authMgr, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Public storefront routes
	router.Group(func(r chi.Router) {
		r.Use(GuestMiddleware)

		// Appraisal form
		r.Get("/rules", handler.ListRules)
		r.Post("/estimate", handler.Estimate)
		r.Post("/buyback", handler.SubmitBuyback)

		// Listings
		r.Get("/listings", handler.SearchListings)
		r.Get("/listings/{id}", handler.GetListing)
		r.Post("/listings/{id}/like", handler.ToggleLike)
		r.Get("/listings/{id}/reviews", handler.ListReviews)
		r.Post("/listings/{id}/reviews", handler.SubmitReview)

		// Campaign banner
		r.Get("/campaign", handler.GetCampaign)
	})

	// Admin routes
	router.Route("/admin", func(r chi.Router) {
		r.Post("/login", handler.AdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(authMgr))

			r.Post("/logout", handler.AdminLogout)

			// Rule management
			r.Get("/rules", handler.AdminListRules)
			r.Post("/rules", handler.AdminCreateRule)
			r.Put("/rules/{id}", handler.AdminUpdateRule)
			r.Delete("/rules/{id}", handler.AdminDeleteRule)
			r.Post("/rules/reorder", handler.AdminReorderCategories)
			r.Post("/rules/reload", handler.AdminReloadRules)

			// Listing management
			r.Get("/listings", handler.AdminListListings)
			r.Post("/listings", handler.AdminSaveListing)
			r.Put("/listings/{id}", handler.AdminSaveListing)
			r.Delete("/listings/{id}", handler.AdminDeleteListing)

			// Review moderation
			r.Get("/reviews", handler.AdminListReviews)
			r.Post("/reviews/{id}/approve", handler.AdminApproveReview)
			r.Post("/reviews/{id}/reject", handler.AdminRejectReview)

			// Buyback back office
			r.Get("/buyback", handler.AdminListBuyback)
			r.Get("/buyback/{id}", handler.AdminGetBuyback)
			r.Put("/buyback/{id}/status", handler.AdminSetBuybackStatus)

			// Site configuration
			r.Get("/config/{key}", handler.AdminGetConfig)
			r.Put("/config/{key}", handler.AdminSetConfig)

			// Acceptance policy
			r.Get("/policy", handler.AdminGetPolicy)
			r.Put("/policy", handler.AdminSetPolicy)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
