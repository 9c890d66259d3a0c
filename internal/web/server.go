// Package web provides the HTTP server and handlers for the browser UI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/PreChart2DB/internal/config"
	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/web/middleware"
	"github.com/JonMunkholm/PreChart2DB/internal/web/templates"
)

// Server is the HTTP server for the browser UI.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	flashes *flashStore

	limiters []*middleware.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
		flashes: newFlashStore(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(s.sessionMiddleware)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute))
	}
}

// rateLimit returns a per-IP limiter middleware and keeps the limiter for
// periodic cleanup.
func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	rl := middleware.NewRateLimiter(middleware.RateLimitConfig{PerMinute: perMinute})
	s.limiters = append(s.limiters, rl)
	return rl.Handler
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	writeLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled && s.cfg.Rate.UploadLimit > 0 {
		writeLimit = s.rateLimit(s.cfg.Rate.UploadLimit)
	}

	// Pages
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/analysis", s.handleAnalysis)
	s.router.Get("/settings", s.handleSettings)
	s.router.Get("/status", s.handleStatusPage)
	s.router.Get("/healthz", s.handleHealth)

	// Loading and editing
	s.router.With(writeLimit).Post("/upload", s.handleUpload)
	s.router.Route("/table", func(r chi.Router) {
		r.Post("/name", s.handleRenameTable)
		r.Post("/rows", s.handleAddRow)
		r.Post("/rows/{row}", s.handleSaveRow)
		r.Post("/rows/{row}/delete", s.handleDeleteRow)
		r.Post("/columns/{col}/kind", s.handleConvertColumn)
	})

	// Connection settings
	s.router.Post("/settings", s.handleUpdateSettings)
	s.router.Post("/settings/test", s.handleTestConnection)

	// Database writes
	s.router.Route("/db", func(r chi.Router) {
		r.Use(writeLimit)
		r.Post("/overwrite", s.handleRequestOverwrite)
		r.Post("/overwrite/confirm", s.handleConfirmOverwrite)
		r.Post("/overwrite/cancel", s.handleCancelOverwrite)
		r.Post("/append", s.handleAppend)
	})

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/table", s.handleExportTable)
		r.Post("/table/cell", s.handleEditCell)
		r.Get("/status", s.handleStatus)
		r.Get("/audit", s.handleAudit)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// RunMaintenance sweeps idle sessions and rate limiter entries until ctx
// is cancelled.
func (s *Server) RunMaintenance(ctx context.Context) {
	go s.service.Sessions().StartSessionSweeper(ctx, core.DefaultSweepInterval)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rl := range s.limiters {
				rl.Cleanup(10 * time.Minute)
			}
			s.flashes.sweep(s.service.Sessions())
		}
	}
}

// Shutdown stops accepting requests, then waits for running database
// writes to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.service.Limiter().WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) meta() templates.PageMeta {
	return templates.PageMeta{AppName: s.cfg.App.Name, Version: s.cfg.App.Version}
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Pages carry an inline stylesheet and no scripts.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// maxJSONBody bounds API request bodies.
const maxJSONBody = 1 << 20

// decodeJSON decodes a JSON request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
