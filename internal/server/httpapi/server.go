package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/logging"
	"github.com/dmitrijs2005/filescloud/internal/server/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP listener and its graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewRouter assembles the full route table with logging, metrics, and JWT
// auth. Auth is skipped for the public surface: registration/login, shared
// downloads, health, metrics, and the key-guarded sweep hook.
func NewRouter(h *Handlers, logger logging.Logger, cfg *config.Config) chi.Router {
	router := chi.NewRouter()

	router.Use(RequestLogger(logger))
	router.Use(Metrics())
	router.Use(JWTAuth([]byte(cfg.SecretKey),
		"/api/auth/", "/shared/", "/health/", "/metrics", "/internal/"))

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/logout", h.Logout)

		r.Get("/files", h.ListFiles)
		r.Post("/files", h.Upload)
		r.Get("/files/{id}/download", h.Download)
		r.Delete("/files/{id}", h.SoftDelete)
		r.Post("/files/{id}/restore", h.Restore)
		r.Delete("/files/{id}/purge", h.Purge)
		r.Get("/files/{id}/share", h.GetShare)
		r.Post("/files/{id}/share", h.CreateShare)

		r.Get("/trash", h.ListTrash)
	})

	router.Get("/shared/{token}", h.SharedDownload)
	router.Post("/internal/trash/sweep", h.Sweep)

	router.Get("/health/live", h.HealthLive)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}

// NewServer builds the HTTP server around the assembled router.
func NewServer(h *Handlers, logger logging.Logger, cfg *config.Config) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.EndpointAddrHTTP,
			Handler:      NewRouter(h, logger, cfg),
			ReadTimeout:  30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "http server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(shutdownCtx, "shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
