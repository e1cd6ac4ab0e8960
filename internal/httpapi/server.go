// Package httpapi exposes the task manager over a small JSON API.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func NewRouter(h *TaskHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(Logging(logger))

	r.Get("/health", handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/profile", h.handleProfile)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.handleList)
			r.Post("/", h.handleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGet)
				r.Delete("/", h.handleDelete)
				r.Post("/toggle", h.handleToggle)
				r.Post("/snooze", h.handleSnooze)
				r.Put("/due", h.handleEditDue)
			})
		})
	})
	return r
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(addr string, h *TaskHandler, logger *slog.Logger) *Server {
	logger = logger.With("component", "http")
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(h, logger),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown; it never returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
