// Package server exposes screenshot capture over HTTP.
//
// Endpoints:
//
//	GET  /                      service status and endpoint index
//	POST /submit-url            capture {"url": "..."}
//	GET  /screenshots           list stored screenshots
//	GET  /screenshots/by-url    screenshots for ?url=
//	GET  /screenshots/{file}    one screenshot
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/internal/storage"
	"github.com/jmylchreest/pageshot/internal/version"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

// Capturer captures one URL.
type Capturer interface {
	Capture(ctx context.Context, rawURL string) (*capture.Result, error)
}

// Options bounds request handling.
type Options struct {
	MaxConcurrent  int           // simultaneous captures
	Backlog        int           // captures allowed to wait for a slot
	BacklogTimeout time.Duration // how long a queued capture may wait
	RequestTimeout time.Duration // upper bound on one capture
	Logger         *slog.Logger
}

func (o *Options) defaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 4
	}
	if o.Backlog < 0 {
		o.Backlog = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Minute
	}
	if o.BacklogTimeout <= 0 {
		o.BacklogTimeout = o.RequestTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Component("server")
	}
}

// Server is the HTTP API.
type Server struct {
	capturer Capturer
	store    *storage.Store
	opts     Options
	log      *slog.Logger
	validate *validator.Validate
	router   chi.Router
}

// New builds the router.
func New(c Capturer, store *storage.Store, opts Options) *Server {
	opts.defaults()
	s := &Server{
		capturer: c,
		store:    store,
		opts:     opts,
		log:      opts.Logger,
		validate: validator.New(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.With(middleware.ThrottleBacklog(s.opts.MaxConcurrent, s.opts.Backlog, s.opts.BacklogTimeout)).
		Post("/submit-url", s.handleSubmit)

	r.Route("/screenshots", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/by-url", s.handleByURL)
		r.Get("/{filename}", s.handleFile)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully, giving in-flight captures up to grace to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", addr, "max_concurrent", s.opts.MaxConcurrent)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down", "grace", grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Status:  "online",
		Service: "pageshot",
		Version: version.Get().Version,
		Endpoints: map[string]string{
			"/submit-url":             "POST - Submit a URL for screenshot capture",
			"/screenshots":            "GET - List all available screenshots",
			"/screenshots/{filename}": "GET - Retrieve a specific screenshot by filename",
			"/screenshots/by-url":     "GET - Retrieve screenshots for a specific URL (with url parameter)",
		},
	})
}
