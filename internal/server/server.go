// Package server exposes the bridge over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/wqlbridge/internal/metrics"
	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
	"golang.org/x/sync/errgroup"
)

// Reloader is implemented by adapters that serve a reloadable fixture file.
type Reloader interface {
	Reload() error
	FixturePath() string
}

// Config holds configuration for the HTTP server.
type Config struct {
	Bridge  *bridge.Bridge
	Metrics *metrics.Metrics
	Addr    string
	// Watch reloads Reloader's fixture file when it changes on disk.
	Watch    bool
	Reloader Reloader
	Logger   *slog.Logger
}

// Server serves bridge queries over HTTP.
type Server struct {
	bridge   *bridge.Bridge
	metrics  *metrics.Metrics
	addr     string
	watch    bool
	reloader Reloader
	logger   *slog.Logger
	notifier *Notifier
}

// New creates a new server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		bridge:   cfg.Bridge,
		metrics:  m,
		addr:     cfg.Addr,
		watch:    cfg.Watch,
		reloader: cfg.Reloader,
		logger:   logger,
		notifier: NewNotifier(),
	}
}

// Notifier returns the server's reload notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		s.requestID,
		s.logRequests,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/namespaces", s.handleNamespaces)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.reloader != nil && s.reloader.FixturePath() != "" {
		eg.Go(func() error {
			return s.watchFixture(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
