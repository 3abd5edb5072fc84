package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/pipeline"
	"mercator-hq/saturn/pkg/telemetry/tracing"
)

// Options carries the optional handlers mounted next to the API.
type Options struct {
	// Health serves GET /health. Nil serves a static ok.
	Health http.Handler

	// Metrics serves GET MetricsPath. Nil leaves the route unmounted.
	Metrics http.Handler

	// MetricsPath defaults to "/metrics".
	MetricsPath string

	Logger *slog.Logger
}

// Server is the HTTP ingress in front of the governance pipeline.
type Server struct {
	cfg        config.ServerConfig
	pipeline   *pipeline.Pipeline
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server for p.
func New(cfg config.ServerConfig, p *pipeline.Pipeline, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultClassification == "" {
		cfg.DefaultClassification = config.DefaultClassification
	}
	return &Server{
		cfg:      cfg,
		pipeline: p,
		opts:     opts,
		logger:   logger.With("component", "server"),
	}
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(tracing.HTTPMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Use(bodyLimitMiddleware(s.cfg.MaxBodyBytes))
		r.Post("/chat/completions", s.handleChatCompletions)
		r.Post("/embeddings", s.handleEmbeddings)
	})

	if s.opts.Health != nil {
		r.Method(http.MethodGet, "/health", s.opts.Health)
	} else {
		r.Get("/health", s.handleHealth)
	}
	if s.opts.Metrics != nil {
		path := s.opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, s.opts.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, &ErrorResponse{Error: ErrorDetail{
			Code:      "not_found",
			Message:   fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
			Type:      "validation",
			RequestID: r.Header.Get(HeaderRequestID),
		}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, &ErrorResponse{Error: ErrorDetail{
			Code:      "method_not_allowed",
			Message:   fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
			Type:      "validation",
			RequestID: r.Header.Get(HeaderRequestID),
		}})
	})

	return r
}

// Start listens on the configured address and blocks until ctx is done, a
// termination signal arrives or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return err
	}
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting connections and waits for in-flight requests up to
// the configured shutdown timeout. Streams still open are settled and audited
// by the pipeline after their connections close.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running, srv := s.isRunning, s.httpServer
		s.mu.Unlock()
		if !running || srv == nil {
			return
		}

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("gateway stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
