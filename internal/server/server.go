// Package server is the HTTP request boundary around the classification
// pipeline: request validation, batch limits, rate limiting, CORS, security
// headers and the operational endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"title-classifier/internal/mappings"
	"title-classifier/internal/pipeline"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Config tunes the HTTP boundary.
type Config struct {
	Port                int
	APIVersion          string
	MaxTitlesPerRequest int
	// RateLimit is the sustained per-client request rate on the categorise
	// endpoint, in requests per second.
	RateLimit float64
	RateBurst int
}

// Defaults matching the service configuration.
const (
	DefaultPort                = 8000
	DefaultAPIVersion          = "v1"
	DefaultMaxTitlesPerRequest = 100
	DefaultRateLimit           = 5
	DefaultRateBurst           = 10
)

// Server serves the classification API.
type Server struct {
	cfg       Config
	logger    *zap.Logger
	processor *pipeline.Processor
	store     *mappings.Store
	limiters  *clientLimiters

	httpServer *http.Server
}

// New creates a server around the processor and mappings store. Zero config
// fields fall back to the defaults.
func New(cfg Config, processor *pipeline.Processor, store *mappings.Store, logger *zap.Logger) *Server {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MaxTitlesPerRequest <= 0 {
		cfg.MaxTitlesPerRequest = DefaultMaxTitlesPerRequest
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}

	return &Server{
		cfg:       cfg,
		logger:    logger,
		processor: processor,
		store:     store,
		limiters:  newClientLimiters(cfg.RateLimit, cfg.RateBurst),
	}
}

// Handler builds the full middleware chain and routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(s.categorisePath(), s.withRateLimit(s.handleCategorise))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/reload-config", s.handleReload)
	mux.HandleFunc("/", s.handleIndex)

	handler := cors.Default().Handler(mux)
	handler = s.withSecurityHeaders(handler)
	handler = s.withRequestLog(handler)

	return handler
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.limiters.cleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening",
			zap.Int("port", s.cfg.Port),
			zap.String("api_version", s.cfg.APIVersion),
		)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}

func (s *Server) categorisePath() string {
	return fmt.Sprintf("/%s/categorise", s.cfg.APIVersion)
}

// withSecurityHeaders adds the browser hardening headers to every response.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}

// withRequestLog logs method, path, status and duration of every request.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
