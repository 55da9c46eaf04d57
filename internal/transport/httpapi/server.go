// Package httpapi serves the refactoring engine over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pyrefactor/internal/core/config"
	"pyrefactor/internal/core/ports"
	"pyrefactor/internal/shared/util"
)

// Deps are the core services the server drives.
type Deps struct {
	Refactor ports.RefactorService
	Health   ports.HealthChecker
	// Samples opens the catalog lazily; nil disables the sample routes.
	Samples func(ctx context.Context) (ports.SampleCatalog, error)
}

type Options struct {
	Server         config.Server
	MetricsEnabled bool
	Logger         *slog.Logger
}

type Server struct {
	deps     Deps
	opts     config.Server
	metrics  bool
	logger   *slog.Logger
	contract *contract
	limiter  *util.LimiterRegistry
	handler  http.Handler
}

// New builds the server and its middleware chain.
func New(deps Deps, opts Options) (*Server, error) {
	c, err := loadContract()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:     deps,
		opts:     opts.Server,
		metrics:  opts.MetricsEnabled,
		logger:   logger,
		contract: c,
		limiter:  util.NewLimiterRegistry(opts.Server.RateLimit, opts.Server.Burst, 10*time.Minute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /refactor", s.handleRefactor)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /samples", s.handleListSamples)
	mux.HandleFunc("GET /samples/{name}", s.handleGetSample)
	mux.HandleFunc("POST /samples/{name}/refactor", s.handleRefactorSample)
	mux.HandleFunc("GET /openapi.json", s.handleContract)
	if s.metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	s.handler = s.withRequestID(s.withLogging(s.withRateLimit(s.withValidation(mux))))
	return s, nil
}

// Handler returns the root handler, useful with httptest.
func (s *Server) Handler() http.Handler { return s.handler }

// Close stops background work owned by the server.
func (s *Server) Close() { s.limiter.Close() }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.opts.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
