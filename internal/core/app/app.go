// Package app wires configuration, the refactoring engine and the sample
// catalog behind the ports used by transports.
package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pyrefactor/internal/core/config"
	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/core/ports"
	"pyrefactor/internal/data/samples"
	"pyrefactor/internal/engine/refactor"
	"pyrefactor/internal/engine/syntax"
	"pyrefactor/internal/shared/observability"
)

// Version is reported by /health and -version.
var Version = "dev"

type runtime struct {
	cfg      *config.Config
	engine   *refactor.Engine
	defaults refactor.Options
}

type App struct {
	logger  *slog.Logger
	pool    *syntax.ParserPool
	current atomic.Pointer[runtime]

	samplesMu sync.Mutex
	samples   *samples.Store
}

var (
	_ ports.RefactorService = (*App)(nil)
	_ ports.HealthChecker   = (*App)(nil)
)

// New builds an App from cfg. A nil logger uses slog.Default.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		logger: logger,
		pool:   syntax.NewParserPool(syntax.PythonLanguage()),
	}
	if err := a.Reload(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.current.Load().cfg
}

// Reload swaps in a new configuration. Requests already running finish
// with the previous engine.
func (a *App) Reload(cfg *config.Config) error {
	settings, err := cfg.Settings()
	if err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "build engine settings")
	}
	defaults, err := cfg.DefaultOptions()
	if err != nil {
		return err
	}
	settings.Pool = a.pool
	settings.Logger = a.logger
	a.current.Store(&runtime{
		cfg:      cfg,
		engine:   refactor.New(settings),
		defaults: defaults,
	})
	return nil
}

// Refactor runs one request under the configured timeout.
func (a *App) Refactor(ctx context.Context, req ports.RefactorRequest) (ports.RefactorResponse, error) {
	rt := a.current.Load()
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	transport := req.Transport
	if transport == "" {
		transport = "direct"
	}
	opts := rt.defaults
	if req.Options != nil {
		opts = *req.Options
	}

	ctx, span := observability.Tracer.Start(ctx, "app.Refactor", trace.WithAttributes(
		attribute.String("request.id", id),
		attribute.String("transport", transport),
	))
	defer span.End()

	if timeout := rt.cfg.Engine.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger := a.logger.With("request_id", id, "transport", transport)
	start := time.Now()
	result, err := rt.engine.Run(ctx, refactor.Request{Source: req.Source, Options: opts})
	resp := ports.RefactorResponse{RequestID: id, Result: result}
	if err != nil {
		outcome := "error"
		if errors.IsCode(err, errors.CodeParse) {
			outcome = "parse_error"
		}
		observability.RequestsTotal.WithLabelValues(transport, outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info("refactor failed", "error", err, "duration", time.Since(start))
		return resp, errors.AddContext(err, errors.CtxRequestID, id)
	}

	observability.RequestsTotal.WithLabelValues(transport, "ok").Inc()
	logger.Info("refactor finished",
		"options", opts.Enabled(),
		"suggestions", len(result.Suggestions),
		"bytes", len(req.Source),
		"duration", time.Since(start),
	)
	return resp, nil
}

// Close releases the sample catalog.
func (a *App) Close(ctx context.Context) error {
	a.samplesMu.Lock()
	defer a.samplesMu.Unlock()
	if a.samples == nil {
		return nil
	}
	err := a.samples.Close()
	a.samples = nil
	return err
}
