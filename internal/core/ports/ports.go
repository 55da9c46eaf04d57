// Package ports declares the boundaries between transports and the
// application core.
package ports

import (
	"context"

	"pyrefactor/internal/data/samples"
	"pyrefactor/internal/engine/refactor"
)

// RefactorRequest is one job submitted by a driving adapter.
type RefactorRequest struct {
	Source string
	// Options nil selects the configured default passes.
	Options *refactor.Options
	// Transport labels metrics and logs, e.g. "http" or "cli".
	Transport string
	// RequestID is generated when empty.
	RequestID string
}

// RefactorResponse pairs the engine result with the id it ran under.
type RefactorResponse struct {
	RequestID string
	Result    refactor.Result
}

// RefactorService runs the engine on behalf of transports.
type RefactorService interface {
	Refactor(ctx context.Context, req RefactorRequest) (RefactorResponse, error)
}

// SampleCatalog exposes stored example sources.
type SampleCatalog interface {
	List(ctx context.Context) ([]samples.Sample, error)
	Get(ctx context.Context, name string) (samples.Sample, error)
}

// HealthChecker reports component status.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}
