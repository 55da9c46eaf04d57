package app

import (
	"context"
	"fmt"
	"time"

	"pyrefactor/internal/core/ports"
	"pyrefactor/internal/shared/util"
)

// stuckLease flags a parser held far longer than any request should take.
const stuckLease = time.Minute

// Check reports engine, parser pool and catalog status.
func (a *App) Check(ctx context.Context) ports.HealthStatus {
	status := ports.HealthStatus{
		Status:     "up",
		Version:    Version,
		Components: make(map[string]string),
	}

	if a.current.Load() == nil {
		status.Status = "degraded"
		status.Components["engine"] = "missing"
	} else {
		status.Components["engine"] = "ok"
	}

	leased := a.pool.Stats()
	if oldest := a.pool.OldestLease(time.Now()); oldest > stuckLease {
		status.Status = "degraded"
		status.Components["parser_pool"] = fmt.Sprintf("%d leased, oldest %s", leased, oldest.Round(time.Second))
	} else {
		status.Components["parser_pool"] = fmt.Sprintf("ok (%d leased)", leased)
	}

	a.samplesMu.Lock()
	store := a.samples
	a.samplesMu.Unlock()
	if store == nil {
		status.Components["samples"] = "closed"
	} else if _, err := store.List(ctx); err != nil {
		status.Status = "degraded"
		status.Components["samples"] = err.Error()
	} else {
		status.Components["samples"] = "ok"
	}

	status.Components["heap"] = fmt.Sprintf("%d MB", util.HeapAllocMB())
	return status
}
