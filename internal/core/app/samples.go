package app

import (
	"context"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/core/ports"
	"pyrefactor/internal/data/samples"
	"pyrefactor/internal/engine/refactor"
)

// OpenSamples opens and seeds the catalog named by server.samples_db. It
// is a no-op once the catalog is open.
func (a *App) OpenSamples(ctx context.Context) (ports.SampleCatalog, error) {
	a.samplesMu.Lock()
	defer a.samplesMu.Unlock()
	if a.samples != nil {
		return a.samples, nil
	}

	path := a.Config().Server.SamplesDB
	store, err := samples.Open(path)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	n, err := store.Seed(ctx)
	if err != nil {
		_ = store.Close()
		return nil, errors.AddContext(err, errors.CtxOperation, "seed_samples")
	}
	a.logger.Info("sample catalog ready", "path", path, "seeded", n)
	a.samples = store
	return store, nil
}

// RefactorSample runs a stored sample with its recorded options unless
// opts overrides them.
func (a *App) RefactorSample(ctx context.Context, name string, opts []string, transport string) (ports.RefactorResponse, error) {
	catalog, err := a.OpenSamples(ctx)
	if err != nil {
		return ports.RefactorResponse{}, err
	}
	sample, err := catalog.Get(ctx, name)
	if err != nil {
		return ports.RefactorResponse{}, err
	}
	if len(opts) == 0 {
		opts = sample.Options
	}
	parsed, err := refactor.ParseOptions(opts)
	if err != nil {
		return ports.RefactorResponse{}, err
	}
	return a.Refactor(ctx, ports.RefactorRequest{Source: sample.Source, Options: &parsed, Transport: transport})
}
