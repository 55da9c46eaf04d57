package app

import (
	"context"
	"os"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/core/ports"
	"pyrefactor/internal/core/watcher"
	"pyrefactor/internal/engine/refactor"
)

// FileResult is the outcome of refactoring one file in watch mode.
type FileResult struct {
	Path     string
	Response ports.RefactorResponse
	Err      error
}

// RefactorFile reads path and refactors its contents.
func (a *App) RefactorFile(ctx context.Context, path string, opts *refactor.Options, transport string) (ports.RefactorResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ports.RefactorResponse{}, errors.AddContext(
			errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
	}
	resp, err := a.Refactor(ctx, ports.RefactorRequest{Source: string(data), Options: opts, Transport: transport})
	if err != nil {
		return resp, errors.AddContext(err, errors.CtxPath, path)
	}
	return resp, nil
}

// RefactorTree refactors every Python file under root once, honoring the
// watch excludes. A per-file failure is recorded in its FileResult.
func (a *App) RefactorTree(ctx context.Context, root string, opts *refactor.Options, transport string) ([]FileResult, error) {
	w, err := a.newWatcher(root, func([]string) {})
	if err != nil {
		return nil, err
	}
	defer w.Close()

	files, err := w.Files()
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, root)
	}
	out := make([]FileResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrap(err, errors.CodeCanceled, "refactor tree canceled")
		}
		resp, err := a.RefactorFile(ctx, path, opts, transport)
		out = append(out, FileResult{Path: path, Response: resp, Err: err})
	}
	return out, nil
}

func (a *App) newWatcher(root string, onChange func([]string)) (*watcher.Watcher, error) {
	cfg := a.Config()
	w, err := watcher.New(root, watcher.Options{
		Debounce:         cfg.Watch.Debounce,
		Exclude:          cfg.Watch.Exclude,
		RespectGitignore: cfg.RespectGitignore(),
	}, onChange)
	if os.IsNotExist(err) {
		err = errors.Wrap(err, errors.CodeNotFound, "watch root")
	}
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, root)
	}
	return w, nil
}

// Watch refactors every Python file under root once, then again whenever
// one changes, until ctx is done. onResult is never called concurrently.
func (a *App) Watch(ctx context.Context, root string, opts *refactor.Options, onResult func(FileResult)) error {
	handle := func(paths []string) {
		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			resp, err := a.RefactorFile(ctx, path, opts, "watch")
			onResult(FileResult{Path: path, Response: resp, Err: err})
		}
	}

	w, err := a.newWatcher(root, handle)
	if err != nil {
		return err
	}
	defer w.Close()

	files, err := w.Files()
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, root)
	}
	handle(files)

	if err := w.Start(ctx); err != nil {
		return errors.AddContext(err, errors.CtxPath, root)
	}
	a.logger.Info("watching sources", "root", root, "files", len(files))
	<-ctx.Done()
	return nil
}
