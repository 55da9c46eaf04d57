package tui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pyrefactor/internal/core/app"
	"pyrefactor/internal/engine/refactor"
	"pyrefactor/internal/shared/util"
)

// Options configures a preview session.
type Options struct {
	Refactor *refactor.Options
	// Watch re-runs the preview whenever path changes.
	Watch bool
	// AllowWrite enables the save key.
	AllowWrite bool
}

// Run previews path until the user quits or ctx is done.
func Run(ctx context.Context, a *app.App, path string, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var save Saver
	if opts.AllowWrite {
		save = func(path, content string) error {
			return util.WriteFileAtomic(path, []byte(content), 0o644)
		}
	}
	p := tea.NewProgram(initialModel(path, save), tea.WithAltScreen(), tea.WithContext(ctx))

	send := func(r app.FileResult) {
		source, _ := os.ReadFile(r.Path)
		p.Send(resultMsg{path: r.Path, source: string(source), result: r.Response.Result, err: r.Err})
	}

	if opts.Watch {
		go func() {
			_ = a.Watch(ctx, path, opts.Refactor, send)
		}()
	} else {
		go func() {
			resp, err := a.RefactorFile(ctx, path, opts.Refactor, "tui")
			send(app.FileResult{Path: path, Response: resp, Err: err})
		}()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
