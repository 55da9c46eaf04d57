// Package watcher reports changed Python files under a root, honoring
// exclude globs and .gitignore.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"pyrefactor/internal/shared/observability"
	"pyrefactor/internal/shared/util"
)

type Options struct {
	Debounce time.Duration
	// Exclude globs match slash-separated paths relative to the root and
	// bare base names. Directories are tested with a trailing slash.
	Exclude          []string
	RespectGitignore bool
}

type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	single    string
	debounce  time.Duration
	exclude   []glob.Glob
	gitignore *ignore.GitIgnore
	onChange  func([]string)

	callbackMu sync.Mutex
	pendingMu  sync.Mutex
	pending    map[string]struct{}
	timer      *time.Timer
	hashes     map[string]uint64
	done       chan struct{}
	closeOnce  sync.Once
}

// New prepares a watcher for root, which may be a directory or a single
// file. onChange receives sorted absolute paths after each quiet period.
func New(root string, opts Options, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     abs,
		debounce: opts.Debounce,
		onChange: onChange,
		pending:  make(map[string]struct{}),
		hashes:   make(map[string]uint64),
		done:     make(chan struct{}),
	}
	if !info.IsDir() {
		w.single = abs
		w.root = filepath.Dir(abs)
	}

	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		w.exclude = append(w.exclude, g)
	}
	if opts.RespectGitignore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(w.root, ".gitignore")); err == nil {
			w.gitignore = gi
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsWatcher = fsw
	return w, nil
}

// Files lists the Python files the watcher covers, sorted.
func (w *Watcher) Files() ([]string, error) {
	if w.single != "" {
		return []string{w.single}, nil
	}
	var files []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && w.excluded(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.relevant(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Start subscribes to the tree and dispatches changes until ctx is done or
// Close is called. Existing files are hashed so untouched saves are ignored.
func (w *Watcher) Start(ctx context.Context) error {
	if w.single != "" {
		if err := w.fsWatcher.Add(w.root); err != nil {
			return err
		}
	} else if err := w.watchRecursive(w.root); err != nil {
		return err
	}
	files, err := w.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		w.changed(f)
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded(path, true) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create && w.single == "" {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.excluded(event.Name, true) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExisting(event.Name)
						}
					}
					continue
				}
			}

			if !w.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)

		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	var paths []string
	for path := range w.pending {
		if w.changed(path) {
			paths = append(paths, path)
		}
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// changed records the content hash of path and reports whether it differs
// from the last one seen. A missing file counts as changed once.
func (w *Watcher) changed(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		_, known := w.hashes[path]
		delete(w.hashes, path)
		return known
	}
	sum := xxhash.Sum64(data)
	if prev, ok := w.hashes[path]; ok && prev == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) relevant(path string) bool {
	if w.single != "" {
		return filepath.Clean(path) == w.single
	}
	return util.IsPythonFile(path) && !w.excluded(path, false)
}

func (w *Watcher) excluded(path string, dir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = util.NormalizePatternPath(rel)
	base := filepath.Base(path)
	candidates := []string{rel, base}
	if dir {
		candidates = []string{rel, rel + "/", base + "/"}
	}
	for _, g := range w.exclude {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}
	if w.gitignore != nil {
		if dir {
			rel += "/"
		}
		return w.gitignore.MatchesPath(rel)
	}
	return false
}

func (w *Watcher) enqueueExisting(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.relevant(path) {
			w.schedule(path)
		}
		return nil
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}
