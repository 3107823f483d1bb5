// Package watch reruns a workspace pipeline whenever its files change. A
// change tears the current engine down and builds a fresh one, so every
// rebuild sees a clean snapshot.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/csso/fngraph/internal/workspace"
)

// DefaultDebounce is the quiet period after the last file event before
// OnChange fires. Editors tend to write in bursts.
const DefaultDebounce = 500 * time.Millisecond

// Config describes what to watch and what to do about it.
type Config struct {
	// Dirs are watched recursively. DirsFor derives them from a workspace.
	Dirs     []string
	Debounce time.Duration
	Logger   *slog.Logger

	// OnChange fires after the debounce window closes. It runs on the
	// timer's goroutine; the next burst is held until it returns.
	OnChange func(ctx context.Context)
}

// Watcher drives fsnotify over a workspace tree.
type Watcher struct {
	cfg Config
	fsw *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// DirsFor collects the directories a workspace reads from: the workspace
// root, the manifest tree, and the parents of any scripts or graph files
// that live outside it.
func DirsFor(ws *workspace.Config) []string {
	seen := make(map[string]struct{})
	add := func(dir string) {
		if dir != "" {
			seen[dir] = struct{}{}
		}
	}

	add(ws.Dir)
	add(ws.ModulesDir())
	for _, p := range ws.ScriptPaths() {
		add(filepath.Dir(p))
	}
	for _, g := range ws.Graphs {
		if file, ok := ws.GraphFile(g.Name); ok {
			add(filepath.Dir(file))
		}
	}

	out := make([]string, 0, len(seen))
	for dir := range seen {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// New creates the watcher and registers every directory under cfg.Dirs.
func New(cfg Config) (*Watcher, error) {
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("watch: OnChange is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{cfg: cfg, fsw: fsw}
	for _, dir := range cfg.Dirs {
		if err := w.addRecursively(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run blocks consuming file events until the context is canceled, which is
// the normal way to leave watch mode.
func (w *Watcher) Run(ctx context.Context) error {
	w.cfg.Logger.Info("Watching for changes.", "dirs", len(w.cfg.Dirs), "debounce", w.cfg.Debounce)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.cfg.Logger.Error("Watcher error.", "error", err)
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// New directories must be registered before anything inside them
	// changes, relevant file or not.
	if event.Has(fsnotify.Create) {
		if stat, err := os.Stat(event.Name); err == nil && stat.IsDir() {
			w.cfg.Logger.Debug("Watching new directory.", "dir", event.Name)
			if err := w.fsw.Add(event.Name); err != nil {
				w.cfg.Logger.Warn("Failed to watch new directory.", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !relevant(event.Name) {
		return
	}
	w.cfg.Logger.Debug("File event.", "op", event.Op.String(), "file", event.Name)
	w.debounce(ctx)
}

// relevant reports whether a path is part of the pipeline definition:
// scripts, manifests, or graph documents.
func relevant(path string) bool {
	switch filepath.Ext(path) {
	case ".js", ".hcl", ".yaml", ".yml":
		return true
	}
	return false
}

func (w *Watcher) debounce(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.cfg.Logger.Info("Changes detected, rebuilding.")
		w.cfg.OnChange(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) addRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to add watcher for %s: %w", path, err)
		}
		return nil
	})
}
