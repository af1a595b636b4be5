// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a callback.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watcher already running")

	// ErrInvalidPattern is wrapped by errors about malformed globs.
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// defaultPatterns select the files a build depends on.
	defaultPatterns = []string{"**/*.v", "Gallus.toml"}

	// defaultIgnores never trigger a callback and are never descended into.
	defaultIgnores = []string{
		"**/.git/**",
		"**/_build/**",
		"**/.#*",
		"**/*~",
	}
)

type (
	// Config holds the parameters of a Watcher.
	Config struct {
		// Root is the directory to watch. Patterns are matched against
		// slash-separated paths relative to it.
		Root string

		// Patterns select the files whose changes count. Empty means the
		// project sources and manifest.
		Patterns []string

		// Ignore adds patterns to the built-in ignore list.
		Ignore []string

		// Debounce overrides DefaultDebounce when positive.
		Debounce time.Duration

		// OnChange receives the sorted relative paths changed during one
		// quiet period. Calls never overlap.
		OnChange func(ctx context.Context, changed []string) error
	}

	// Watcher delivers debounced change sets for a directory tree.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		root     string
		patterns []string
		ignores  []string
		debounce time.Duration
		started  atomic.Bool
	}

	// PatternError reports a glob that doublestar cannot parse.
	PatternError struct {
		Pattern string
	}
)

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q", e.Pattern)
}

// Unwrap returns ErrInvalidPattern.
func (e *PatternError) Unwrap() error { return ErrInvalidPattern }

// New validates cfg and registers every non-ignored directory under
// cfg.Root with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch: no root directory")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	ignores := slices.Concat(defaultIgnores, cfg.Ignore)
	for _, pat := range slices.Concat(patterns, ignores) {
		if !doublestar.ValidatePattern(pat) {
			return nil, &PatternError{Pattern: pat}
		}
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		patterns: patterns,
		ignores:  ignores,
		debounce: debounce,
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run dispatches change sets until ctx is done, then releases the fsnotify
// watcher. It returns nil on cancellation and an error when fsnotify can no
// longer deliver events. A callback in progress has returned before Run does.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		stopped bool
		busy    atomic.Bool
		// inflight is only incremented under mu while stopped is false.
		inflight sync.WaitGroup
	)

	// flush runs on the timer goroutine. A change set that arrives while the
	// previous callback is still running is kept and retried after another
	// quiet period.
	flush := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			slog.Debug("callback still running, postponing changes")
			mu.Lock()
			if !stopped {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		inflight.Add(1)
		defer inflight.Done()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}

		slog.Debug("sources changed", "paths", changed)
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			slog.Warn("change handler failed", "error", err)
		}
	}

	defer func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		inflight.Wait()
		if err := w.fsw.Close(); err != nil {
			slog.Warn("close fsnotify watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				w.addNewDir(evt.Name)
			}
			rel := w.rel(evt.Name)
			if w.ignored(rel) || !w.selected(rel) {
				continue
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, flush)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if resourceExhausted(err) {
				return fmt.Errorf("watch: %w", err)
			}
			slog.Warn("fsnotify error", "error", err)
		}
	}
}

// addTree registers dir and its non-ignored descendants. Unreadable
// directories are skipped with a warning.
func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Warn("not watching unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel := w.rel(path); rel != "." && (w.ignored(rel) || w.ignored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: register directories: %w", err)
	}
	return nil
}

// addNewDir extends the watch to a directory created after startup.
func (w *Watcher) addNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		slog.Warn("could not watch new directory", "path", path, "error", err)
	}
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) selected(rel string) bool {
	return matchAny(w.patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
