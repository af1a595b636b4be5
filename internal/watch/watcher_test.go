// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recorder collects change sets delivered by a Watcher.
type recorder struct {
	mu   sync.Mutex
	sets [][]string
	got  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.sets = append(r.sets, changed)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a change set")
	}
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sets)
}

// start runs w in the background and stops it when the test ends.
func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("(* *)"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcher_CoalescesChanges(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	rec := newRecorder()

	w, err := New(Config{Root: root, Debounce: 100 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	for _, name := range []string{"b.v", "a.v", "notes.txt"} {
		write(t, filepath.Join(root, name))
		time.Sleep(10 * time.Millisecond)
	}
	rec.wait(t)
	time.Sleep(200 * time.Millisecond)

	sets := rec.snapshot()
	if len(sets) != 1 {
		t.Fatalf("expected one change set, got %v", sets)
	}
	if !slices.Equal(sets[0], []string{"a.v", "b.v"}) {
		t.Errorf("expected sorted sources only, got %v", sets[0])
	}
}

func TestWatcher_IgnoresBuildOutput(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	rec := newRecorder()

	w, err := New(Config{
		Root:     root,
		Ignore:   []string{"**/scratch.v"},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	write(t, filepath.Join(root, "a.vo"))
	write(t, filepath.Join(root, "scratch.v"))
	time.Sleep(10 * time.Millisecond)
	write(t, filepath.Join(root, "Gallus.toml"))
	rec.wait(t)

	sets := rec.snapshot()
	if len(sets) != 1 || !slices.Equal(sets[0], []string{"Gallus.toml"}) {
		t.Errorf("expected only the manifest change, got %v", sets)
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	rec := newRecorder()

	w, err := New(Config{Root: root, Debounce: 50 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	sub := filepath.Join(root, "Lib")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the event loop time to register the new directory.
	time.Sleep(100 * time.Millisecond)
	write(t, filepath.Join(sub, "Core.v"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-rec.got:
			for _, set := range rec.snapshot() {
				if slices.Contains(set, "Lib/Core.v") {
					return
				}
			}
		case <-deadline:
			t.Fatalf("no change reported for Lib/Core.v, got %v", rec.snapshot())
		}
	}
}

func TestWatcher_SkipsIgnoredDirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "_build", "default"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(Config{Root: root})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.fsw.Close()

	for _, dir := range w.fsw.WatchList() {
		if filepath.Base(dir) == "_build" || filepath.Base(dir) == "default" {
			t.Errorf("ignored directory registered: %s", dir)
		}
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()
	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestWatcher_RunWaitsForCallback(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	started := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool

	w, err := New(Config{
		Root:     root,
		Debounce: 20 * time.Millisecond,
		OnChange: func(ctx context.Context, _ []string) error {
			once.Do(func() { close(started) })
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// Keep writing until the first flush picks a change up; the watch on
	// root may not be registered yet when Run starts.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		write(t, filepath.Join(root, "a.v"))
		select {
		case <-started:
			break wait
		case <-tick.C:
		case <-deadline:
			t.Fatal("timed out waiting for the callback")
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if !finished.Load() {
		t.Error("Run returned before the callback finished")
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("expected an error without a root")
	}

	_, err := New(Config{Root: t.TempDir(), Patterns: []string{"[unclosed"}})
	var patErr *PatternError
	if !errors.As(err, &patErr) || patErr.Pattern != "[unclosed" {
		t.Errorf("expected *PatternError for [unclosed, got %v", err)
	}
	if !errors.Is(err, ErrInvalidPattern) {
		t.Error("expected ErrInvalidPattern in the chain")
	}
}

func TestMatchAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel  string
		want bool
	}{
		{"a.v", true},
		{"Lib/Core/Base.v", true},
		{"Gallus.toml", true},
		{"Lib/Gallus.toml", false},
		{"a.vo", false},
		{"README.md", false},
	}
	for _, tt := range tests {
		if got := matchAny(defaultPatterns, tt.rel); got != tt.want {
			t.Errorf("matchAny(default, %q) = %v, want %v", tt.rel, got, tt.want)
		}
	}

	for _, rel := range []string{".git/HEAD", "Lib/_build/a.v", ".#a.v", "a.v~"} {
		if !matchAny(defaultIgnores, rel) {
			t.Errorf("expected %q to be ignored by default", rel)
		}
	}
}
