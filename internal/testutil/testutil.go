// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// MustChdir changes the current working directory to dir.
// It returns a cleanup function that restores the original directory.
// The test fails immediately if the directory change fails.
func MustChdir(t testing.TB, dir string) func() {
	t.Helper()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory to %s: %v", dir, err)
	}
	return func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Errorf("failed to restore directory to %s: %v", originalWd, err)
		}
	}
}

// SetConfigHome points the platform configuration directory lookup at dir
// for the duration of the test. Tests using it must not run in parallel.
func SetConfigHome(t testing.TB, dir string) {
	t.Helper()
	switch runtime.GOOS {
	case "windows":
		t.Setenv("APPDATA", dir)
	case "darwin":
		t.Setenv("HOME", dir)
	default:
		t.Setenv("XDG_CONFIG_HOME", dir)
	}
}

// WriteFiles creates every file under root, with parent directories, using
// slash-separated relative paths as keys and file contents as values.
func WriteFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		MustMkdirAll(t, filepath.Dir(path), 0o755)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

// Project lays out a minimal project under a fresh temporary directory: a
// Gallus.toml manifest plus the given empty source files. It returns the
// absolute project root.
func Project(t testing.TB, sources ...string) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Gallus.toml": "[package]\nname = \"fixture\"\nversion = \"0.1.0\"\n",
	}
	for _, src := range sources {
		files[src] = ""
	}
	WriteFiles(t, root, files)
	abs, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("failed to resolve %s: %v", root, err)
	}
	return abs
}

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(path, perm); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}
