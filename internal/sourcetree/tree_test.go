// SPDX-License-Identifier: MPL-2.0

package sourcetree

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"mu-cli/internal/testutil"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func TestFromRoot_EmptyRootIsPresent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	tree, err := FromRoot(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tree.IsDir(root) {
		t.Fatalf("root %s missing from tree", root)
	}
	if got := tree.Children(root); len(got) != 0 {
		t.Errorf("expected no children, got %v", got)
	}
	if tree.Len() != 1 {
		t.Errorf("expected 1 directory, got %d", tree.Len())
	}
}

func TestFromRoot_DropsDirectoriesWithoutSources(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, "README.md", "docs/index.md", "docs/img/logo.png", "a.v")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	tree, err := FromRoot(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, dir := range []string{"docs", "docs/img", "empty"} {
		if tree.IsDir(filepath.Join(root, dir)) {
			t.Errorf("directory %s should have been pruned", dir)
		}
	}
	want := []string{filepath.Join(root, "a.v")}
	if got := tree.Children(root); !slices.Equal(got, want) {
		t.Errorf("expected children %v, got %v", want, got)
	}
}

func TestFromRoot_NestedDirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, "top.v", "a/x.v", "a/b/y.v", "a/b/notes.txt", "c/z.vo")

	tree, err := FromRoot(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := filepath.Join(root, "a")
	b := filepath.Join(a, "b")

	if !tree.IsDir(a) || !tree.IsDir(b) {
		t.Fatalf("expected a and a/b in tree")
	}
	if tree.IsDir(filepath.Join(root, "c")) {
		t.Errorf("c only holds compiled objects and should be pruned")
	}

	wantRoot := []string{a, filepath.Join(root, "top.v")}
	if got := tree.Children(root); !slices.Equal(got, wantRoot) {
		t.Errorf("root children: expected %v, got %v", wantRoot, got)
	}
	if got := tree.Subdirs(a); !slices.Equal(got, []string{b}) {
		t.Errorf("a subdirs: expected [%s], got %v", b, got)
	}
	if got := tree.Files(a); !slices.Equal(got, []string{filepath.Join(a, "x.v")}) {
		t.Errorf("a files: got %v", got)
	}

	wantDirs := []string{b, a, root}
	if got := tree.Dirs(); !slices.Equal(got, wantDirs) {
		t.Errorf("post-order: expected %v, got %v", wantDirs, got)
	}
}

func TestFromRoot_MissingRoot(t *testing.T) {
	t.Parallel()
	_, err := FromRoot(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestFromRoot_RootIsFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, "a.v")

	if _, err := FromRoot(filepath.Join(root, "a.v")); err == nil {
		t.Fatal("expected error when root is a file")
	}
}

func TestChildren_ReturnsCopy(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFiles(t, root, "a.v")

	tree, err := FromRoot(root)
	if err != nil {
		t.Fatal(err)
	}
	got := tree.Children(root)
	got[0] = "mutated"
	if tree.Children(root)[0] == "mutated" {
		t.Error("Children must not expose internal state")
	}
}

func TestFromRoot_SkipsSymlinks(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("creating symlinks needs elevated privileges on Windows")
	}
	root := t.TempDir()
	writeFiles(t, root, "lib/a.v", "top.v", "real.v")
	for link, target := range map[string]string{
		"self":   ".",
		"alias":  "lib",
		"link.v": "real.v",
	} {
		if err := os.Symlink(target, filepath.Join(root, link)); err != nil {
			t.Fatalf("symlink %s: %v", link, err)
		}
	}

	tree, err := FromRoot(root)
	if err != nil {
		t.Fatalf("a link back into the tree must not break the scan: %v", err)
	}
	lib := filepath.Join(root, "lib")
	if want := []string{lib, root}; !slices.Equal(tree.Dirs(), want) {
		t.Errorf("expected only real directories %v, got %v", want, tree.Dirs())
	}
	want := []string{lib, filepath.Join(root, "real.v"), filepath.Join(root, "top.v")}
	if got := tree.Children(root); !slices.Equal(got, want) {
		t.Errorf("expected children %v, got %v", want, got)
	}
}

func TestFromRoot_RelativeRootIsMadeAbsolute(t *testing.T) {
	// Changes the working directory; must not run in parallel.
	parent := t.TempDir()
	writeFiles(t, parent, "proj/sub/x.v")
	defer testutil.MustChdir(t, parent)()

	tree, err := FromRoot("proj")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(tree.Root()) {
		t.Fatalf("expected an absolute root, got %s", tree.Root())
	}
	for _, dir := range tree.Dirs() {
		for _, child := range tree.Children(dir) {
			if !filepath.IsAbs(child) {
				t.Errorf("expected absolute paths, got %s", child)
			}
		}
	}
}
