// SPDX-License-Identifier: MPL-2.0

package sourcetree

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

const (
	// SourceExt is the extension of recognized source units.
	SourceExt = ".v"
	// ObjectExt is the extension of the compiled object produced from a source unit.
	ObjectExt = ".vo"
)

// Tree maps every directory that transitively contains a source unit to its
// direct children. The root is always present, even when it has no children.
type Tree struct {
	root     string
	children map[string][]string
}

// FromRoot scans root recursively. Subdirectories are visited before their
// parent records them, and a subdirectory is only kept when its own scan found
// at least one child. Symbolic links below root are not followed. The root is
// made absolute so paths in the tree stay valid from any working directory.
func FromRoot(root string) (*Tree, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scan source tree: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan source tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan source tree: %s is not a directory", root)
	}

	t := &Tree{root: root, children: make(map[string][]string)}
	files, err := t.scan(root)
	if err != nil {
		return nil, err
	}
	t.children[root] = files
	return t, nil
}

func (t *Tree) scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan source tree: %w", err)
	}

	var children []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		// A link may loop back into the tree or alias a directory that is
		// scanned anyway.
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		if entry.IsDir() {
			sub, err := t.scan(path)
			if err != nil {
				return nil, err
			}
			if len(sub) > 0 {
				t.children[path] = sub
				children = append(children, path)
			}
			continue
		}

		if filepath.Ext(path) == SourceExt {
			children = append(children, path)
		}
	}
	return children, nil
}

// Root returns the absolute, cleaned root path the tree was built from.
func (t *Tree) Root() string { return t.root }

// Len returns the number of directories in the tree, root included.
func (t *Tree) Len() int { return len(t.children) }

// IsDir reports whether path is a directory registered in the tree.
func (t *Tree) IsDir(path string) bool {
	_, ok := t.children[path]
	return ok
}

// Children returns the direct children of dir in scan order, or nil when dir
// is not part of the tree.
func (t *Tree) Children(dir string) []string {
	return slices.Clone(t.children[dir])
}

// Files returns the source files directly inside dir.
func (t *Tree) Files(dir string) []string {
	var files []string
	for _, child := range t.children[dir] {
		if !t.IsDir(child) {
			files = append(files, child)
		}
	}
	return files
}

// Subdirs returns the registered subdirectories directly inside dir.
func (t *Tree) Subdirs(dir string) []string {
	var dirs []string
	for _, child := range t.children[dir] {
		if t.IsDir(child) {
			dirs = append(dirs, child)
		}
	}
	return dirs
}

// Dirs returns every directory in post-order: a directory always appears
// after all of its descendants, and siblings keep scan order.
func (t *Tree) Dirs() []string {
	dirs := make([]string, 0, len(t.children))
	var visit func(dir string)
	visit = func(dir string) {
		for _, sub := range t.Subdirs(dir) {
			visit(sub)
		}
		dirs = append(dirs, dir)
	}
	visit(t.root)
	return dirs
}
