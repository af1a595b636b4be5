// SPDX-License-Identifier: MPL-2.0

// Package namespace maps physical directories to the dot-separated logical
// names the toolchain uses to resolve module references.
package namespace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// RecursiveFlag binds a directory and all of its subdirectories to a logical prefix.
	RecursiveFlag = "-R"
	// QualifiedFlag binds a directory to a logical prefix without making its
	// modules loadable by their short name.
	QualifiedFlag = "-Q"
)

// ErrNotUnderRoot is the sentinel error wrapped by NotUnderRootError.
var ErrNotUnderRoot = errors.New("path is not under project root")

type (
	// NotUnderRootError is returned when a path cannot be expressed relative to the project root.
	NotUnderRootError struct {
		Root string
		Path string
	}

	// Mapping is one namespace binding passed to an external tool.
	Mapping struct {
		Flag    string
		Path    string
		Logical string
	}
)

// Error implements the error interface.
func (e *NotUnderRootError) Error() string {
	return fmt.Sprintf("%s is not under project root %s", e.Path, e.Root)
}

// Unwrap returns ErrNotUnderRoot for errors.Is() compatibility.
func (e *NotUnderRootError) Unwrap() error { return ErrNotUnderRoot }

// LogicalName joins the components of path strictly below root with dots.
// The root itself maps to the empty name.
func LogicalName(root, path string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return "", &NotUnderRootError{Root: root, Path: path}
	}
	if rel == "." {
		return "", nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", &NotUnderRootError{Root: root, Path: path}
	}
	return strings.Join(strings.Split(rel, string(filepath.Separator)), "."), nil
}

// Recursive builds a -R mapping binding dir to its logical name under root.
func Recursive(root, dir string) (Mapping, error) {
	name, err := LogicalName(root, dir)
	if err != nil {
		return Mapping{}, err
	}
	return Mapping{Flag: RecursiveFlag, Path: dir, Logical: name}, nil
}

// Qualified builds a -Q mapping binding dir to the given logical name.
func Qualified(dir, logical string) Mapping {
	return Mapping{Flag: QualifiedFlag, Path: dir, Logical: logical}
}

// Args renders the mapping as the three argv entries a tool expects.
func (m Mapping) Args() []string {
	return []string{m.Flag, m.Path, m.Logical}
}

// String renders the mapping for log output.
func (m Mapping) String() string {
	return fmt.Sprintf("%s %s %q", m.Flag, m.Path, m.Logical)
}

// Args flattens a list of mappings into argv entries, preserving order.
func Args(mappings []Mapping) []string {
	args := make([]string, 0, 3*len(mappings))
	for _, m := range mappings {
		args = append(args, m.Args()...)
	}
	return args
}
