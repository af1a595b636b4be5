// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"fmt"
	"log/slog"

	"mu-cli/internal/dag"
	"mu-cli/internal/namespace"
	"mu-cli/internal/sourcetree"
	"mu-cli/internal/toolchain"
)

type (
	// Builder compiles a source tree directory by directory, dependencies first.
	Builder struct {
		tool   toolchain.Tool
		runner toolchain.Runner
	}

	// Step is the ordered file list of one directory.
	Step struct {
		Dir   string   `json:"dir" yaml:"dir"`
		Files []string `json:"files" yaml:"files"`
	}

	// OrderError attributes an ordering failure to the directory being built.
	OrderError struct {
		Dir string
		Err error
	}
)

// Error implements the error interface.
func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s: %v", e.Dir, e.Err)
}

// Unwrap returns the underlying failure.
func (e *OrderError) Unwrap() error { return e.Err }

// New creates a Builder that invokes the compiler tool through runner.
func New(tool toolchain.Tool, runner toolchain.Runner) *Builder {
	return &Builder{tool: tool, runner: runner}
}

// Run compiles every directory of tree in post-order. The first failing
// compiler invocation aborts the build; nothing after it is started.
func (b *Builder) Run(ctx context.Context, tree *sourcetree.Tree, graph *dag.Graph) error {
	compiled, err := b.compileDir(ctx, tree, graph, tree.Root(), nil)
	if err != nil {
		return err
	}
	slog.Info("build finished", "directories", len(compiled))
	return nil
}

// compileDir builds dir after its subdirectories. known lists the directories
// compiled before dir was entered; the result lists the directories compiled
// by this call, dir last.
func (b *Builder) compileDir(ctx context.Context, tree *sourcetree.Tree, graph *dag.Graph, dir string, known []string) ([]string, error) {
	var compiled []string
	var files []string
	for _, child := range tree.Children(dir) {
		if !tree.IsDir(child) {
			files = append(files, child)
			continue
		}
		seen := append(append([]string(nil), known...), compiled...)
		sub, err := b.compileDir(ctx, tree, graph, child, seen)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, sub...)
	}

	if len(files) > 0 {
		ordered, err := graph.Order(files)
		if err != nil {
			return nil, &OrderError{Dir: dir, Err: err}
		}
		slog.Debug("compilation order", "dir", dir, "files", ordered)

		inv, err := b.Invocation(tree, dir, append(append([]string(nil), known...), compiled...), ordered)
		if err != nil {
			return nil, err
		}
		if _, err := toolchain.Execute(ctx, b.runner, inv); err != nil {
			return nil, err
		}
		slog.Info("compiled", "dir", dir, "files", len(ordered))
	} else {
		slog.Debug("no source files, skipping compiler", "dir", dir)
	}

	return append(compiled, dir), nil
}

// Invocation builds the compiler call for dir: a -R self mapping unless dir is
// the root, a -R mapping for every directory compiled before it, then the
// ordered files.
func (b *Builder) Invocation(tree *sourcetree.Tree, dir string, compiled, ordered []string) (toolchain.Invocation, error) {
	var mappings []namespace.Mapping
	if dir != tree.Root() {
		self, err := namespace.Recursive(tree.Root(), dir)
		if err != nil {
			return toolchain.Invocation{}, err
		}
		mappings = append(mappings, self)
	}
	for _, d := range compiled {
		m, err := namespace.Recursive(tree.Root(), d)
		if err != nil {
			return toolchain.Invocation{}, err
		}
		mappings = append(mappings, m)
	}

	args := namespace.Args(mappings)
	args = append(args, ordered...)
	return toolchain.Invocation{Tool: b.tool, Args: args, Dir: tree.Root()}, nil
}

// Plan returns the compilation order of every directory without running
// anything, in the order Run would compile them. Directories without files
// are omitted.
func Plan(tree *sourcetree.Tree, graph *dag.Graph) ([]Step, error) {
	var steps []Step
	for _, dir := range tree.Dirs() {
		files := tree.Files(dir)
		if len(files) == 0 {
			continue
		}
		ordered, err := graph.Order(files)
		if err != nil {
			return nil, &OrderError{Dir: dir, Err: err}
		}
		steps = append(steps, Step{Dir: dir, Files: ordered})
	}
	return steps, nil
}

