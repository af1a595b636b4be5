// SPDX-License-Identifier: MPL-2.0

package coqdep

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"mu-cli/internal/dag"
	"mu-cli/internal/namespace"
	"mu-cli/internal/sourcetree"
	"mu-cli/internal/toolchain"

	"golang.org/x/sync/errgroup"
)

type (
	// Extractor runs the dependency analyzer over a source tree.
	Extractor struct {
		tool   toolchain.Tool
		runner toolchain.Runner
		jobs   int
	}

	// Option configures an Extractor.
	Option func(*Extractor)

	// DirError attributes an extraction failure to the directory being analyzed.
	DirError struct {
		Dir string
		Err error
	}
)

// Error implements the error interface.
func (e *DirError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Dir, e.Err)
}

// Unwrap returns the underlying failure.
func (e *DirError) Unwrap() error { return e.Err }

// WithJobs bounds how many analyzer processes run at once.
// Values below 1 select the number of CPUs.
func WithJobs(n int) Option {
	return func(e *Extractor) { e.jobs = n }
}

// New creates an Extractor that invokes tool through runner.
func New(tool toolchain.Tool, runner toolchain.Runner, opts ...Option) *Extractor {
	e := &Extractor{tool: tool, runner: runner}
	for _, opt := range opts {
		opt(e)
	}
	if e.jobs < 1 {
		e.jobs = runtime.NumCPU()
	}
	return e
}

// Invocation builds the analyzer call for dir: a -R mapping per subdirectory,
// a -Q binding of dir itself to the empty namespace unless dir is the root,
// then the source files of dir.
func (e *Extractor) Invocation(tree *sourcetree.Tree, dir string) (toolchain.Invocation, error) {
	var mappings []namespace.Mapping
	for _, sub := range tree.Subdirs(dir) {
		m, err := namespace.Recursive(tree.Root(), sub)
		if err != nil {
			return toolchain.Invocation{}, err
		}
		mappings = append(mappings, m)
	}
	if dir != tree.Root() {
		mappings = append(mappings, namespace.Qualified(dir, ""))
	}

	args := namespace.Args(mappings)
	args = append(args, tree.Files(dir)...)
	return toolchain.Invocation{Tool: e.tool, Args: args, Dir: tree.Root()}, nil
}

// Run analyzes every directory of tree and merges the reported relations into
// one graph. Directories are independent, so analyzer processes run in
// parallel; the results are merged in post-order, which makes the graph
// identical to a sequential bottom-up run. Any failure cancels the remaining
// work and no graph is returned.
func (e *Extractor) Run(ctx context.Context, tree *sourcetree.Tree) (*dag.Graph, error) {
	dirs := tree.Dirs()
	results := make([][]Rule, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.jobs)
	for i, dir := range dirs {
		g.Go(func() error {
			rules, err := e.analyze(gctx, tree, dir)
			if err != nil {
				return &DirError{Dir: dir, Err: err}
			}
			results[i] = rules
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph := dag.New()
	for i, rules := range results {
		for _, rule := range rules {
			for _, product := range rule.Products {
				for _, dep := range rule.Dependencies {
					graph.AddEdge(dep, product)
				}
			}
		}
		slog.Debug("merged analyzer results", "dir", dirs[i], "rules", len(rules))
	}
	slog.Info("dependency graph ready", "units", len(graph.Nodes()), "edges", graph.EdgeCount())
	return graph, nil
}

func (e *Extractor) analyze(ctx context.Context, tree *sourcetree.Tree, dir string) ([]Rule, error) {
	files := tree.Files(dir)
	if len(files) == 0 {
		slog.Debug("no source files, skipping analyzer", "dir", dir)
		return nil, nil
	}

	inv, err := e.Invocation(tree, dir)
	if err != nil {
		return nil, err
	}
	res, err := toolchain.Execute(ctx, e.runner, inv)
	if err != nil {
		return nil, err
	}
	return Parse(res.Output)
}
