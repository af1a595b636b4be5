// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mu-cli/internal/build"
	"mu-cli/internal/dag"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type (
	depsOptions struct {
		dir    string
		format string
	}

	// depsReport is the machine-readable output of `mu deps`. Paths are
	// relative to the project root.
	depsReport struct {
		Package string       `json:"package" yaml:"package"`
		Version string       `json:"version" yaml:"version"`
		Units   []unitDeps   `json:"units" yaml:"units"`
		Order   []build.Step `json:"order" yaml:"order"`
	}

	unitDeps struct {
		Unit     string   `json:"unit" yaml:"unit"`
		Requires []string `json:"requires" yaml:"requires"`
	}
)

func newDepsCommand(app *App, g *globalOptions) *cobra.Command {
	o := &depsOptions{}

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Show the dependency graph and the compilation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch o.format {
			case formatText, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unknown format %q (valid: text, json, yaml)", o.format)
			}
			if err := runDeps(cmd.Context(), app, g, o); err != nil {
				return app.fail(err, g.verbose)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.dir, "directory", "C", ".", "run as if mu was started in this directory")
	cmd.Flags().StringVarP(&o.format, "format", "o", formatText, "output format: text, json or yaml")

	return cmd
}

func runDeps(ctx context.Context, app *App, g *globalOptions, o *depsOptions) error {
	cfg, err := app.loadConfig(ctx, g)
	if err != nil {
		return err
	}
	ws, err := app.openWorkspace(cfg, o.dir)
	if err != nil {
		return err
	}
	graph, err := extractGraph(ctx, app, ws)
	if err != nil {
		return err
	}
	steps, err := build.Plan(ws.tree, graph)
	if err != nil {
		return classifyPipelineError(err, stageCompile)
	}

	report := newDepsReport(ws, graph, steps)
	switch o.format {
	case formatJSON:
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatYAML:
		enc := yaml.NewEncoder(app.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		writeDepsText(app.stdout, report)
		return nil
	}
}

func newDepsReport(ws *workspace, graph *dag.Graph, steps []build.Step) depsReport {
	root := ws.tree.Root()
	report := depsReport{
		Package: ws.manifest.Name,
		Version: ws.manifest.Version,
		Units:   []unitDeps{},
		Order:   make([]build.Step, 0, len(steps)),
	}

	requires := make(map[string][]string)
	for _, dep := range graph.Nodes() {
		for _, product := range graph.Dependents(dep) {
			requires[product] = append(requires[product], relPath(root, dep))
		}
	}
	for _, unit := range graph.Nodes() {
		if deps, ok := requires[unit]; ok {
			report.Units = append(report.Units, unitDeps{Unit: relPath(root, unit), Requires: deps})
		}
	}

	for _, step := range steps {
		files := make([]string, len(step.Files))
		for i, f := range step.Files {
			files[i] = relPath(root, f)
		}
		report.Order = append(report.Order, build.Step{Dir: relPath(root, step.Dir), Files: files})
	}
	return report
}

func writeDepsText(w io.Writer, report depsReport) {
	fmt.Fprintf(w, "%s %s\n\n", TitleStyle.Render(report.Package), SubtitleStyle.Render(report.Version))

	fmt.Fprintln(w, TitleStyle.Render("Dependencies"))
	if len(report.Units) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none)"))
	}
	for _, u := range report.Units {
		fmt.Fprintf(w, "  %s ← %s\n", CmdStyle.Render(u.Unit), strings.Join(u.Requires, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Compilation order"))
	if len(report.Order) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(nothing to compile)"))
	}
	for i, step := range report.Order {
		fmt.Fprintf(w, "  %d. %s\n", i+1, CmdStyle.Render(step.Dir+"/"))
		for _, f := range step.Files {
			fmt.Fprintf(w, "     %s\n", f)
		}
	}
}

// relPath shows p relative to root when it lies inside it.
func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}
