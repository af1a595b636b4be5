// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"mu-cli/internal/build"
	"mu-cli/internal/config"
	"mu-cli/internal/coqdep"
	"mu-cli/internal/dag"
	"mu-cli/internal/toolchain"
	"mu-cli/internal/watch"

	"github.com/spf13/cobra"
)

type buildOptions struct {
	dir     string
	dryRun  bool
	jobs    int
	jobsSet bool
	watch   bool
}

func newBuildCommand(app *App, g *globalOptions) *cobra.Command {
	o := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the project in dependency order",
		Long: `Compile every .v file of the project.

coqdep is run once per directory to find the dependencies between files; then
coqc is run once per directory, subdirectories first, with the files of each
directory ordered so that every file comes after the files it requires. The
first failing coqc stops the build.

With --dry-run the coqc command lines are printed instead of run. coqdep still
runs, since the order depends on its output.

With --watch mu stays running and builds the whole project again whenever a .v
file or Gallus.toml changes. Failures are reported and watching continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.jobsSet = cmd.Flags().Changed("jobs")
			if err := runBuild(cmd.Context(), app, g, o); err != nil {
				return app.fail(err, g.verbose)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.dir, "directory", "C", ".", "run as if mu was started in this directory")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "print compiler invocations without running them")
	cmd.Flags().IntVarP(&o.jobs, "jobs", "j", 0, "concurrent coqdep processes, 0 for one per CPU (overrides build.jobs)")
	cmd.Flags().BoolVarP(&o.watch, "watch", "w", false, "rebuild whenever sources change")

	return cmd
}

func runBuild(ctx context.Context, app *App, g *globalOptions, o *buildOptions) error {
	cfg, err := app.loadConfig(ctx, g)
	if err != nil {
		return err
	}
	if o.jobsSet {
		if o.jobs < 0 {
			return fmt.Errorf("--jobs must not be negative, got %d", o.jobs)
		}
		cfg.Build.Jobs = o.jobs
	}

	if o.watch {
		return watchProject(ctx, app, g, cfg, o)
	}
	return buildProject(ctx, app, cfg, o)
}

// buildProject runs one complete build from a fresh scan of the project.
func buildProject(ctx context.Context, app *App, cfg *config.Config, o *buildOptions) error {
	ws, err := app.openWorkspace(cfg, o.dir)
	if err != nil {
		return err
	}

	graph, err := extractGraph(ctx, app, ws)
	if err != nil {
		return err
	}

	runner := app.Runner
	if o.dryRun {
		runner = toolchain.NewPrinter(app.stdout)
	}
	if err := build.New(ws.compiler, runner).Run(ctx, ws.tree, graph); err != nil {
		return classifyPipelineError(err, stageCompile)
	}

	if !o.dryRun {
		fmt.Fprintf(app.stdout, "%s Built %s %s\n",
			SuccessStyle.Render("✓"), TitleStyle.Render(ws.manifest.Name), SubtitleStyle.Render(ws.manifest.Version))
	}
	return nil
}

// watchProject builds once, then again after every change to the project's
// sources, until ctx is canceled.
func watchProject(ctx context.Context, app *App, g *globalOptions, cfg *config.Config, o *buildOptions) error {
	ws, err := app.openWorkspace(cfg, o.dir)
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context) {
		if err := buildProject(ctx, app, cfg, o); err != nil && ctx.Err() == nil {
			app.report(err, g.verbose)
		}
	}

	w, err := watch.New(watch.Config{
		Root: ws.tree.Root(),
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("changed:"), strings.Join(changed, ", "))
			rebuild(ctx)
			return nil
		},
	})
	if err != nil {
		return err
	}

	rebuild(ctx)
	fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("watching"), CmdStyle.Render(ws.tree.Root()))
	return w.Run(ctx)
}

// extractGraph runs the dependency analyzer over the whole workspace.
func extractGraph(ctx context.Context, app *App, ws *workspace) (*dag.Graph, error) {
	graph, err := coqdep.New(ws.analyzer, app.Runner, coqdep.WithJobs(ws.jobs)).Run(ctx, ws.tree)
	if err != nil {
		return nil, classifyPipelineError(err, stageAnalyze)
	}
	return graph, nil
}
