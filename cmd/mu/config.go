// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"mu-cli/internal/config"
	"mu-cli/internal/issue"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App, g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mu configuration",
		Long: `Inspect and create the mu configuration file.

The configuration is a CUE file, by default at $XDG_CONFIG_HOME/mu/config.cue.
Every key can also be set from the environment, e.g. MU_TOOLS_COMPILER or
MU_BUILD_JOBS.`,
	}

	cmd.AddCommand(newConfigShowCommand(app, g))
	cmd.AddCommand(newConfigPathCommand(app, g))
	cmd.AddCommand(newConfigInitCommand(app))

	return cmd
}

func newConfigShowCommand(app *App, g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := config.LoadOptions{ConfigFilePath: g.configPath}
			cfg, err := app.Config.Load(cmd.Context(), opts)
			if err != nil {
				return app.fail(newServiceError(err, issue.ConfigLoadFailedId, ""), g.verbose)
			}

			w := app.stdout
			fmt.Fprintln(w, TitleStyle.Render("Configuration"))
			path, found, err := config.Source(opts)
			switch {
			case err != nil:
				fmt.Fprintf(w, "  %s\n\n", WarningStyle.Render(err.Error()))
			case !found:
				fmt.Fprintf(w, "  %s %s\n\n", CmdStyle.Render(path), SubtitleStyle.Render("(using defaults)"))
			default:
				fmt.Fprintf(w, "  %s\n\n", CmdStyle.Render(path))
			}

			rows := []struct{ key, value string }{
				{"tools.analyzer", cfg.Tools.Analyzer.String()},
				{"tools.compiler", cfg.Tools.Compiler.String()},
				{"build.jobs", jobsLabel(cfg.Build.Jobs)},
				{"log.level", string(cfg.Log.Level)},
				{"log.format", string(cfg.Log.Format)},
				{"ui.verbose", fmt.Sprint(cfg.UI.Verbose)},
			}
			for _, r := range rows {
				fmt.Fprintf(w, "  %-16s %s\n", SubtitleStyle.Render(r.key), r.value)
			}
			return nil
		},
	}
}

func newConfigPathCommand(app *App, g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.FilePath(config.LoadOptions{ConfigFilePath: g.configPath})
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	}
}

func newConfigInitCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long:  "Write the default configuration to the mu configuration directory. An existing file is left untouched.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, created, err := config.CreateDefaultConfig(dir)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("Configuration already exists:"), CmdStyle.Render(path))
				return nil
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓ Created"), CmdStyle.Render(path))
			return nil
		},
	}
}

func jobsLabel(jobs int) string {
	if jobs == 0 {
		return "0 (one per CPU)"
	}
	return fmt.Sprint(jobs)
}
