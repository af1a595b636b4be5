// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the mu command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "mu",
		Short: "A dependency-aware build orchestrator for Coq projects",
		Long: TitleStyle.Render("mu") + SubtitleStyle.Render(" - A dependency-aware build orchestrator for Coq projects") + `

mu scans the project rooted at the nearest Gallus.toml, asks coqdep how the
.v files depend on each other, and runs coqc on every directory in an order
where each file is compiled after everything it requires.

` + SubtitleStyle.Render("Examples:") + `
  mu build               Compile the project
  mu build --dry-run     Print the coqc command lines instead of running them
  mu deps --format yaml  Show the dependency graph and the compilation order
  mu tree                Show the discovered source tree
  mu config show         Show the effective configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/mu/config.cue)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text, logfmt or json (overrides log.format)")

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.AddCommand(newBuildCommand(app, opts))
	rootCmd.AddCommand(newDepsCommand(app, opts))
	rootCmd.AddCommand(newTreeCommand(app, opts))
	rootCmd.AddCommand(newConfigCommand(app, opts))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting status.
// It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		os.Exit(exitCode(err))
	}
}

// errorHandler keeps the interrupt message short and defers to fang's styling
// for everything else.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, WarningStyle.Render("interrupted"))
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
