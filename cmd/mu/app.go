// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mu-cli/internal/config"
	"mu-cli/internal/issue"
	"mu-cli/internal/logging"
	"mu-cli/internal/project"
	"mu-cli/internal/sourcetree"
	"mu-cli/internal/toolchain"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// for the CLI layer: every Cobra handler receives an App and reaches
	// configuration and external processes only through it.
	App struct {
		Config ConfigProvider
		Runner toolchain.Runner
		Getenv func(string) string
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Runner toolchain.Runner
		Getenv func(string) string
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// globalOptions holds the persistent flags shared by every subcommand.
	globalOptions struct {
		verbose    bool
		configPath string
		logFormat  string
	}

	// workspace is everything a command needs to run the pipeline on one project.
	workspace struct {
		manifest *project.Manifest
		tree     *sourcetree.Tree
		analyzer toolchain.Tool
		compiler toolchain.Tool
		jobs     int
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Runner == nil {
		deps.Runner = toolchain.NewExecRunner()
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}

	return &App{
		Config: deps.Config,
		Runner: deps.Runner,
		Getenv: deps.Getenv,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig loads configuration and installs the logger it selects. Flags
// win over configured values.
func (a *App) loadConfig(ctx context.Context, opts *globalOptions) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: opts.configPath})
	if err != nil {
		return nil, newServiceError(err, issue.ConfigLoadFailedId, "")
	}

	level := string(cfg.Log.Level)
	if opts.verbose || cfg.UI.Verbose {
		level = string(config.LogLevelDebug)
	}
	format := string(cfg.Log.Format)
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	logger, err := logging.New(a.stderr, logging.Options{Level: level, Format: format})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return cfg, nil
}

// openWorkspace finds the project enclosing dir, reads its manifest and
// source tree, and resolves the configured tools.
func (a *App) openWorkspace(cfg *config.Config, dir string) (*workspace, error) {
	root, err := project.FindRoot(dir)
	if err != nil {
		if errors.Is(err, project.ErrManifestNotFound) {
			return nil, newServiceError(issue.NewErrorContext().
				WithOperation("find project").
				WithResource(dir).
				WithSuggestion("Run mu inside a directory containing "+project.ManifestFileName).
				Wrap(err).
				BuildError(), issue.ManifestNotFoundId, "")
		}
		return nil, err
	}

	manifest, err := project.Load(root)
	if err != nil {
		return nil, newServiceError(issue.NewErrorContext().
			WithOperation("load manifest").
			WithResource(root).
			Wrap(err).
			BuildError(), issue.ManifestInvalidId, "")
	}

	tree, err := sourcetree.FromRoot(root)
	if err != nil {
		return nil, newServiceError(issue.WrapWithOperation(err, "scan project sources"), issue.SourceTreeUnreadableId, "")
	}

	analyzer, err := cfg.Tools.Analyzer.Tool(a.Getenv)
	if err != nil {
		return nil, newServiceError(fmt.Errorf("tools.analyzer: %w", err), issue.ConfigLoadFailedId, "")
	}
	compiler, err := cfg.Tools.Compiler.Tool(a.Getenv)
	if err != nil {
		return nil, newServiceError(fmt.Errorf("tools.compiler: %w", err), issue.ConfigLoadFailedId, "")
	}

	slog.Debug("workspace opened", "root", root, "package", manifest.Name, "directories", tree.Len())
	return &workspace{
		manifest: manifest,
		tree:     tree,
		analyzer: analyzer,
		compiler: compiler,
		jobs:     cfg.Build.Jobs,
	}, nil
}

// fail renders what the CLI knows about err beyond its one-line message and
// returns it for Cobra, which prints that message.
func (a *App) fail(err error, verbose bool) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(a.stderr, svcErr)
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		if details := strings.TrimPrefix(ae.Format(verbose), ae.Error()); strings.TrimSpace(details) != "" {
			fmt.Fprintln(a.stderr, strings.TrimLeft(details, "\n"))
		}
	}
	return err
}

// report prints a failure that does not end the command, such as a failed
// rebuild in watch mode.
func (a *App) report(err error, verbose bool) {
	_ = a.fail(err, verbose)
	fmt.Fprintf(a.stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
}
