// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"mu-cli/internal/config"
	"mu-cli/internal/issue"
	"mu-cli/internal/project"
	"mu-cli/internal/testutil"
	"mu-cli/internal/testutil/toolchaintest"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// Command tests install a process-wide slog logger through App.loadConfig, so
// they do not run in parallel.

type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	return &cfg, nil
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, deps Dependencies, args ...string) cliResult {
	t.Helper()
	return runCLIContext(t, context.Background(), deps, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, deps Dependencies, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	deps.Stdout, deps.Stderr = &stdout, &stderr
	if deps.Config == nil {
		deps.Config = staticConfig{cfg: config.DefaultConfig()}
	}
	if deps.Getenv == nil {
		deps.Getenv = func(string) string { return "" }
	}

	root := NewRootCommand(NewApp(deps))
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// chainProject lays out y.v requiring x/x.v and a runner whose analyzer
// reports exactly that.
func chainProject(t *testing.T, extra ...toolchaintest.Rule) (root string, runner *toolchaintest.Runner) {
	t.Helper()
	root = testutil.Project(t, "x/x.v", "y.v")
	x, y := filepath.Join(root, "x", "x.v"), filepath.Join(root, "y.v")
	rules := append([]toolchaintest.Rule{toolchaintest.Respond("coqdep", y, y+"o : "+x+"o\n")}, extra...)
	return root, toolchaintest.NewRunner(rules...)
}

func requireIssue(t *testing.T, err error, want issue.Id) {
	t.Helper()
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if svcErr.IssueID != want {
		t.Errorf("IssueID = %d, want %d", svcErr.IssueID, want)
	}
}

func TestBuildCommand(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "build", "-C", root)
	if res.err != nil {
		t.Fatalf("unexpected error: %v\n%s", res.err, res.stderr)
	}

	var compiled []string
	for _, c := range runner.CallsTo("coqc") {
		compiled = append(compiled, filepath.Base(c.Args[len(c.Args)-1]))
	}
	if want := []string{"x.v", "y.v"}; !slices.Equal(compiled, want) {
		t.Errorf("compiled %v, want %v", compiled, want)
	}
	if !strings.Contains(res.stdout, "Built") || !strings.Contains(res.stdout, "fixture") {
		t.Errorf("expected a success line naming the package, got %q", res.stdout)
	}
}

func TestBuildCommand_FromSubdirectory(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "build", "-C", filepath.Join(root, "x"))
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if n := len(runner.CallsTo("coqc")); n != 2 {
		t.Errorf("expected the whole project to be built, got %d compiler calls", n)
	}
}

func TestBuildCommand_DryRun(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "build", "--dry-run", "-C", root)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if n := len(runner.CallsTo("coqc")); n != 0 {
		t.Errorf("dry run must not spawn the compiler, got %d calls", n)
	}
	if n := len(runner.CallsTo("coqdep")); n == 0 {
		t.Error("dry run still needs the analyzer")
	}

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two printed compiler commands, got %q", res.stdout)
	}
	if !strings.Contains(lines[0], "x.v") || !strings.Contains(lines[1], "y.v") {
		t.Errorf("expected x.v before y.v, got %q", res.stdout)
	}
}

func TestBuildCommand_CompilerFailure(t *testing.T) {
	root := testutil.Project(t, "x/x.v", "y.v")
	x, y := filepath.Join(root, "x", "x.v"), filepath.Join(root, "y.v")
	runner := toolchaintest.NewRunner(
		toolchaintest.Respond("coqdep", y, y+"o : "+x+"o\n"),
		toolchaintest.FailOn("coqc", x, 1),
	)

	res := runCLI(t, Dependencies{Runner: runner}, "build", "-C", root)
	requireIssue(t, res.err, issue.CompilerFailedId)
	if !strings.Contains(res.stderr, "cannot build") {
		t.Errorf("expected compiler diagnostics on stderr, got %q", res.stderr)
	}
	if n := len(runner.CallsTo("coqc")); n != 1 {
		t.Errorf("expected the build to stop after the first failure, got %d calls", n)
	}
}

func TestBuildCommand_Watch(t *testing.T) {
	if testing.Short() {
		t.Skip("watches the filesystem")
	}
	root, runner := chainProject(t)
	compiled := func() int { return len(runner.CallsTo("coqc")) }
	waitFor := func(n int) {
		t.Helper()
		deadline := time.Now().Add(10 * time.Second)
		for compiled() < n {
			if time.Now().After(deadline) {
				t.Fatalf("expected at least %d compiler calls, got %d", n, compiled())
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan cliResult, 1)
	go func() { done <- runCLIContext(t, ctx, Dependencies{Runner: runner}, "build", "--watch", "-C", root) }()

	waitFor(2)
	if err := os.WriteFile(filepath.Join(root, "y.v"), []byte("Require x.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(4)
	cancel()

	res := <-done
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if !strings.Contains(res.stdout, "y.v") || !strings.Contains(res.stdout, "watching") {
		t.Errorf("expected the watch banner and the changed file, got %q", res.stdout)
	}
}

func TestBuildCommand_Cycle(t *testing.T) {
	root := testutil.Project(t, "a.v", "b.v")
	a, b := filepath.Join(root, "a.v"), filepath.Join(root, "b.v")
	runner := toolchaintest.NewRunner(
		toolchaintest.Respond("coqdep", a, a+"o : "+b+"\n"+b+"o : "+a+"\n"),
	)

	res := runCLI(t, Dependencies{Runner: runner}, "build", "-C", root)
	requireIssue(t, res.err, issue.DependencyCycleId)
	if len(runner.CallsTo("coqc")) != 0 {
		t.Error("nothing may be compiled when the graph has a cycle")
	}
}

func TestBuildCommand_NoManifest(t *testing.T) {
	dir := t.TempDir()
	if _, err := project.FindRoot(dir); err == nil {
		t.Skip("a manifest exists above the temporary directory")
	}

	res := runCLI(t, Dependencies{Runner: toolchaintest.NewRunner()}, "build", "-C", dir)
	requireIssue(t, res.err, issue.ManifestNotFoundId)
	if !errors.Is(res.err, project.ErrManifestNotFound) {
		t.Errorf("expected ErrManifestNotFound in the chain, got %v", res.err)
	}
	if !strings.Contains(res.stderr, project.ManifestFileName) {
		t.Errorf("expected a suggestion naming %s, got %q", project.ManifestFileName, res.stderr)
	}
}

func TestBuildCommand_ConfigFailure(t *testing.T) {
	root, runner := chainProject(t)
	loadErr := errors.New("config file not found")

	res := runCLI(t, Dependencies{Runner: runner, Config: staticConfig{err: loadErr}}, "build", "-C", root)
	requireIssue(t, res.err, issue.ConfigLoadFailedId)
	if len(runner.Calls()) != 0 {
		t.Error("no tool may run without configuration")
	}
}

func TestBuildCommand_ConfiguredTools(t *testing.T) {
	root := testutil.Project(t, "a.v")
	cfg := config.DefaultConfig()
	cfg.Tools.Compiler = "$COQBIN/coqc -q"
	runner := toolchaintest.NewRunner()
	env := func(key string) string {
		if key == "COQBIN" {
			return "/opt/coq/bin"
		}
		return ""
	}

	res := runCLI(t, Dependencies{Runner: runner, Config: staticConfig{cfg: cfg}, Getenv: env}, "build", "-C", root)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	calls := runner.CallsTo("/opt/coq/bin/coqc")
	if len(calls) != 1 {
		t.Fatalf("expected one call to the configured compiler, got %v", runner.Calls())
	}
	if diff := cmp.Diff([]string{"-q"}, calls[0].Tool.Args); diff != "" {
		t.Errorf("tool args mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCommand_NegativeJobs(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "build", "-C", root, "--jobs", "-2")
	if res.err == nil || !strings.Contains(res.err.Error(), "--jobs") {
		t.Errorf("expected a --jobs error, got %v", res.err)
	}
}

func TestDepsCommand_JSON(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "deps", "-C", root, "--format", "json")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}

	var got depsReport
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	want := depsReport{
		Package: "fixture",
		Version: "0.1.0",
		Units:   []unitDeps{{Unit: "y.v", Requires: []string{"x/x.v"}}},
	}
	if diff := cmp.Diff(want.Units, got.Units); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}
	if got.Package != want.Package || got.Version != want.Version {
		t.Errorf("package = %s %s, want %s %s", got.Package, got.Version, want.Package, want.Version)
	}
	if len(got.Order) != 2 || got.Order[0].Dir != "x" || got.Order[1].Dir != "." {
		t.Errorf("expected x then the root in the order, got %+v", got.Order)
	}
	if len(runner.CallsTo("coqc")) != 0 {
		t.Error("deps must not compile anything")
	}
}

func TestDepsCommand_YAML(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "deps", "-C", root, "-o", "yaml")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	var got depsReport
	if err := yaml.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("invalid YAML %q: %v", res.stdout, err)
	}
	if len(got.Order) != 2 || !slices.Equal(got.Order[1].Files, []string{"y.v"}) {
		t.Errorf("unexpected order %+v", got.Order)
	}
}

func TestDepsCommand_Text(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "deps", "-C", root)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	for _, want := range []string{"fixture", "Dependencies", "y.v", "← x/x.v", "Compilation order", "1. x/"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestDepsCommand_UnknownFormat(t *testing.T) {
	root, runner := chainProject(t)

	res := runCLI(t, Dependencies{Runner: runner}, "deps", "-C", root, "--format", "xml")
	if res.err == nil || !strings.Contains(res.err.Error(), "xml") {
		t.Errorf("expected an unknown format error, got %v", res.err)
	}
	if len(runner.Calls()) != 0 {
		t.Error("no tool may run for an invalid format")
	}
}

func TestTreeCommand(t *testing.T) {
	root := testutil.Project(t, "Lib/Core/Base.v", "Main.v")
	testutil.MustMkdirAll(t, filepath.Join(root, "docs"), 0o755)

	res := runCLI(t, Dependencies{Runner: toolchaintest.NewRunner()}, "tree", "-C", root)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	for _, want := range []string{"fixture", "Lib/", "Core/", "Base.v", "Main.v"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("tree missing %q:\n%s", want, res.stdout)
		}
	}
	if strings.Contains(res.stdout, "docs") {
		t.Errorf("directories without sources must not be shown:\n%s", res.stdout)
	}
}

func TestConfigShowCommand(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Build.Jobs = 3
	missing := filepath.Join(t.TempDir(), "absent.cue")

	res := runCLI(t, Dependencies{Config: staticConfig{cfg: cfg}}, "--config", missing, "config", "show")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	for _, want := range []string{"tools.compiler", "coqc", "build.jobs", "3", "(using defaults)"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestConfigShowCommand_LoadFailure(t *testing.T) {
	res := runCLI(t, Dependencies{Config: staticConfig{err: errors.New("bad config")}}, "config", "show")
	requireIssue(t, res.err, issue.ConfigLoadFailedId)
}

func TestConfigPathCommand(t *testing.T) {
	explicit := filepath.Join(t.TempDir(), "mine.cue")

	res := runCLI(t, Dependencies{}, "--config", explicit, "config", "path")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if got := strings.TrimSpace(res.stdout); got != explicit {
		t.Errorf("config path = %q, want %q", got, explicit)
	}
}

func TestConfigInitCommand(t *testing.T) {
	home := t.TempDir()
	testutil.SetConfigHome(t, home)

	res := runCLI(t, Dependencies{}, "config", "init")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if !strings.Contains(res.stdout, "Created") {
		t.Errorf("expected a creation message, got %q", res.stdout)
	}

	dir, err := config.ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)); err != nil {
		t.Fatalf("expected the config file to exist: %v", err)
	}

	res = runCLI(t, Dependencies{}, "config", "init")
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if !strings.Contains(res.stdout, "already exists") {
		t.Errorf("expected an existing file to be reported, got %q", res.stdout)
	}
}
