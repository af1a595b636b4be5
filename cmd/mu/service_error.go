// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mu-cli/internal/coqdep"
	"mu-cli/internal/dag"
	"mu-cli/internal/issue"
	"mu-cli/internal/toolchain"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. When the CLI layer receives a ServiceError, it renders the
// styled message (if present) and the issue catalog entry.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints any styled message first, then the optional
// issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// stage names the pipeline step an error came from.
type stage int

const (
	stageAnalyze stage = iota + 1
	stageCompile
)

// classifyPipelineError attaches the catalog entry and the rendered tool
// output to a failure of the analyzer or the compiler.
func classifyPipelineError(err error, st stage) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: ExitCodeInterrupted, Err: err}
	}

	var (
		cycleErr *dag.CycleError
		parseErr *coqdep.ParseError
		toolErr  *toolchain.ToolError
	)
	switch {
	case errors.As(err, &cycleErr):
		return newServiceError(err, issue.DependencyCycleId, renderCycle(cycleErr))
	case errors.As(err, &parseErr):
		return newServiceError(err, issue.AnalyzerOutputMalformedId,
			fmt.Sprintf("%s line %d: %s\n", ErrorStyle.Render("unexpected analyzer output,"), parseErr.Line, parseErr.Text))
	case errors.As(err, &toolErr) && toolErr.Cause != nil:
		return newServiceError(err, issue.ToolNotFoundId,
			fmt.Sprintf("%s %s\n", ErrorStyle.Render("could not start"), CmdStyle.Render(toolErr.Invocation.Tool.Name)))
	case errors.As(err, &toolErr):
		id := issue.CompilerFailedId
		if st == stageAnalyze {
			id = issue.AnalyzerFailedId
		}
		return newServiceError(err, id, renderToolFailure(toolErr))
	}
	return err
}

// renderToolFailure shows the failing command line followed by the tool's own
// output, unchanged.
func renderToolFailure(toolErr *toolchain.ToolError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ErrorStyle.Render("command failed:"), CmdStyle.Render(toolErr.Invocation.String()))
	if diag := toolErr.Diagnostics(); diag != "" {
		b.WriteString(diag)
		if !strings.HasSuffix(diag, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderCycle(cycleErr *dag.CycleError) string {
	var b strings.Builder
	b.WriteString(ErrorStyle.Render("dependency cycle:") + "\n")
	for i, unit := range cycleErr.Cycle {
		arrow := "  "
		if i > 0 {
			arrow = "→ "
		}
		fmt.Fprintf(&b, "  %s%s\n", arrow, unit)
	}
	return b.String()
}
