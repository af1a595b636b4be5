// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// ErrToolFailed is the sentinel error wrapped by ToolError.
var ErrToolFailed = errors.New("external tool failed")

type (
	// ExitCode represents a process exit status code. The zero value means success.
	ExitCode int

	// Result holds the captured output of a finished process.
	Result struct {
		ExitCode  ExitCode
		Output    string
		ErrOutput string
	}

	// ToolError reports an invocation that could not be started or exited non-zero.
	// Output and ErrOutput are the process streams, verbatim.
	ToolError struct {
		Invocation Invocation
		ExitCode   ExitCode
		Output     string
		ErrOutput  string
		// Cause is set when the process could not be started at all.
		Cause error
	}

	// Runner spawns an invocation and waits for it to finish.
	// A non-nil error is returned only when the process could not be run;
	// a non-zero exit is reported through Result.ExitCode.
	Runner interface {
		Run(ctx context.Context, inv Invocation) (*Result, error)
	}

	// ExecRunner runs invocations as OS processes.
	ExecRunner struct{}

	// Printer is a Runner that writes each invocation as a shell command line
	// instead of running it. Every invocation succeeds with empty output.
	Printer struct {
		mu sync.Mutex
		w  io.Writer
	}
)

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Invocation.Tool.Name, e.Cause)
	}
	return fmt.Sprintf("%s exited with status %s", e.Invocation.Tool.Name, e.ExitCode)
}

// Unwrap returns ErrToolFailed so callers can use errors.Is for programmatic
// detection, plus the start failure when there is one.
func (e *ToolError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrToolFailed, e.Cause}
	}
	return []error{ErrToolFailed}
}

// Diagnostics returns the captured process output, stdout first.
func (e *ToolError) Diagnostics() string {
	var b bytes.Buffer
	b.WriteString(e.Output)
	if e.Output != "" && e.ErrOutput != "" && e.Output[len(e.Output)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(e.ErrOutput)
	return b.String()
}

// NewExecRunner creates a runner that spawns real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes inv and captures its output.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	argv := inv.Argv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = inv.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("running tool", "command", inv.String(), "dir", inv.Dir)

	err := cmd.Run()
	result := &Result{
		Output:    stdout.String(),
		ErrOutput: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = ExitCode(exitErr.ExitCode())
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run %s: %w", inv.Tool.Name, ctxErr)
		}
		return nil, fmt.Errorf("run %s: %w", inv.Tool.Name, err)
	}
	return result, nil
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Run prints inv without executing it.
func (p *Printer) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if inv.Dir != "" {
		if _, err := fmt.Fprintf(p.w, "(cd %s && %s)\n", quoteArgv([]string{inv.Dir}), inv); err != nil {
			return nil, err
		}
		return &Result{}, nil
	}
	if _, err := fmt.Fprintln(p.w, inv.String()); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// Execute runs inv through r and converts a start failure or a non-zero exit
// into a *ToolError.
func Execute(ctx context.Context, r Runner, inv Invocation) (*Result, error) {
	res, err := r.Run(ctx, inv)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &ToolError{Invocation: inv, ExitCode: -1, Cause: err}
	}
	if !res.ExitCode.IsSuccess() {
		return res, &ToolError{
			Invocation: inv,
			ExitCode:   res.ExitCode,
			Output:     res.Output,
			ErrOutput:  res.ErrOutput,
		}
	}
	return res, nil
}
