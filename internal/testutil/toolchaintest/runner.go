// SPDX-License-Identifier: MPL-2.0

package toolchaintest

import (
	"context"
	"slices"
	"sync"

	"mu-cli/internal/toolchain"
)

type (
	// Rule decides the outcome of an invocation. It returns matched=false when it
	// does not apply, letting the next rule decide.
	Rule func(inv toolchain.Invocation) (res *toolchain.Result, matched bool, err error)

	// Runner records every invocation it receives and answers from its rules.
	// Invocations no rule matches succeed with empty output.
	Runner struct {
		mu    sync.Mutex
		rules []Rule
		calls []toolchain.Invocation
	}
)

// NewRunner creates a Runner consulting rules in order.
func NewRunner(rules ...Rule) *Runner {
	return &Runner{rules: rules}
}

// Run implements toolchain.Runner.
func (r *Runner) Run(ctx context.Context, inv toolchain.Invocation) (*toolchain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()

	for _, rule := range r.rules {
		if res, matched, err := rule(inv); matched {
			return res, err
		}
	}
	return &toolchain.Result{}, nil
}

// Calls returns the recorded invocations in arrival order.
func (r *Runner) Calls() []toolchain.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsTo returns the recorded invocations of the named tool.
func (r *Runner) CallsTo(tool string) []toolchain.Invocation {
	var out []toolchain.Invocation
	for _, inv := range r.Calls() {
		if inv.Tool.Name == tool {
			out = append(out, inv)
		}
	}
	return out
}

// Respond answers invocations of tool whose arguments include arg with the given stdout.
func Respond(tool, arg, stdout string) Rule {
	return func(inv toolchain.Invocation) (*toolchain.Result, bool, error) {
		if inv.Tool.Name != tool || !slices.Contains(inv.Args, arg) {
			return nil, false, nil
		}
		return &toolchain.Result{Output: stdout}, true, nil
	}
}

// FailOn makes invocations of tool whose arguments include arg exit with code.
func FailOn(tool, arg string, code toolchain.ExitCode) Rule {
	return func(inv toolchain.Invocation) (*toolchain.Result, bool, error) {
		if inv.Tool.Name != tool || !slices.Contains(inv.Args, arg) {
			return nil, false, nil
		}
		return &toolchain.Result{ExitCode: code, ErrOutput: "Error: cannot build " + arg + "\n"}, true, nil
	}
}

// Unavailable makes every invocation of tool fail to start with err.
func Unavailable(tool string, err error) Rule {
	return func(inv toolchain.Invocation) (*toolchain.Result, bool, error) {
		if inv.Tool.Name != tool {
			return nil, false, nil
		}
		return nil, true, err
	}
}
