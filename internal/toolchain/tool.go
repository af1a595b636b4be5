// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// DefaultAnalyzer is the dependency analyzer command used when none is configured.
	DefaultAnalyzer = "coqdep"
	// DefaultCompiler is the compiler command used when none is configured.
	DefaultCompiler = "coqc"
)

// ErrEmptyTool is returned when a tool command line contains no words.
var ErrEmptyTool = errors.New("tool command line is empty")

type (
	// Tool is an external program together with the arguments that precede
	// every invocation of it (e.g. "coqc -q").
	Tool struct {
		Name string
		Args []string
	}

	// Invocation is a fully specified external process: which tool, with which
	// arguments, from which working directory. It carries no behavior.
	Invocation struct {
		Tool Tool
		Args []string
		Dir  string
	}
)

// ParseTool splits a command line into a Tool using POSIX shell word rules.
// Parameter expansions are resolved against env; a nil env expands to empty strings.
func ParseTool(cmdline string, env func(string) string) (Tool, error) {
	if env == nil {
		env = func(string) string { return "" }
	}
	fields, err := shell.Fields(cmdline, env)
	if err != nil {
		return Tool{}, fmt.Errorf("parse tool command %q: %w", cmdline, err)
	}
	if len(fields) == 0 {
		return Tool{}, ErrEmptyTool
	}
	return Tool{Name: fields[0], Args: fields[1:]}, nil
}

// String renders the tool command line.
func (t Tool) String() string {
	return quoteArgv(append([]string{t.Name}, t.Args...))
}

// Argv returns the complete argument vector, program name first.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, 1+len(inv.Tool.Args)+len(inv.Args))
	argv = append(argv, inv.Tool.Name)
	argv = append(argv, inv.Tool.Args...)
	return append(argv, inv.Args...)
}

// String renders the invocation as a shell-quoted command line.
func (inv Invocation) String() string {
	return quoteArgv(inv.Argv())
}

// Equal reports whether two invocations would spawn the same process.
func (inv Invocation) Equal(other Invocation) bool {
	return inv.Dir == other.Dir && slices.Equal(inv.Argv(), other.Argv())
}

func quoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			// Only arguments containing NUL bytes cannot be quoted.
			q = fmt.Sprintf("%q", arg)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
