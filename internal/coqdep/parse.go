// SPDX-License-Identifier: MPL-2.0

package coqdep

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"mu-cli/internal/sourcetree"
)

// ErrMalformedOutput is the sentinel error wrapped by ParseError.
var ErrMalformedOutput = errors.New("malformed analyzer output")

type (
	// Rule is one parsed analyzer line: every product requires every dependency.
	// Both sides hold canonical source-unit paths.
	Rule struct {
		Products     []string
		Dependencies []string
	}

	// ParseError reports an analyzer line that is not of the form
	// "<products> : <dependencies>".
	ParseError struct {
		// Line is the 1-based line number in the analyzer output.
		Line int
		Text string
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: expected exactly one ':' in %q", e.Line, e.Text)
}

// Unwrap returns ErrMalformedOutput for errors.Is() compatibility.
func (e *ParseError) Unwrap() error { return ErrMalformedOutput }

// Parse reads analyzer output. Each line must contain exactly one colon;
// the first violation fails the whole parse. Lines whose product side holds no
// source or object unit are dropped.
func Parse(output string) ([]Rule, error) {
	var rules []Rule

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) != 2 {
			return nil, &ParseError{Line: lineNo, Text: line}
		}

		products := units(parts[0])
		if len(products) == 0 {
			slog.Debug("skipping analyzer line without products", "line", lineNo, "text", line)
			continue
		}
		rules = append(rules, Rule{Products: products, Dependencies: units(parts[1])})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read analyzer output: %w", err)
	}
	return rules, nil
}

// units extracts the source and object units from a whitespace-separated
// list, canonicalized to the source extension. Other tokens, including ones
// without an extension, are skipped.
func units(side string) []string {
	var out []string
	for _, tok := range strings.Fields(side) {
		if u, ok := Canonical(tok); ok {
			out = append(out, u)
		}
	}
	return out
}

// Canonical maps a .v or .vo path to its cleaned .v form. It reports false
// for any other token.
func Canonical(token string) (string, bool) {
	switch filepath.Ext(token) {
	case sourcetree.SourceExt:
		return filepath.Clean(token), true
	case sourcetree.ObjectExt:
		return filepath.Clean(strings.TrimSuffix(token, sourcetree.ObjectExt) + sourcetree.SourceExt), true
	default:
		return "", false
	}
}
