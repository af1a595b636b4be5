// SPDX-License-Identifier: MPL-2.0

// Package logging builds the slog logger used across mu, backed by a
// charmbracelet/log handler.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Prefix is printed in front of every log line.
const Prefix = "mu"

const (
	FormatText   = "text"
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// ErrUnknownFormat is returned for a format other than text, logfmt or json.
var ErrUnknownFormat = errors.New("unknown log format")

// Options selects the minimum level and the output format.
// Zero values mean "warn" and "text".
type Options struct {
	Level      string
	Format     string
	Timestamps bool
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level := log.WarnLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	var formatter log.Formatter
	switch opts.Format {
	case "", FormatText:
		formatter = log.TextFormatter
	case FormatLogfmt:
		formatter = log.LogfmtFormatter
	case FormatJSON:
		formatter = log.JSONFormatter
	default:
		return nil, fmt.Errorf("%w %q (valid: text, logfmt, json)", ErrUnknownFormat, opts.Format)
	}

	handler := log.NewWithOptions(w, log.Options{
		Prefix:          Prefix,
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: opts.Timestamps,
	})
	return slog.New(handler), nil
}
