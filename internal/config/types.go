// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"mu-cli/internal/toolchain"
)

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	LogFormatText   LogFormat = "text"
	LogFormatLogfmt LogFormat = "logfmt"
	LogFormatJSON   LogFormat = "json"
)

var (
	// ErrInvalidToolCommand is returned when a ToolCommand is whitespace-only.
	ErrInvalidToolCommand = errors.New("invalid tool command")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidJobs is returned for a negative job count.
	ErrInvalidJobs = errors.New("invalid job count")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	validLogLevels  = []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}
	validLogFormats = []LogFormat{LogFormatText, LogFormatLogfmt, LogFormatJSON}
)

type (
	// ToolCommand is the command line used to start an external tool,
	// e.g. "coqc" or "opam exec -- coqc".
	ToolCommand string

	// LogLevel is the minimum level that reaches the log output.
	LogLevel string

	// LogFormat selects how log lines are encoded.
	LogFormat string

	// InvalidValueError reports a single field holding an unusable value.
	InvalidValueError struct {
		Field string
		Value string
		Err   error
	}

	// InvalidConfigError collects every field-level problem of a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// ToolsConfig names the external tools.
	ToolsConfig struct {
		// Analyzer computes dependencies between source files (coqdep).
		Analyzer ToolCommand `json:"analyzer" mapstructure:"analyzer"`
		// Compiler compiles one directory at a time (coqc).
		Compiler ToolCommand `json:"compiler" mapstructure:"compiler"`
	}

	// BuildConfig tunes the build.
	BuildConfig struct {
		// Jobs bounds concurrent analyzer processes. 0 means one per CPU.
		Jobs int `json:"jobs" mapstructure:"jobs"`
	}

	// LogConfig configures diagnostic logging.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// Config holds the application configuration.
	Config struct {
		Tools ToolsConfig `json:"tools" mapstructure:"tools"`
		Build BuildConfig `json:"build" mapstructure:"build"`
		Log   LogConfig   `json:"log" mapstructure:"log"`
		UI    UIConfig    `json:"ui" mapstructure:"ui"`
	}
)

// DefaultConfig returns the configuration used when no file or environment
// variable says otherwise.
func DefaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			Analyzer: toolchain.DefaultAnalyzer,
			Compiler: toolchain.DefaultCompiler,
		},
		Log: LogConfig{
			Level:  LogLevelWarn,
			Format: LogFormatText,
		},
	}
}

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Field, e.Err, e.Value)
}

// Unwrap returns the sentinel describing the problem.
func (e *InvalidValueError) Unwrap() error { return e.Err }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the string representation of the ToolCommand.
func (c ToolCommand) String() string { return string(c) }

// IsValid reports whether the command names a program.
func (c ToolCommand) IsValid() bool { return strings.TrimSpace(string(c)) != "" }

// Tool splits the command line into a toolchain.Tool, expanding environment
// variables with env.
func (c ToolCommand) Tool(env func(string) string) (toolchain.Tool, error) {
	return toolchain.ParseTool(string(c), env)
}

// IsValid reports whether the level is recognized.
func (l LogLevel) IsValid() bool { return slices.Contains(validLogLevels, l) }

// IsValid reports whether the format is recognized.
func (f LogFormat) IsValid() bool { return slices.Contains(validLogFormats, f) }

// Validate checks the values CUE cannot see, e.g. those set from the environment.
func (c *Config) Validate() error {
	var errs []error
	if !c.Tools.Analyzer.IsValid() {
		errs = append(errs, &InvalidValueError{Field: "tools.analyzer", Value: string(c.Tools.Analyzer), Err: ErrInvalidToolCommand})
	}
	if !c.Tools.Compiler.IsValid() {
		errs = append(errs, &InvalidValueError{Field: "tools.compiler", Value: string(c.Tools.Compiler), Err: ErrInvalidToolCommand})
	}
	if c.Build.Jobs < 0 {
		errs = append(errs, &InvalidValueError{Field: "build.jobs", Value: fmt.Sprint(c.Build.Jobs), Err: ErrInvalidJobs})
	}
	if !c.Log.Level.IsValid() {
		errs = append(errs, &InvalidValueError{Field: "log.level", Value: string(c.Log.Level), Err: ErrInvalidLogLevel})
	}
	if !c.Log.Format.IsValid() {
		errs = append(errs, &InvalidValueError{Field: "log.format", Value: string(c.Log.Format), Err: ErrInvalidLogFormat})
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
