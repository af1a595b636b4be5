// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"log/slog"
)

// LoadOptions selects the configuration file. The zero value reads
// config.cue from ConfigDir, and falls back to defaults when it is absent.
type LoadOptions struct {
	// ConfigFilePath is the file named by --config. Unlike the default
	// location, it must exist.
	ConfigFilePath string
	// ConfigDirPath replaces the platform directory returned by ConfigDir.
	ConfigDirPath string
}

// Provider yields the effective configuration: defaults, overlaid by the CUE
// file, overlaid by MU_* environment variables.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type cueFileProvider struct{}

// NewProvider returns the Provider backed by the CUE configuration file.
func NewProvider() Provider {
	return cueFileProvider{}
}

// Load implements Provider.
func (cueFileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	if path == "" {
		slog.Debug("no configuration file, using defaults and environment")
	} else {
		slog.Debug("configuration loaded", "path", path)
	}
	return cfg, nil
}

// Source returns the file opts select and whether it exists as a regular file.
func Source(opts LoadOptions) (path string, found bool, err error) {
	path, err = FilePath(opts)
	if err != nil {
		return "", false, err
	}
	return path, fileExists(path), nil
}
