// SPDX-License-Identifier: MPL-2.0

// Package config handles user configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/mu/config.cue (~/Library/Application
// Support/mu/config.cue on macOS, %APPDATA%\mu\config.cue on Windows), or from the
// file named by --config. The file is validated against an embedded CUE schema
// (config_schema.cue) before being merged over the defaults, and every key can be
// overridden from the environment: tools.compiler is read from MU_TOOLS_COMPILER.
package config
