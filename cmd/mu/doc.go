// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the mu command line: build, deps, tree and config.
package cmd
