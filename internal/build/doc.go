// SPDX-License-Identifier: MPL-2.0

// Package build resolves the compilation order of a source tree and drives
// the compiler over it.
//
// Directories are compiled strictly one at a time in post-order, because the
// compiler resolves logical names by reading the interface files already
// produced for earlier directories. Within a directory, files are passed in a
// topological order of the dependency graph.
package build
