// SPDX-License-Identifier: MPL-2.0

// Package sourcetree models the on-disk layout of a project as a pruned
// directory tree.
//
// Only files with the recognized source extension (.v) are kept, and a
// directory is kept only if it transitively contains one of them. The project
// root is always part of the tree so that a build of an empty project is still
// well defined.
package sourcetree
