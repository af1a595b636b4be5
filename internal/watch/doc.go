// SPDX-License-Identifier: MPL-2.0

// Package watch reports changes to a project's sources.
//
// A Watcher registers every directory below a root with fsnotify, filters
// events through doublestar globs and calls back once per quiet period with
// the set of paths that changed. Newly created directories are picked up as
// they appear.
package watch
