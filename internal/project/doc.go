// SPDX-License-Identifier: MPL-2.0

// Package project locates a project root and reads its Gallus.toml manifest.
//
// A manifest looks like:
//
//	[package]
//	name = "algebra"
//	version = "0.3.0"
//	authors = ["Ada <ada@example.org>"]
//
//	[dependencies]
//	stdpp = "1.9"
//
// The dependencies table is validated for shape only; nothing resolves it.
package project
