// SPDX-License-Identifier: MPL-2.0

// Package coqdep extracts the project dependency graph by running the external
// dependency analyzer once per source directory.
//
// The analyzer prints make-style rules, one per line:
//
//	a.vo a.glob a.v.beautified: a.v b.vo sub/c.vo
//
// Only .v and .vo tokens are kept, and both are canonicalized to the .v source
// unit, so the line above yields the relations a.v <- b.v and a.v <- sub/c.v
// (the a.v <- a.v self relation is dropped by the graph).
package coqdep
