// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the build pipeline's hot paths:
//   - parsing analyzer output
//   - scanning a source tree
//   - ordering files over a large dependency graph
//   - extraction and compilation end to end, against a scripted runner
//   - manifest and configuration loading
//
// Run them with:
//
//	go test -run '^$' -bench . ./internal/benchmark
package benchmark
