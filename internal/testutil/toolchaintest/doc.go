// SPDX-License-Identifier: MPL-2.0

// Package toolchaintest provides a scripted toolchain.Runner for tests.
//
// This package is separate from testutil so that testutil stays free of
// project imports and can be used by every package's tests.
//
// # Usage
//
//	runner := toolchaintest.NewRunner(
//		toolchaintest.Respond("coqdep", root, "y.vo : x.v\n"),
//		toolchaintest.FailOn("coqc", "x.v", 1),
//	)
package toolchaintest
