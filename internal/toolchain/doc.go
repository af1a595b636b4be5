// SPDX-License-Identifier: MPL-2.0

// Package toolchain describes and runs the external programs a build delegates
// to: the dependency analyzer and the compiler.
//
// Invocations are plain values so that callers can build, compare and print
// them without side effects. A Runner turns an Invocation into exactly one
// synchronous OS process; Execute layers the "non-zero exit is fatal" policy on
// top of any Runner and reports failures as *ToolError with the captured output.
package toolchain
