// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the catalog of user-facing
// problem descriptions rendered when a mu command fails.
package issue
