// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the package or file involved
// and suggested fixes. The issue catalog holds longer markdown help for the
// common package lifecycle failures, rendered with glamour.
package issue
