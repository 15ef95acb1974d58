// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the mkp command line interface.
//
// Every command is built by a constructor that receives the App, so tests can
// run the full command tree against injected writers and a temporary site.
// Failures are rendered by the command itself and returned as an ExitError.
package cmd
