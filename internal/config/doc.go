// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Settings are layered: built-in defaults, then mkp.cue from the user config
// directory (~/.config/mkp on Linux, ~/Library/Application Support/mkp on
// macOS, %APPDATA%\mkp on Windows) or the working directory or --config, then
// MKP_* environment variables. The file is validated against the embedded
// #Config schema (config_schema.cue).
//
// Resolve turns a Config into the concrete site layout: absolute part roots,
// the data and package directories, and the host version.
package config
