// SPDX-License-Identifier: MPL-2.0

package config

import "github.com/mkptool/mkp/pkg/types"

// configDirOverride allows tests to override the config directory.
// os.UserHomeDir() does not reliably respect HOME on all platforms.
var configDirOverride types.FilesystemPath

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride sets a custom config directory path. Intended for
// tests.
func SetConfigDirOverride(dir types.FilesystemPath) {
	configDirOverride = dir
}
