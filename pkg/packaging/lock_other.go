// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package packaging

import (
	"errors"

	"github.com/charmbracelet/log"
)

// errFlockUnavailable makes the manager rely on its in-process mutex alone.
var errFlockUnavailable = errors.New("flock not available on this platform")

type fileLock struct{}

func acquireFileLock(string, *log.Logger) (*fileLock, error) {
	return nil, errFlockUnavailable
}

// Release is a no-op.
func (l *fileLock) Release() {}
