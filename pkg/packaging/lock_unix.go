// SPDX-License-Identifier: MPL-2.0

//go:build unix

package packaging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// errFlockUnavailable mirrors lock_other.go. acquireFileLock never returns
// it on unix.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock holds a blocking exclusive flock on the namespace lock file. The
// kernel drops it when the descriptor closes, including on crash, so an
// orphaned zero-byte lock file is harmless.
type fileLock struct {
	file   *os.File
	logger *log.Logger
}

// acquireFileLock opens (or creates) path and blocks until it holds an
// exclusive flock on it.
func acquireFileLock(path string, logger *log.Logger) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &fileLock{file: f, logger: logger}, nil
}

// Release unlocks and closes the lock file. Subsequent calls are no-ops.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.logger.Debug("flock unlock failed", "err", err)
	}
	if err := l.file.Close(); err != nil {
		l.logger.Debug("lock file close failed", "err", err)
	}
	l.file = nil
}
